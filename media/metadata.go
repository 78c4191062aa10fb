package media

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	goexif "github.com/rwcarlsen/goexif/exif"
)

func exifString(x *goexif.Exif, name goexif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	v, err := tag.StringVal()
	if err != nil {
		return nil
	}
	v = strings.TrimSpace(strings.TrimRight(v, "\x00"))
	if v == "" {
		return nil
	}
	return &v
}

// ReadMetadata reads dimensions and the capture date from an image. A file
// without EXIF is not an error; it just yields fewer fields.
func ReadMetadata(data []byte) (*Metadata, error) {
	meta := &Metadata{}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("metadata: not a decodable image: %w", err)
	}
	w, h := cfg.Width, cfg.Height
	meta.Width, meta.Height = &w, &h

	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta, nil
	}
	meta.CameraMake = exifString(x, goexif.Make)
	meta.CameraModel = exifString(x, goexif.Model)
	if dt, err := x.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}
	return meta, nil
}
