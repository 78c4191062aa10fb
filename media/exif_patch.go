package media

import (
	"bytes"
	"errors"
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"

	"github.com/camden-git/photosorter/csvmap"
)

// ErrNotPatchable is returned when an image's bytes cannot carry a rewritten
// EXIF block (anything that is not a parseable JPEG).
var ErrNotPatchable = errors.New("image cannot be EXIF patched")

var patchedDateTags = []struct{ ifdPath, tag string }{
	{"IFD0", "DateTime"},
	{"IFD/Exif", "DateTimeOriginal"},
	{"IFD/Exif", "DateTimeDigitized"},
}

// PatchDateTime returns a copy of a JPEG whose DateTime, DateTimeOriginal and
// DateTimeDigitized read {year}:01:01 00:00:00. Existing EXIF is kept and
// updated; a JPEG with no readable EXIF gets a new block holding only the dates.
func PatchDateTime(data []byte, year int) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: exif writer panicked: %v", ErrNotPatchable, r)
		}
	}()

	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPatchable, err)
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected media context %T", ErrNotPatchable, mc)
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		rootIb, err = emptyExifBuilder()
		if err != nil {
			return nil, err
		}
	}

	value := csvmap.DateTaken(year)
	for _, t := range patchedDateTags {
		ib, err := exif.GetOrCreateIbFromRootIb(rootIb, t.ifdPath)
		if err != nil {
			return nil, fmt.Errorf("exif ifd %s: %w", t.ifdPath, err)
		}
		if err := ib.SetStandardWithName(t.tag, value); err != nil {
			return nil, fmt.Errorf("exif tag %s: %w", t.tag, err)
		}
	}

	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("exif set: %w", err)
	}
	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return nil, fmt.Errorf("jpeg write: %w", err)
	}
	return buf.Bytes(), nil
}

func emptyExifBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("exif ifd mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}
