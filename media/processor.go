package media

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	DefaultThumbnailMaxSize = 200
	DefaultThumbnailQuality = 75

	ThumbnailFileExtension = ".jpg"
)

// Processor produces display thumbnails and saves them through a Store.
type Processor struct {
	store Store
	opts  ThumbnailOptions
}

func NewProcessor(store Store, opts ThumbnailOptions) *Processor {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultThumbnailMaxSize
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultThumbnailQuality
	}
	return &Processor{store: store, opts: opts}
}

// GenerateThumbnail decodes an original, fits it inside MaxSize x MaxSize
// (never upscaling, EXIF orientation applied) and saves it as a JPEG under a
// fresh uuid name. Returns the store-relative path.
func (p *Processor) GenerateThumbnail(data []byte, name string) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", name, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return "", fmt.Errorf("invalid image dimensions for %s: %dx%d", name, b.Dx(), b.Dy())
	}

	thumb := imaging.Fit(img, p.opts.MaxSize, p.opts.MaxSize, imaging.Lanczos)

	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, thumb, imaging.JPEG, imaging.JPEGQuality(p.opts.Quality))
		if err != nil {
			log.Printf("processor: failed to encode thumbnail for %s: %v", name, err)
			writer.CloseWithError(fmt.Errorf("thumbnail encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	rel, err := p.store.Save(AssetTypeThumbnail, uuid.NewString()+ThumbnailFileExtension, reader)
	reader.Close()
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail for %s: %w", name, err)
	}
	return rel, nil
}
