package drivers

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// ImageMetadata reports the format, dimensions and byte size of an image
// without decoding its pixels.
type ImageMetadata struct {
	simpleingest.Capabilities
}

// NewImageMetadata creates the image metadata driver
func NewImageMetadata() *ImageMetadata {
	return &ImageMetadata{simpleingest.Capabilities{
		Inputs: []simpleingest.InputMode{simpleingest.InputStream},
	}}
}

func (d *ImageMetadata) Name() string { return simpleingest.DriverImage }

func (d *ImageMetadata) ProcessStream(ctx context.Context, input io.Reader, opts simpleingest.DriverOptions) (*simpleingest.DriverResult, error) {
	counter := &countingReader{r: input}

	cfg, format, err := image.DecodeConfig(counter)
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// drain so Size covers the whole input
	if _, err := io.Copy(io.Discard, counter); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return &simpleingest.DriverResult{
		Type:      "image/" + format,
		Extension: ext,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Size:      counter.n,
	}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
