package drivers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// Target heights per preview size. Images are never enlarged.
var imageHeights = map[simpleingest.OutputSize]int{
	simpleingest.SizeSmall:  200,
	simpleingest.SizeMedium: 800,
	simpleingest.SizeLarge:  1600,
}

const jpegQuality = 85

// Image renders image previews. PNG input stays PNG; every other format is
// encoded as JPEG.
type Image struct {
	simpleingest.Capabilities
}

// NewImage creates the image preview driver
func NewImage() *Image {
	return &Image{simpleingest.Capabilities{
		Inputs: []simpleingest.InputMode{simpleingest.InputStream},
		Sizes:  []simpleingest.OutputSize{simpleingest.SizeSmall, simpleingest.SizeMedium, simpleingest.SizeLarge},
	}}
}

func (d *Image) Name() string { return simpleingest.DriverImage }

func (d *Image) ProcessStream(ctx context.Context, input io.Reader, opts simpleingest.DriverOptions) (*simpleingest.DriverResult, error) {
	size := opts.Size
	if size == "" {
		size = simpleingest.SizeMedium
	}
	height, ok := imageHeights[size]
	if !ok {
		return nil, fmt.Errorf("unsupported preview size %q", size)
	}

	src, format, err := image.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := scaleToHeight(src, height)

	var buf bytes.Buffer
	result := &simpleingest.DriverResult{Width: dst.Bounds().Dx()}
	if format == "png" {
		err = png.Encode(&buf, dst)
		result.Type, result.Extension = "image/png", "png"
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
		result.Type, result.Extension = "image/jpeg", "jpg"
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s preview: %w", result.Extension, err)
	}

	result.Content = buf.Bytes()
	result.Size = int64(buf.Len())
	return result, nil
}

// scaleToHeight resizes src to height keeping the aspect ratio. Images that
// are already small enough are returned unchanged.
func scaleToHeight(src image.Image, height int) image.Image {
	bounds := src.Bounds()
	if bounds.Dy() <= height {
		return src
	}

	width := bounds.Dx() * height / bounds.Dy()
	if width < 1 {
		width = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
