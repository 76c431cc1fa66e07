package drivers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

func solid(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImage_ScalesByHeight(t *testing.T) {
	src := encodePNG(t, solid(100, 2000))
	d := NewImage()

	tests := []struct {
		size   simpleingest.OutputSize
		width  int
		height int
	}{
		{simpleingest.SizeSmall, 10, 200},
		{simpleingest.SizeMedium, 40, 800},
		{simpleingest.SizeLarge, 80, 1600},
		{"", 40, 800},
	}

	for _, tt := range tests {
		t.Run(string(tt.size), func(t *testing.T) {
			res, err := d.ProcessStream(context.Background(), bytes.NewReader(src), simpleingest.DriverOptions{Size: tt.size})
			require.NoError(t, err)
			assert.Equal(t, "image/png", res.Type)
			assert.Equal(t, "png", res.Extension)
			assert.Equal(t, tt.width, res.Width)
			assert.Equal(t, int64(len(res.Content)), res.Size)

			cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Content))
			require.NoError(t, err)
			assert.Equal(t, "png", format)
			assert.Equal(t, tt.width, cfg.Width)
			assert.Equal(t, tt.height, cfg.Height)
		})
	}
}

func TestImage_NeverEnlarges(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(50, 30), nil))

	res, err := NewImage().ProcessStream(context.Background(), &buf, simpleingest.DriverOptions{Size: simpleingest.SizeLarge})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Content))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestImage_NonPNGBecomesJPEG(t *testing.T) {
	palette := image.NewPaletted(image.Rect(0, 0, 20, 20), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, palette, nil))

	res, err := NewImage().ProcessStream(context.Background(), &buf, simpleingest.DriverOptions{})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", res.Type)
	assert.Equal(t, "jpg", res.Extension)

	_, format, err := image.DecodeConfig(bytes.NewReader(res.Content))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestImage_Errors(t *testing.T) {
	d := NewImage()

	_, err := d.ProcessStream(context.Background(), strings.NewReader("not an image"), simpleingest.DriverOptions{})
	assert.Error(t, err)

	src := encodePNG(t, solid(4, 4))
	_, err = d.ProcessStream(context.Background(), bytes.NewReader(src), simpleingest.DriverOptions{Size: "huge"})
	assert.Error(t, err)
}

func TestImageMetadata(t *testing.T) {
	d := NewImageMetadata()

	t.Run("png", func(t *testing.T) {
		src := encodePNG(t, solid(120, 30))
		res, err := d.ProcessStream(context.Background(), bytes.NewReader(src), simpleingest.DriverOptions{})
		require.NoError(t, err)

		assert.Equal(t, "image/png", res.Type)
		assert.Equal(t, "png", res.Extension)
		assert.Equal(t, 120, res.Width)
		assert.Equal(t, 30, res.Height)
		assert.Equal(t, int64(len(src)), res.Size)
		assert.Nil(t, res.Content)
	})

	t.Run("jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, solid(64, 48), nil))

		res, err := d.ProcessStream(context.Background(), &buf, simpleingest.DriverOptions{})
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", res.Type)
		assert.Equal(t, "jpg", res.Extension)
		assert.Equal(t, 64, res.Width)
		assert.Equal(t, 48, res.Height)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := d.ProcessStream(context.Background(), strings.NewReader("plain text"), simpleingest.DriverOptions{})
		assert.Error(t, err)
	})
}
