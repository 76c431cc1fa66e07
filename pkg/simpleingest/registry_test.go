package simpleingest

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamOnly struct {
	Capabilities
	name string
}

func (d streamOnly) Name() string { return d.name }

func (d streamOnly) ProcessStream(ctx context.Context, input io.Reader, opts DriverOptions) (*DriverResult, error) {
	return &DriverResult{Content: []byte("ok")}, nil
}

// liar declares a content mode it does not implement
type liar struct {
	Capabilities
}

func (liar) Name() string { return "liar" }

func TestNewRegistry(t *testing.T) {
	image := streamOnly{name: "image", Capabilities: Capabilities{
		Inputs: []InputMode{InputStream},
		Sizes:  []OutputSize{SizeSmall, SizeMedium, SizeLarge},
	}}

	t.Run("valid", func(t *testing.T) {
		r, err := NewRegistry(Preview(image), Upload(streamOnly{name: "file", Capabilities: Capabilities{Inputs: []InputMode{InputStream}}}))
		require.NoError(t, err)

		d, ok := r.Select(CategoryPreview, "image")
		require.True(t, ok)
		assert.Equal(t, "image", d.Name())

		_, ok = r.Select(CategoryUpload, "image")
		assert.False(t, ok, "pools are separate")

		assert.Equal(t, []string{"image"}, r.Names(CategoryPreview))
		assert.Empty(t, r.Names(CategoryMetadata))
	})

	t.Run("metadata pool", func(t *testing.T) {
		r, err := NewRegistry(Preview(image), Metadata(image))
		require.NoError(t, err)

		d, ok := r.Select(CategoryMetadata, "image")
		require.True(t, ok)
		assert.Equal(t, "image", d.Name())
		assert.Equal(t, []string{"image"}, r.Names(CategoryMetadata))

		_, err = NewRegistry(Metadata(image), Metadata(image))
		assert.Error(t, err)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := NewRegistry(Preview(image), Preview(image))
		assert.Error(t, err)
	})

	t.Run("same name in different pools", func(t *testing.T) {
		_, err := NewRegistry(Preview(image), Convert(image))
		assert.NoError(t, err)
	})

	t.Run("no input mode", func(t *testing.T) {
		_, err := NewRegistry(Preview(streamOnly{name: "empty"}))
		assert.ErrorIs(t, err, ErrUnsupportedDriverInput)

		var driverErr *DriverError
		require.ErrorAs(t, err, &driverErr)
		assert.Equal(t, "empty", driverErr.Driver)
	})

	t.Run("declared but not implemented", func(t *testing.T) {
		_, err := NewRegistry(Preview(liar{Capabilities{Inputs: []InputMode{InputContent}}}))
		assert.ErrorIs(t, err, ErrUnsupportedDriverInput)
	})

	t.Run("nil driver", func(t *testing.T) {
		_, err := NewRegistry(Registration{Category: CategoryPreview})
		assert.Error(t, err)
	})

	t.Run("must panics", func(t *testing.T) {
		assert.Panics(t, func() { MustRegistry(Preview(image), Preview(image)) })
	})
}

func TestSupports(t *testing.T) {
	d := streamOnly{name: "image", Capabilities: Capabilities{
		Inputs: []InputMode{InputStream},
		Sizes:  []OutputSize{SizeMedium, SizeLarge},
	}}

	assert.True(t, Supports(d, InputStream))
	assert.False(t, Supports(d, InputContent))
	assert.False(t, Supports(nil, InputStream))

	assert.True(t, SupportsOutputSize(d, SizeMedium))
	assert.True(t, SupportsOutputSize(d, SizeLarge))
	assert.False(t, SupportsOutputSize(d, SizeSmall))

	assert.Equal(t, []OutputSize{SizeMedium, SizeLarge}, previewSizes(d))

	mode, ok := negotiateInput(d)
	assert.True(t, ok)
	assert.Equal(t, InputStream, mode)
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	_, ok := r.Select(CategoryPreview, "image")
	assert.False(t, ok)
	assert.Nil(t, r.Names(CategoryPreview))
}

func TestSendProgress_NeverBlocks(t *testing.T) {
	ch := make(chan Progress, 1)
	SendProgress(ch, Progress{Percent: 10})
	SendProgress(ch, Progress{Percent: 20}) // dropped, channel full
	SendProgress(nil, Progress{Percent: 30})

	got := <-ch
	assert.Equal(t, 10.0, got.Percent)
	assert.Empty(t, ch)
}
