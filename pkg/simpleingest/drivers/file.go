package drivers

import (
	"context"
	"io"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// File stores the upload unchanged.
type File struct {
	simpleingest.Capabilities
}

// NewFile creates the passthrough upload driver
func NewFile() *File {
	return &File{simpleingest.Capabilities{Inputs: []simpleingest.InputMode{simpleingest.InputStream}}}
}

func (d *File) Name() string { return simpleingest.DriverFile }

func (d *File) ProcessStream(ctx context.Context, input io.Reader, opts simpleingest.DriverOptions) (*simpleingest.DriverResult, error) {
	return &simpleingest.DriverResult{Stream: io.NopCloser(input)}, nil
}
