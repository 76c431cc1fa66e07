package simpleingest

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for key/value storage backends
type BlobStore interface {
	// Upload stores the reader's content under objectKey
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download opens the content stored under objectKey
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Stat retrieves metadata for an object
	Stat(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// Exists reports whether objectKey is present
	Exists(ctx context.Context, objectKey string) (bool, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error
}

// ObjectMeta contains metadata about an object in a backend
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// ObjectStore is the content-addressed blob store consumed by the pipeline.
type ObjectStore interface {
	PutBlob(ctx context.Context, reader io.Reader) (StoredBlob, error)
	PutBytes(ctx context.Context, data []byte) (StoredBlob, error)
	PutPath(ctx context.Context, path string) (StoredBlob, error)
	PutDirectory(ctx context.Context, dir string) (StoredBlob, error)
	Stat(ctx context.Context, id string) (BlobStat, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	ReadAll(ctx context.Context, id string) ([]byte, error)
}

// Repository defines the interface for content record persistence
type Repository interface {
	CreateContent(ctx context.Context, content *Content) error
	GetContent(ctx context.Context, id uuid.UUID) (*Content, error)
	// FindByStoreAndOwner returns ErrContentNotFound when absent
	FindByStoreAndOwner(ctx context.Context, storeID string, ownerID uuid.UUID) (*Content, error)
	UpdatePreviews(ctx context.Context, id uuid.UUID, previews PreviewSet) error
	ListContentByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Content, error)
}

// QuotaStore defines the interface for per-user limits and usage accounting
type QuotaStore interface {
	// GetLimit returns ErrLimitNotFound when the user has no such limit
	GetLimit(ctx context.Context, userID uuid.UUID, name LimitName) (*UserLimit, error)
	SetLimit(ctx context.Context, limit *UserLimit) error
	// GetUsageSum sums action sizes of the given kind created after since
	GetUsageSum(ctx context.Context, userID uuid.UUID, kind ActionKind, since time.Time) (int64, error)
	RecordAction(ctx context.Context, action *ContentAction) error
}

// Driver is a processing backend advertising its capabilities. A driver
// additionally implements one of the processor interfaces below for every
// input mode it declares.
type Driver interface {
	Name() string
	SupportedInputs() []InputMode
	SupportedOutputSizes() []OutputSize
}

// StreamProcessor processes a live stream
type StreamProcessor interface {
	ProcessStream(ctx context.Context, input io.Reader, opts DriverOptions) (*DriverResult, error)
}

// ContentProcessor processes fully buffered content
type ContentProcessor interface {
	ProcessContent(ctx context.Context, input []byte, opts DriverOptions) (*DriverResult, error)
}

// SourceProcessor processes a source locator such as a URL
type SourceProcessor interface {
	ProcessSource(ctx context.Context, source string, opts DriverOptions) (*DriverResult, error)
}

// PathProcessor processes a file on the local filesystem
type PathProcessor interface {
	ProcessPath(ctx context.Context, path string, opts DriverOptions) (*DriverResult, error)
}

// DriverOptions parameterises a single driver invocation.
type DriverOptions struct {
	// Extension of the input, without the dot
	Extension string
	// Size requested for preview drivers; empty means medium
	Size OutputSize
	// Progress receives progress reports. Drivers must not block on it.
	Progress chan<- Progress
}

// DriverResult carries the output of a driver invocation. Preview, upload and
// convert results set at least one of Stream, Content, Path or TempPath;
// metadata results carry only the descriptive fields.
type DriverResult struct {
	Stream    io.ReadCloser
	Content   []byte
	Path      string
	TempPath  string
	Type      string
	Extension string
	Size      int64
	Width     int
	Height    int
	// Cleanup releases temporary resources such as TempPath. May be nil.
	Cleanup func() error
}

// Close releases the result's stream and temporary resources.
func (r *DriverResult) Close() error {
	if r == nil {
		return nil
	}
	var err error
	if r.Stream != nil {
		err = r.Stream.Close()
	}
	if r.Cleanup != nil {
		if cerr := r.Cleanup(); err == nil {
			err = cerr
		}
	}
	return err
}

// Capabilities answers the capability queries of Driver. Drivers embed it.
type Capabilities struct {
	Inputs []InputMode
	Sizes  []OutputSize
}

// SupportedInputs returns the declared input modes
func (c Capabilities) SupportedInputs() []InputMode {
	return c.Inputs
}

// SupportedOutputSizes returns the declared output sizes
func (c Capabilities) SupportedOutputSizes() []OutputSize {
	return c.Sizes
}

// HasInput reports whether mode is declared
func (c Capabilities) HasInput(mode InputMode) bool {
	return slices.Contains(c.Inputs, mode)
}

// SendProgress delivers p without blocking; reports are dropped when the
// channel is full or nil.
func SendProgress(ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}
