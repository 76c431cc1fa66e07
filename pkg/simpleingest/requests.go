package simpleingest

import (
	"io"

	"github.com/google/uuid"
)

// IngestRequest is a request to store bytes, text or a stream for an owner.
// Exactly one of Data, Text or Reader should be set; Reader wins over Data
// and Data over Text.
type IngestRequest struct {
	OwnerID  uuid.UUID
	Data     []byte
	Text     string
	Reader   io.Reader
	FileName string
	// Path is the client side path; its last element names the file when
	// FileName is empty
	Path     string
	MimeType string
	// Driver names an upload driver (for example "archive") that transforms
	// the input before it is stored
	Driver   string
	GroupID  *uuid.UUID
	FolderID *uuid.UUID
	// Progress receives conversion progress; sends never block
	Progress chan<- Progress
}

// IngestURLRequest is a request to fetch a remote resource and store it.
type IngestURLRequest struct {
	OwnerID  uuid.UUID
	URL      string
	FileName string
	MimeType string
	// Driver names a source capable upload driver; empty means plain HTTP
	Driver   string
	GroupID  *uuid.UUID
	FolderID *uuid.UUID
	Progress chan<- Progress
}

// BackfillOptions tunes a batch preview backfill for one owner.
type BackfillOptions struct {
	// Force regenerates previews even for records that already carry them
	Force bool
}
