package simpleingest

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrQuotaExceeded indicates the owner's remaining byte allowance was exceeded mid-stream
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrUnknownDriver indicates a named driver is not registered
	ErrUnknownDriver = errors.New("driver not registered")

	// ErrUnsupportedDriverInput indicates a driver lacks a required input mode
	ErrUnsupportedDriverInput = errors.New("driver does not support required input")

	// ErrFetchFailed indicates a remote resource could not be fetched
	ErrFetchFailed = errors.New("fetch failed")

	// ErrPreviewGenerationFailed indicates a preview driver failed. It is logged and
	// never surfaced as an ingestion failure.
	ErrPreviewGenerationFailed = errors.New("preview generation failed")

	// ErrContentNotFound indicates a content record was not found
	ErrContentNotFound = errors.New("content not found")

	// ErrContentExists indicates a record for the same store id and owner already exists
	ErrContentExists = errors.New("content already exists")

	// ErrBlobNotFound indicates a blob is missing from the object store
	ErrBlobNotFound = errors.New("blob not found")

	// ErrLimitNotFound indicates the owner has no configured limit of that name
	ErrLimitNotFound = errors.New("limit not found")

	// ErrEmptyInput indicates an ingest request carried no data
	ErrEmptyInput = errors.New("no input data")

	// ErrInvalidPreviewSet indicates preview fields were set without a medium preview
	ErrInvalidPreviewSet = errors.New("preview set requires a medium preview")
)

// IngestError represents an error raised while ingesting content for an owner
type IngestError struct {
	OwnerID uuid.UUID
	Op      string
	Err     error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest operation %s failed for owner %s: %v", e.Op, e.OwnerID, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// DriverError represents an error related to a driver lookup or invocation
type DriverError struct {
	Category DriverCategory
	Driver   string
	Op       string
	Err      error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%s driver %q %s: %v", e.Category, e.Driver, e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to object store operations
type StorageError struct {
	StoreID string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	if e.StoreID == "" {
		return fmt.Sprintf("storage operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage operation %s failed for blob %s: %v", e.Op, e.StoreID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
