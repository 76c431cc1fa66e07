package simpleingest

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the ingestion and preview pipeline
type Service interface {
	// Ingest stores bytes, text or a stream for an owner and returns the
	// content record, reusing an existing record for identical content.
	Ingest(ctx context.Context, req IngestRequest) (*Content, error)

	// IngestURL fetches a remote resource and ingests it.
	IngestURL(ctx context.Context, req IngestURLRequest) (*Content, error)

	// GeneratePreview derives previews for a stored blob. Driver failures
	// yield an empty set, not an error.
	GeneratePreview(ctx context.Context, storeID, mediaType, sourceHint string) (PreviewSet, error)

	// FindExisting returns the owner's record for storeID, or nil if none.
	FindExisting(ctx context.Context, storeID string, ownerID uuid.UUID) (*Content, error)

	// EnsurePreviews regenerates previews for a record that lacks them.
	EnsurePreviews(ctx context.Context, content *Content) (*Content, error)

	// RegenerateContentPreviews rebuilds the previews of one record
	// unconditionally and persists the result.
	RegenerateContentPreviews(ctx context.Context, content *Content) (*Content, error)

	// Remaining returns the owner's remaining byte allowance; limited is
	// false when no active ceiling applies.
	Remaining(ctx context.Context, ownerID uuid.UUID) (remaining int64, limited bool, err error)

	// Registry exposes the driver catalog
	Registry() *Registry
}
