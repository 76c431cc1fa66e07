package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// Scanner pages through an owner's content records and processes them with
// the provided processor.
type Scanner struct {
	repo   simpleingest.Repository
	logger *slog.Logger
}

// New creates a new Scanner instance. A nil logger selects slog.Default.
func New(repo simpleingest.Repository, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{repo: repo, logger: logger.With("component", "scan")}
}

// ScanOptions configures the scan operation.
type ScanOptions struct {
	// OwnerID selects whose contents are scanned
	OwnerID uuid.UUID

	// Processor defines the processing logic (required unless DryRun is true)
	Processor ContentProcessor

	// BatchSize controls how many contents to query at once (default: 100)
	BatchSize int

	// DryRun if true, doesn't process contents, just reports what would be processed
	DryRun bool

	// OnProgress is called after each batch is processed (optional)
	OnProgress func(processed, total int64)
}

// ScanResult contains statistics about the scan operation.
type ScanResult struct {
	TotalFound     int64    `json:"total_found"`
	TotalProcessed int64    `json:"total_processed"`
	TotalFailed    int64    `json:"total_failed"`
	TotalSkipped   int64    `json:"total_skipped"`
	FailedIDs      []string `json:"failed_ids,omitempty"`
}

// Scan lists the owner's contents batch by batch and processes each one. A
// failing content is recorded and the scan continues with the next one.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}

	if !opts.DryRun && opts.Processor == nil {
		return result, fmt.Errorf("processor is required when DryRun is false")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}

	logger := s.logger.With("owner_id", opts.OwnerID.String())

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.repo.ListContentByOwner(ctx, opts.OwnerID, opts.BatchSize, offset)
		if err != nil {
			return result, fmt.Errorf("failed to list contents: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		result.TotalFound += int64(len(batch))

		for _, content := range batch {
			if opts.DryRun {
				logger.Info("Would process content",
					"content_id", content.ID.String(),
					"media_type", content.MediaType,
					"has_preview", content.HasPreview())
				result.TotalProcessed++
				continue
			}

			err := opts.Processor.Process(ctx, content)
			switch {
			case err == nil:
				result.TotalProcessed++
			case errors.Is(err, ErrSkipped):
				result.TotalSkipped++
			default:
				result.TotalFailed++
				result.FailedIDs = append(result.FailedIDs, content.ID.String())
				logger.Error("Failed to process content", "content_id", content.ID.String(), "error", err)
			}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(result.TotalProcessed+result.TotalFailed+result.TotalSkipped, result.TotalFound)
		}

		if len(batch) < opts.BatchSize {
			break
		}
		offset += opts.BatchSize
	}

	return result, nil
}

// ForEach processes each of the owner's contents with a callback function.
func (s *Scanner) ForEach(ctx context.Context, ownerID uuid.UUID, fn func(context.Context, *simpleingest.Content) error) (*ScanResult, error) {
	return s.Scan(ctx, ScanOptions{
		OwnerID:   ownerID,
		Processor: &funcProcessor{fn: fn},
	})
}

// funcProcessor adapts a function to the ContentProcessor interface.
type funcProcessor struct {
	fn func(context.Context, *simpleingest.Content) error
}

func (p *funcProcessor) Process(ctx context.Context, content *simpleingest.Content) error {
	return p.fn(ctx, content)
}
