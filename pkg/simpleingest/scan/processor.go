package scan

import (
	"context"
	"errors"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// ErrSkipped marks a content record that needed no processing. The scan
// counts it as skipped rather than failed.
var ErrSkipped = errors.New("content skipped")

// ContentProcessor processes individual content records.
type ContentProcessor interface {
	// Process is called for each content found during scan.
	// Return error to mark this content as failed (scan continues with next content).
	Process(ctx context.Context, content *simpleingest.Content) error
}

// PreviewBackfill fills in previews for records that were stored before a
// suitable preview driver was available.
type PreviewBackfill struct {
	svc  simpleingest.Service
	opts simpleingest.BackfillOptions
}

// NewPreviewBackfill creates a processor that generates missing previews
// through svc.
func NewPreviewBackfill(svc simpleingest.Service, opts simpleingest.BackfillOptions) *PreviewBackfill {
	return &PreviewBackfill{svc: svc, opts: opts}
}

func (p *PreviewBackfill) Process(ctx context.Context, content *simpleingest.Content) error {
	var (
		updated *simpleingest.Content
		err     error
	)
	switch {
	case p.opts.Force:
		updated, err = p.svc.RegenerateContentPreviews(ctx, content)
	case content.HasPreview():
		return ErrSkipped
	default:
		updated, err = p.svc.EnsurePreviews(ctx, content)
	}
	if err != nil {
		return err
	}
	if !updated.HasPreview() {
		return ErrSkipped
	}
	return nil
}
