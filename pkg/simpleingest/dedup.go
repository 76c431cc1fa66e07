package simpleingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

func (s *service) FindExisting(ctx context.Context, storeID string, ownerID uuid.UUID) (*Content, error) {
	content, err := s.repository.FindByStoreAndOwner(ctx, storeID, ownerID)
	if errors.Is(err, ErrContentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find existing content: %w", err)
	}
	return content, nil
}

func (s *service) EnsurePreviews(ctx context.Context, content *Content) (*Content, error) {
	if content == nil {
		return nil, ErrContentNotFound
	}
	if content.HasPreview() {
		return content, nil
	}
	return s.regenerate(ctx, content)
}

func (s *service) RegenerateContentPreviews(ctx context.Context, content *Content) (*Content, error) {
	if content == nil {
		return nil, ErrContentNotFound
	}
	return s.regenerate(ctx, content)
}

// regenerate rebuilds previews and writes them to the record. Concurrent
// calls for the same record share one generation.
func (s *service) regenerate(ctx context.Context, content *Content) (*Content, error) {
	v, err, _ := s.backfills.Do(content.ID.String(), func() (interface{}, error) {
		set, err := s.GeneratePreview(ctx, content.StoreID, content.MediaType, "")
		if err != nil {
			return nil, err
		}
		if set.IsEmpty() {
			return content, nil
		}
		if err := set.Validate(); err != nil {
			return nil, err
		}

		if err := s.repository.UpdatePreviews(ctx, content.ID, set); err != nil {
			return nil, fmt.Errorf("update previews: %w", err)
		}

		updated := *content
		updated.ApplyPreviews(set)
		updated.UpdatedAt = s.now().UTC()

		s.logger.Info("Content previews regenerated",
			"content_id", content.ID.String(),
			"store_id", content.StoreID,
			"preview_store_id", updated.MediumPreviewStoreID)
		return &updated, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Content), nil
}
