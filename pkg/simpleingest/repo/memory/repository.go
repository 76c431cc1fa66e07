package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

type storeOwnerKey struct {
	storeID string
	ownerID uuid.UUID
}

type limitKey struct {
	userID uuid.UUID
	name   simpleingest.LimitName
}

// Repository implements simpleingest.Repository and simpleingest.QuotaStore
// using in-memory storage
type Repository struct {
	mu           sync.RWMutex
	contents     map[uuid.UUID]*simpleingest.Content
	byStoreOwner map[storeOwnerKey]uuid.UUID
	limits       map[limitKey]*simpleingest.UserLimit
	actions      []simpleingest.ContentAction
}

var (
	_ simpleingest.Repository = (*Repository)(nil)
	_ simpleingest.QuotaStore = (*Repository)(nil)
)

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		contents:     make(map[uuid.UUID]*simpleingest.Content),
		byStoreOwner: make(map[storeOwnerKey]uuid.UUID),
		limits:       make(map[limitKey]*simpleingest.UserLimit),
	}
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *simpleingest.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := storeOwnerKey{storeID: content.StoreID, ownerID: content.OwnerID}
	if _, exists := r.byStoreOwner[key]; exists {
		return simpleingest.ErrContentExists
	}

	// Create a copy to avoid external modifications
	contentCopy := *content
	r.contents[content.ID] = &contentCopy
	r.byStoreOwner[key] = content.ID

	return nil
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*simpleingest.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	content, exists := r.contents[id]
	if !exists {
		return nil, simpleingest.ErrContentNotFound
	}

	// Return a copy to prevent external modifications
	contentCopy := *content
	return &contentCopy, nil
}

func (r *Repository) FindByStoreAndOwner(ctx context.Context, storeID string, ownerID uuid.UUID) (*simpleingest.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byStoreOwner[storeOwnerKey{storeID: storeID, ownerID: ownerID}]
	if !exists {
		return nil, simpleingest.ErrContentNotFound
	}

	contentCopy := *r.contents[id]
	return &contentCopy, nil
}

func (r *Repository) UpdatePreviews(ctx context.Context, id uuid.UUID, previews simpleingest.PreviewSet) error {
	if err := previews.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	content, exists := r.contents[id]
	if !exists {
		return simpleingest.ErrContentNotFound
	}

	content.ApplyPreviews(previews)
	content.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) ListContentByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*simpleingest.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simpleingest.Content
	for _, content := range r.contents {
		if content.OwnerID == ownerID {
			contentCopy := *content
			result = append(result, &contentCopy)
		}
	}

	// Stable order so pages do not overlap
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if offset >= len(result) {
		return []*simpleingest.Content{}, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// Quota operations

func (r *Repository) GetLimit(ctx context.Context, userID uuid.UUID, name simpleingest.LimitName) (*simpleingest.UserLimit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit, exists := r.limits[limitKey{userID: userID, name: name}]
	if !exists {
		return nil, simpleingest.ErrLimitNotFound
	}
	limitCopy := *limit
	return &limitCopy, nil
}

func (r *Repository) SetLimit(ctx context.Context, limit *simpleingest.UserLimit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	limitCopy := *limit
	r.limits[limitKey{userID: limit.UserID, name: limit.Name}] = &limitCopy
	return nil
}

func (r *Repository) GetUsageSum(ctx context.Context, userID uuid.UUID, kind simpleingest.ActionKind, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum int64
	for _, action := range r.actions {
		if action.UserID == userID && action.Kind == kind && !action.CreatedAt.Before(since) {
			sum += action.Size
		}
	}
	return sum, nil
}

func (r *Repository) RecordAction(ctx context.Context, action *simpleingest.ContentAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions = append(r.actions, *action)
	return nil
}
