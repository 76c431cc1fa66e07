package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

func TestHandlePostgresError(t *testing.T) {
	r := &Repository{}

	tests := []struct {
		name   string
		err    error
		target error
		msg    string
	}{
		{
			name:   "store owner unique violation",
			err:    &pgconn.PgError{Code: "23505", ConstraintName: "content_store_owner_key"},
			target: simpleingest.ErrContentExists,
		},
		{
			name: "other unique violation",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "content_pkey"},
			msg:  "duplicate entry",
		},
		{
			name: "missing table",
			err:  &pgconn.PgError{Code: "42P01"},
			msg:  "migration required",
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
			msg:  "connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.handlePostgresError("op", tt.err)
			if tt.target != nil {
				assert.ErrorIs(t, got, tt.target)
			}
			if tt.msg != "" {
				assert.Contains(t, got.Error(), tt.msg)
			}
		})
	}
}

func TestNullHelpers(t *testing.T) {
	assert.Nil(t, nullString(""))
	assert.Equal(t, "x", *nullString("x"))
	assert.Nil(t, nullSize("", 10))
	assert.Equal(t, int64(10), *nullSize("id", 10))
	assert.Equal(t, "", deref[string](nil))
}

// TestRepository_Integration runs against a live database when
// DATABASE_URL is set.
func TestRepository_Integration(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewWithPool(pool)
	require.NoError(t, repo.Migrate(ctx))

	owner := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	content := &simpleingest.Content{
		ID:        uuid.New(),
		StoreID:   uuid.NewString(),
		OwnerID:   owner,
		Name:      "a.png",
		Size:      42,
		MediaType: "image/png",
		Extension: "png",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.CreateContent(ctx, content))

	dup := *content
	dup.ID = uuid.New()
	assert.ErrorIs(t, repo.CreateContent(ctx, &dup), simpleingest.ErrContentExists)

	found, err := repo.FindByStoreAndOwner(ctx, content.StoreID, owner)
	require.NoError(t, err)
	assert.Equal(t, content.ID, found.ID)
	assert.False(t, found.HasPreview())

	require.NoError(t, repo.UpdatePreviews(ctx, content.ID, simpleingest.PreviewSet{
		Medium:    &simpleingest.PreviewFile{StoreID: "m", Size: 7},
		MediaType: "image/png",
		Extension: "png",
	}))
	got, err := repo.GetContent(ctx, content.ID)
	require.NoError(t, err)
	assert.Equal(t, "m", got.MediumPreviewStoreID)
	assert.Equal(t, int64(42), got.Size)

	page, err := repo.ListContentByOwner(ctx, owner, 10, 0)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	require.NoError(t, repo.SetLimit(ctx, &simpleingest.UserLimit{
		UserID: owner, Name: simpleingest.LimitSaveContentSize, Value: 100, Period: time.Hour, IsActive: true,
	}))
	limit, err := repo.GetLimit(ctx, owner, simpleingest.LimitSaveContentSize)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, limit.Period)

	require.NoError(t, repo.RecordAction(ctx, &simpleingest.ContentAction{
		ID: uuid.New(), UserID: owner, ContentID: content.ID, Kind: simpleingest.ActionUpload, Size: 42, CreatedAt: now,
	}))
	sum, err := repo.GetUsageSum(ctx, owner, simpleingest.ActionUpload, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(42), sum)
}
