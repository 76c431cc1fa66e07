package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpleingest.Repository and simpleingest.QuotaStore
// using PostgreSQL
type Repository struct {
	db DBTX
}

var (
	_ simpleingest.Repository = (*Repository)(nil)
	_ simpleingest.QuotaStore = (*Repository)(nil)
)

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the tables used by the repository when missing
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if pgErr.ConstraintName == "content_store_owner_key" {
				return simpleingest.ErrContentExists
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const contentColumns = `
	id, store_id, owner_id, group_id, folder_id, name, size, media_type, extension,
	medium_preview_store_id, medium_preview_size,
	small_preview_store_id, small_preview_size,
	large_preview_store_id, large_preview_size,
	preview_media_type, preview_extension, created_at, updated_at`

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullSize(storeID string, size int64) *int64 {
	if storeID == "" {
		return nil
	}
	return &size
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func scanContent(row pgx.Row) (*simpleingest.Content, error) {
	var c simpleingest.Content
	var mediumID, smallID, largeID *string
	var mediumSize, smallSize, largeSize *int64
	var previewMediaType, previewExtension *string
	err := row.Scan(
		&c.ID, &c.StoreID, &c.OwnerID, &c.GroupID, &c.FolderID, &c.Name, &c.Size, &c.MediaType, &c.Extension,
		&mediumID, &mediumSize,
		&smallID, &smallSize,
		&largeID, &largeSize,
		&previewMediaType, &previewExtension, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.MediumPreviewStoreID, c.MediumPreviewSize = deref(mediumID), deref(mediumSize)
	c.SmallPreviewStoreID, c.SmallPreviewSize = deref(smallID), deref(smallSize)
	c.LargePreviewStoreID, c.LargePreviewSize = deref(largeID), deref(largeSize)
	c.PreviewMediaType, c.PreviewExtension = deref(previewMediaType), deref(previewExtension)
	return &c, nil
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *simpleingest.Content) error {
	query := `INSERT INTO content (` + contentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.db.Exec(ctx, query,
		content.ID, content.StoreID, content.OwnerID, content.GroupID, content.FolderID,
		content.Name, content.Size, content.MediaType, content.Extension,
		nullString(content.MediumPreviewStoreID), nullSize(content.MediumPreviewStoreID, content.MediumPreviewSize),
		nullString(content.SmallPreviewStoreID), nullSize(content.SmallPreviewStoreID, content.SmallPreviewSize),
		nullString(content.LargePreviewStoreID), nullSize(content.LargePreviewStoreID, content.LargePreviewSize),
		nullString(content.PreviewMediaType), nullString(content.PreviewExtension),
		content.CreatedAt, content.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create content", err)
	}

	return nil
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*simpleingest.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM content WHERE id = $1`

	content, err := scanContent(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, simpleingest.ErrContentNotFound
	}
	if err != nil {
		return nil, r.handlePostgresError("get content", err)
	}
	return content, nil
}

func (r *Repository) FindByStoreAndOwner(ctx context.Context, storeID string, ownerID uuid.UUID) (*simpleingest.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM content WHERE store_id = $1 AND owner_id = $2`

	content, err := scanContent(r.db.QueryRow(ctx, query, storeID, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, simpleingest.ErrContentNotFound
	}
	if err != nil {
		return nil, r.handlePostgresError("find content by store and owner", err)
	}
	return content, nil
}

func (r *Repository) UpdatePreviews(ctx context.Context, id uuid.UUID, previews simpleingest.PreviewSet) error {
	if err := previews.Validate(); err != nil {
		return err
	}

	var c simpleingest.Content
	c.ApplyPreviews(previews)

	query := `
		UPDATE content SET
			medium_preview_store_id = $2, medium_preview_size = $3,
			small_preview_store_id = $4, small_preview_size = $5,
			large_preview_store_id = $6, large_preview_size = $7,
			preview_media_type = $8, preview_extension = $9,
			updated_at = $10
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id,
		nullString(c.MediumPreviewStoreID), nullSize(c.MediumPreviewStoreID, c.MediumPreviewSize),
		nullString(c.SmallPreviewStoreID), nullSize(c.SmallPreviewStoreID, c.SmallPreviewSize),
		nullString(c.LargePreviewStoreID), nullSize(c.LargePreviewStoreID, c.LargePreviewSize),
		nullString(c.PreviewMediaType), nullString(c.PreviewExtension),
		time.Now().UTC())
	if err != nil {
		return r.handlePostgresError("update previews", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleingest.ErrContentNotFound
	}
	return nil
}

func (r *Repository) ListContentByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*simpleingest.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM content
		WHERE owner_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, r.handlePostgresError("list content by owner", err)
	}
	defer rows.Close()

	result := []*simpleingest.Content{}
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan content", err)
		}
		result = append(result, content)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate content rows", err)
	}
	return result, nil
}

// Quota operations

func (r *Repository) GetLimit(ctx context.Context, userID uuid.UUID, name simpleingest.LimitName) (*simpleingest.UserLimit, error) {
	query := `SELECT user_id, name, value, period_seconds, is_active FROM user_limit WHERE user_id = $1 AND name = $2`

	var (
		limit         simpleingest.UserLimit
		limitName     string
		periodSeconds int64
	)
	err := r.db.QueryRow(ctx, query, userID, string(name)).Scan(
		&limit.UserID, &limitName, &limit.Value, &periodSeconds, &limit.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, simpleingest.ErrLimitNotFound
	}
	if err != nil {
		return nil, r.handlePostgresError("get limit", err)
	}

	limit.Name = simpleingest.LimitName(limitName)
	limit.Period = time.Duration(periodSeconds) * time.Second
	return &limit, nil
}

func (r *Repository) SetLimit(ctx context.Context, limit *simpleingest.UserLimit) error {
	query := `
		INSERT INTO user_limit (user_id, name, value, period_seconds, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, name) DO UPDATE SET
			value = EXCLUDED.value,
			period_seconds = EXCLUDED.period_seconds,
			is_active = EXCLUDED.is_active`

	_, err := r.db.Exec(ctx, query,
		limit.UserID, string(limit.Name), limit.Value, int64(limit.Period/time.Second), limit.IsActive)
	if err != nil {
		return r.handlePostgresError("set limit", err)
	}
	return nil
}

func (r *Repository) GetUsageSum(ctx context.Context, userID uuid.UUID, kind simpleingest.ActionKind, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(size), 0)::BIGINT FROM content_action
		WHERE user_id = $1 AND kind = $2 AND created_at >= $3`

	var sum int64
	if err := r.db.QueryRow(ctx, query, userID, string(kind), since).Scan(&sum); err != nil {
		return 0, r.handlePostgresError("get usage sum", err)
	}
	return sum, nil
}

func (r *Repository) RecordAction(ctx context.Context, action *simpleingest.ContentAction) error {
	query := `
		INSERT INTO content_action (id, user_id, content_id, kind, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		action.ID, action.UserID, action.ContentID, string(action.Kind), action.Size, action.CreatedAt)
	if err != nil {
		return r.handlePostgresError("record action", err)
	}
	return nil
}
