package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
	"github.com/tendant/simple-ingest/pkg/simpleingest/drivers"
	"github.com/tendant/simple-ingest/pkg/simpleingest/objectstore"
	"github.com/tendant/simple-ingest/pkg/simpleingest/repo/memory"
	repopg "github.com/tendant/simple-ingest/pkg/simpleingest/repo/postgres"
	fsstorage "github.com/tendant/simple-ingest/pkg/simpleingest/storage/fs"
	memorystorage "github.com/tendant/simple-ingest/pkg/simpleingest/storage/memory"
	s3storage "github.com/tendant/simple-ingest/pkg/simpleingest/storage/s3"
)

// Storage backend types
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Database types
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		DatabaseType:     DatabaseMemory,
		DBSchema:         "ingest",
		StorageType:      StorageMemory,
		FFmpegPath:       "ffmpeg",
		YtDlpPath:        "yt-dlp",
		FetchTimeout:     60 * time.Second,
		BackfillPageSize: 100,
	}
}

// Config describes how the ingestion service is assembled
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: ingest)
	Migrate      bool   // create tables on startup

	// Storage configuration
	StorageType string // "memory", "fs", "s3"
	BaseDir     string // fs only
	S3          s3storage.Config

	// Driver tooling
	FFmpegPath       string
	YtDlpPath        string
	TempDir          string
	ThumbnailBaseURL string

	FetchTimeout     time.Duration
	BackfillPageSize int

	Logger *slog.Logger
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabaseType != DatabaseMemory && c.DatabaseType != DatabasePostgres {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == DatabasePostgres && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.StorageType {
	case StorageMemory:
	case StorageFS:
		if c.BaseDir == "" {
			return errors.New("base_dir is required for fs storage")
		}
	case StorageS3:
		if c.S3.Bucket == "" {
			return errors.New("bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	if c.FetchTimeout <= 0 {
		return errors.New("fetch_timeout must be positive")
	}
	if c.BackfillPageSize <= 0 {
		return errors.New("backfill_page_size must be positive")
	}

	return nil
}

// Runtime is an assembled service together with the stores behind it
type Runtime struct {
	Service    simpleingest.Service
	Repository simpleingest.Repository
	Quota      simpleingest.QuotaStore
	Objects    *objectstore.Store

	close func()
}

// Close releases database connections
func (r *Runtime) Close() {
	if r.close != nil {
		r.close()
	}
}

// Build creates the repository, object store, driver registry and service
// described by the configuration.
func (c *Config) Build(ctx context.Context) (*Runtime, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Runtime{}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.close = closeRepo

	backend, err := c.buildStorageBackend(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.StorageType, err)
	}

	httpClient := &http.Client{Timeout: c.FetchTimeout}

	registry, err := drivers.NewDefaultRegistry(drivers.Config{
		FFmpegPath:       c.FFmpegPath,
		YtDlpPath:        c.YtDlpPath,
		TempDir:          c.TempDir,
		HTTPClient:       httpClient,
		ThumbnailBaseURL: c.ThumbnailBaseURL,
		Logger:           logger,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build driver registry: %w", err)
	}

	objects := objectstore.New(backend,
		objectstore.WithTempDir(c.TempDir),
		objectstore.WithLogger(logger))

	svc, err := simpleingest.New(
		simpleingest.WithRepository(repo),
		simpleingest.WithQuotaStore(repo),
		simpleingest.WithObjectStore(objects),
		simpleingest.WithRegistry(registry),
		simpleingest.WithHTTPClient(httpClient),
		simpleingest.WithLogger(logger),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Service = svc
	rt.Repository = repo
	rt.Quota = repo
	rt.Objects = objects
	return rt, nil
}

// store is implemented by both repository backends
type store interface {
	simpleingest.Repository
	simpleingest.QuotaStore
}

// buildRepository creates a repository based on the configuration
func (c *Config) buildRepository(ctx context.Context) (store, func(), error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(), nil, nil
	case DatabasePostgres:
		pool, err := c.newPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		repo := repopg.NewWithPool(pool)
		if c.Migrate {
			if err := c.migrate(ctx, pool, repo); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repo, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *Config) newPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	// set search_path for every session
	if c.DBSchema != "" {
		schema := pgx.Identifier{c.DBSchema}.Sanitize()
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+schema)
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

func (c *Config) migrate(ctx context.Context, pool *pgxpool.Pool, repo *repopg.Repository) error {
	if c.DBSchema != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{c.DBSchema}.Sanitize()); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", c.DBSchema, err)
		}
	}
	return repo.Migrate(ctx)
}

// PingPostgres verifies connectivity to Postgres
func (c *Config) PingPostgres(ctx context.Context) error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := c.newPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the configuration
func (c *Config) buildStorageBackend(ctx context.Context) (simpleingest.BlobStore, error) {
	switch c.StorageType {
	case StorageMemory:
		return memorystorage.New(), nil
	case StorageFS:
		return fsstorage.New(fsstorage.Config{BaseDir: c.BaseDir})
	case StorageS3:
		return s3storage.New(ctx, c.S3)
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageType)
	}
}
