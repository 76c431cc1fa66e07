package config

import (
	"fmt"
	"log/slog"
	"time"

	s3storage "github.com/tendant/simple-ingest/pkg/simpleingest/storage/s3"
)

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *Config) error {
		if dbType != DatabaseMemory && dbType != DatabasePostgres {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == DatabasePostgres && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *Config) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMigrate enables table creation on startup
func WithMigrate(enabled bool) Option {
	return func(c *Config) error {
		c.Migrate = enabled
		return nil
	}
}

// WithMemoryStorage stores blobs in process memory
func WithMemoryStorage() Option {
	return func(c *Config) error {
		c.StorageType = StorageMemory
		return nil
	}
}

// WithFilesystemStorage stores blobs under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *Config) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = StorageFS
		c.BaseDir = baseDir
		return nil
	}
}

// WithS3Storage stores blobs in an S3-compatible bucket
func WithS3Storage(s3 s3storage.Config) Option {
	return func(c *Config) error {
		if s3.Bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		c.StorageType = StorageS3
		c.S3 = s3
		return nil
	}
}

// WithTools sets the ffmpeg and yt-dlp binaries. Empty values keep the
// current setting.
func WithTools(ffmpegPath, ytDlpPath string) Option {
	return func(c *Config) error {
		if ffmpegPath != "" {
			c.FFmpegPath = ffmpegPath
		}
		if ytDlpPath != "" {
			c.YtDlpPath = ytDlpPath
		}
		return nil
	}
}

// WithTempDir sets where spooled inputs and extracted archives are kept
func WithTempDir(dir string) Option {
	return func(c *Config) error {
		c.TempDir = dir
		return nil
	}
}

// WithFetchTimeout bounds URL fetches
func WithFetchTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return fmt.Errorf("fetch timeout must be positive, got %s", timeout)
		}
		c.FetchTimeout = timeout
		return nil
	}
}

// WithBackfillPageSize sets how many records a backfill reads per page
func WithBackfillPageSize(size int) Option {
	return func(c *Config) error {
		if size <= 0 {
			return fmt.Errorf("backfill page size must be positive, got %d", size)
		}
		c.BackfillPageSize = size
		return nil
	}
}

// WithLogger sets the logger handed to the service and drivers
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}
