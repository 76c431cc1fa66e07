package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Database:
//
//	DATABASE_URL - "memory" (default) or "postgres://..." / "postgresql://..."
//	DB_SCHEMA    - Postgres schema (default: "ingest")
//	DB_MIGRATE   - create tables on startup when true
//
// Storage:
//
//	STORAGE_URL - one of:
//	              "memory://" (default)
//	              "file:///path/to/data"
//	              "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true&prefix=blobs"
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_REGION are honoured for s3.
//
// Drivers:
//
//	FFMPEG_PATH, YTDLP_PATH, TEMP_DIR, THUMBNAIL_BASE_URL
//	FETCH_TIMEOUT      - Go duration, e.g. "90s"
//	BACKFILL_PAGE_SIZE - records per backfill page
func WithEnv(prefix string) Option {
	return func(c *Config) error {
		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}
		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}
		return applyDriverEnv(prefix, c)
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *Config) error {
	if v, ok := lookupEnv(prefix, "DB_SCHEMA"); ok && v != "" {
		c.DBSchema = v
	}
	migrate, ok, err := parseBoolEnv(prefix, "DB_MIGRATE")
	if err != nil {
		return err
	}
	if ok {
		c.Migrate = migrate
	}

	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")
	if !hasURL || dbURL == "" || dbURL == DatabaseMemory {
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = ""
		return nil
	}

	if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = dbURL
		return nil
	}

	return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(prefix string, c *Config) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")
	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.StorageType = StorageMemory
		return nil
	}

	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		path := u.Path
		if u.Host != "" {
			path = u.Host + path
		}
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.StorageType = StorageFS
		c.BaseDir = path
		return nil
	case "s3":
		return applyS3Storage(u, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyS3Storage configures S3 storage from a URL of the form
// s3://bucket?region=us-east-1&endpoint=http://localhost:9000
func applyS3Storage(u *url.URL, c *Config) error {
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	q := u.Query()
	s3 := c.S3
	s3.Bucket = u.Host
	s3.Region = firstNonEmpty(q.Get("region"), os.Getenv("AWS_REGION"), s3.Region, "us-east-1")
	s3.Endpoint = firstNonEmpty(q.Get("endpoint"), s3.Endpoint)
	s3.KeyPrefix = firstNonEmpty(q.Get("prefix"), s3.KeyPrefix)

	if v := q.Get("path_style"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
		}
		s3.UsePathStyle = b
	}
	if v := q.Get("create_bucket"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid create_bucket in STORAGE_URL: %w", err)
		}
		s3.CreateBucketIfNotExist = b
	}

	// Check for AWS credentials in environment
	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		s3.AccessKeyID = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		s3.SecretAccessKey = secretKey
	}

	c.StorageType = StorageS3
	c.S3 = s3
	return nil
}

// applyDriverEnv applies driver tooling configuration from environment
func applyDriverEnv(prefix string, c *Config) error {
	if v, ok := lookupEnv(prefix, "FFMPEG_PATH"); ok && v != "" {
		c.FFmpegPath = v
	}
	if v, ok := lookupEnv(prefix, "YTDLP_PATH"); ok && v != "" {
		c.YtDlpPath = v
	}
	if v, ok := lookupEnv(prefix, "TEMP_DIR"); ok && v != "" {
		c.TempDir = v
	}
	if v, ok := lookupEnv(prefix, "THUMBNAIL_BASE_URL"); ok && v != "" {
		c.ThumbnailBaseURL = v
	}

	if v, ok := lookupEnv(prefix, "FETCH_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration for %sFETCH_TIMEOUT: %w", prefix, err)
		}
		c.FetchTimeout = d
	}

	size, ok, err := parseIntEnv(prefix, "BACKFILL_PAGE_SIZE")
	if err != nil {
		return err
	}
	if ok {
		c.BackfillPageSize = size
	}
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseIntEnv(prefix, key string) (int, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
