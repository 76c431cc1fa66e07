package s3

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(context.Background(), Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(context.Background(), Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
	})

	t.Run("KeyPrefix", func(t *testing.T) {
		backend, err := New(context.Background(), Config{
			Bucket:          "test-bucket",
			KeyPrefix:       "ingest",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "ingest/blobs/ab/abc", backend.key("blobs/ab/abc"))
	})
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed not found", &types.NotFound{}, true},
		{"typed no such key", &types.NoSuchKey{}, true},
		{"generic api error", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

// TestS3Backend_Integration runs against a live S3-compatible endpoint when
// S3_TEST_ENDPOINT is set (for example a local MinIO).
func TestS3Backend_Integration(t *testing.T) {
	endpoint := os.Getenv("S3_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("S3_TEST_ENDPOINT not set")
	}

	ctx := context.Background()
	backend, err := New(ctx, Config{
		Bucket:                 "simple-ingest-test",
		Endpoint:               endpoint,
		UsePathStyle:           true,
		AccessKeyID:            os.Getenv("S3_TEST_ACCESS_KEY"),
		SecretAccessKey:        os.Getenv("S3_TEST_SECRET_KEY"),
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	key := "blobs/te/test-object"
	require.NoError(t, backend.Upload(ctx, key, strings.NewReader("hello s3")))

	meta, err := backend.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(8), meta.Size)

	require.NoError(t, backend.Delete(ctx, key))
	ok, err := backend.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = backend.Download(ctx, key)
	assert.ErrorIs(t, err, simpleingest.ErrBlobNotFound)
}
