package memory_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
	memorystorage "github.com/tendant/simple-ingest/pkg/simpleingest/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "blobs/ab/abcdef"
	testData := "Hello, World! This is test data."

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData))
		assert.NoError(t, err)
	})

	t.Run("Stat", func(t *testing.T) {
		meta, err := backend.Stat(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.Equal(t, "text/plain; charset=utf-8", meta.ContentType)
		assert.False(t, meta.UpdatedAt.IsZero())
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := backend.Exists(ctx, testKey)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = backend.Exists(ctx, "blobs/00/missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		downloadedData, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, testData, string(downloadedData))
	})

	t.Run("Delete", func(t *testing.T) {
		key := "blobs/cd/cdef"
		require.NoError(t, backend.Upload(ctx, key, strings.NewReader(testData)))
		require.NoError(t, backend.Delete(ctx, key))

		_, err := backend.Stat(ctx, key)
		assert.ErrorIs(t, err, simpleingest.ErrBlobNotFound)
	})

	t.Run("ErrorCases", func(t *testing.T) {
		nonExistentKey := "nonexistent/key"

		meta, err := backend.Stat(ctx, nonExistentKey)
		assert.ErrorIs(t, err, simpleingest.ErrBlobNotFound)
		assert.Nil(t, meta)

		reader, err := backend.Download(ctx, nonExistentKey)
		assert.ErrorIs(t, err, simpleingest.ErrBlobNotFound)
		assert.Nil(t, reader)

		err = backend.Delete(ctx, nonExistentKey)
		assert.ErrorIs(t, err, simpleingest.ErrBlobNotFound)
	})
}

func TestMemoryBackendConcurrency(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()

	const numGoroutines = 10
	const numOperations = 50

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()

			for j := 0; j < numOperations; j++ {
				key := fmt.Sprintf("concurrent/%d/%d", goroutineID, j)
				data := fmt.Sprintf("data %d/%d", goroutineID, j)

				if err := backend.Upload(ctx, key, strings.NewReader(data)); err != nil {
					t.Error(err)
					return
				}
				rc, err := backend.Download(ctx, key)
				if err != nil {
					t.Error(err)
					return
				}
				got, _ := io.ReadAll(rc)
				rc.Close()
				assert.Equal(t, data, string(got))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, numGoroutines*numOperations, backend.Len())
}
