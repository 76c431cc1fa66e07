package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("stream aborted")
}

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)

	ctx := context.Background()
	key := "blobs/ab/abcdef"
	data := []byte("hello fs")

	require.NoError(t, backend.Upload(ctx, key, bytes.NewReader(data)))

	meta, err := backend.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), meta.Size)

	ok, err := backend.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := backend.Download(ctx, key)
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, data, got)

	require.NoError(t, backend.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(tmp, key))
	assert.True(t, os.IsNotExist(err))

	// empty parent directories are removed, the base directory is kept
	_, err = os.Stat(filepath.Join(tmp, "blobs"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(tmp)
	assert.NoError(t, err)
}

func TestFSBackend_FailedUploadLeavesNothing(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)

	ctx := context.Background()
	err = backend.Upload(ctx, "blobs/aa/aaaa", failingReader{})
	require.Error(t, err)

	ok, err := backend.Exists(ctx, "blobs/aa/aaaa")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(filepath.Join(tmp, "blobs", "aa"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file must be removed")
}

func TestFSBackend_NotFound(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = backend.Stat(ctx, "missing")
	assert.ErrorIs(t, err, simpleingest.ErrBlobNotFound)

	_, err = backend.Download(ctx, "missing")
	assert.ErrorIs(t, err, simpleingest.ErrBlobNotFound)

	assert.ErrorIs(t, backend.Delete(ctx, "missing"), simpleingest.ErrBlobNotFound)
}

func TestFSBackend_RejectsEscapingKeys(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	err = backend.Upload(context.Background(), "../outside", bytes.NewReader([]byte("x")))
	assert.Error(t, err)
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
