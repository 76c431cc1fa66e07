package objectstore_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
	"github.com/tendant/simple-ingest/pkg/simpleingest/objectstore"
	memorystorage "github.com/tendant/simple-ingest/pkg/simpleingest/storage/memory"
)

type abortingReader struct {
	data []byte
	err  error
}

func (r *abortingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newStore(t *testing.T) (*objectstore.Store, *memorystorage.Backend) {
	t.Helper()
	backend := memorystorage.New()
	return objectstore.New(backend, objectstore.WithTempDir(t.TempDir())), backend
}

func TestPutBlob_ContentAddressed(t *testing.T) {
	store, backend := newStore(t)
	ctx := context.Background()
	data := []byte("hello content addressing")

	first, err := store.PutBlob(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, digest(data), first.ID)
	assert.Equal(t, int64(len(data)), first.Size)

	second, err := store.PutBytes(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.Len())

	stat, err := store.Stat(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), stat.Size)

	got, err := store.ReadAll(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPutBlob_AbortedStreamCommitsNothing(t *testing.T) {
	store, backend := newStore(t)

	_, err := store.PutBlob(context.Background(), &abortingReader{
		data: []byte("partial"),
		err:  simpleingest.ErrQuotaExceeded,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, simpleingest.ErrQuotaExceeded)

	var storageErr *simpleingest.StorageError
	assert.True(t, errors.As(err, &storageErr))
	assert.Equal(t, 0, backend.Len())
}

func TestPutPath(t *testing.T) {
	store, _ := newStore(t)
	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(path, []byte("not really a png"), 0o644))

	blob, err := store.PutPath(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, digest([]byte("not really a png")), blob.ID)
}

func TestPutDirectory(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "b.txt"), []byte("bbbbb"), 0o644))

	blob, err := store.PutDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, int64(8), blob.Size)

	manifest, err := store.ReadManifest(ctx, blob.ID)
	require.NoError(t, err)
	require.Len(t, manifest.Entries, 2)
	assert.Equal(t, "a.txt", manifest.Entries[0].Path)
	assert.Equal(t, "docs/b.txt", manifest.Entries[1].Path)
	assert.Equal(t, digest([]byte("bbbbb")), manifest.Entries[1].ID)

	again, err := store.PutDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, blob.ID, again.ID, "identical trees share an id")
}

func TestPutDirectory_RejectsFile(t *testing.T) {
	store, _ := newStore(t)
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := store.PutDirectory(context.Background(), path)
	assert.Error(t, err)
}

func TestUnknownIDs(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
	}{
		{"malformed", "../../etc/passwd"},
		{"missing", digest([]byte("never stored"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Stat(ctx, tt.id)
			assert.ErrorIs(t, err, simpleingest.ErrBlobNotFound)

			_, err = store.Open(ctx, tt.id)
			assert.ErrorIs(t, err, simpleingest.ErrBlobNotFound)
		})
	}
}

func TestOpenStreams(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	blob, err := store.PutBytes(ctx, []byte("stream me"))
	require.NoError(t, err)

	rc, err := store.Open(ctx, blob.ID)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "stream me", string(got))
}
