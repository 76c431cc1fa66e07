// Package objectstore implements a content-addressed blob store on top of a
// key/value storage backend. A blob's id is the hex BLAKE3 digest of its
// bytes.
package objectstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// ManifestType marks a directory manifest blob
const ManifestType = "directory"

// Manifest describes a stored directory. Its own blob id is the directory id.
type Manifest struct {
	Type    string          `json:"type"`
	Size    int64           `json:"size"`
	Entries []ManifestEntry `json:"entries"`
}

// ManifestEntry is one file of a stored directory
type ManifestEntry struct {
	Path string `json:"path"`
	ID   string `json:"id"`
	Size int64  `json:"size"`
}

var _ simpleingest.ObjectStore = (*Store)(nil)

// Store is the content-addressed object store
type Store struct {
	backend simpleingest.BlobStore
	tempDir string
	logger  *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithTempDir sets the directory used to spool incoming streams
func WithTempDir(dir string) Option {
	return func(s *Store) {
		s.tempDir = dir
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a content-addressed store over backend
func New(backend simpleingest.BlobStore, options ...Option) *Store {
	s := &Store{backend: backend}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "objectstore")
	return s
}

// ObjectKey returns the backend key for a blob id
func ObjectKey(id string) string {
	return fmt.Sprintf("blobs/%s/%s", id[:2], id)
}

func validID(id string) bool {
	if len(id) != 64 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

func (s *Store) key(id string) (string, error) {
	if !validID(id) {
		return "", &simpleingest.StorageError{StoreID: id, Op: "resolve", Err: simpleingest.ErrBlobNotFound}
	}
	return ObjectKey(id), nil
}

// PutBlob spools the stream to a temporary file while hashing it and writes
// it to the backend only once the stream has been read to the end without
// error. An aborted stream commits nothing.
func (s *Store) PutBlob(ctx context.Context, reader io.Reader) (simpleingest.StoredBlob, error) {
	tmp, err := os.CreateTemp(s.tempDir, "ingest-spool-*")
	if err != nil {
		return simpleingest.StoredBlob{}, &simpleingest.StorageError{Op: "spool", Err: err}
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	hasher := blake3.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), reader)
	if err != nil {
		return simpleingest.StoredBlob{}, &simpleingest.StorageError{Op: "spool", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return simpleingest.StoredBlob{}, &simpleingest.StorageError{Op: "spool", Err: err}
	}

	id := hex.EncodeToString(hasher.Sum(nil))
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return simpleingest.StoredBlob{}, &simpleingest.StorageError{StoreID: id, Op: "spool", Err: err}
	}

	if err := s.commit(ctx, id, tmp); err != nil {
		return simpleingest.StoredBlob{}, err
	}
	return simpleingest.StoredBlob{ID: id, Size: size}, nil
}

// PutBytes stores an in-memory blob
func (s *Store) PutBytes(ctx context.Context, data []byte) (simpleingest.StoredBlob, error) {
	sum := blake3.Sum256(data)
	id := hex.EncodeToString(sum[:])
	if err := s.commit(ctx, id, bytes.NewReader(data)); err != nil {
		return simpleingest.StoredBlob{}, err
	}
	return simpleingest.StoredBlob{ID: id, Size: int64(len(data))}, nil
}

// PutPath imports a local file
func (s *Store) PutPath(ctx context.Context, path string) (simpleingest.StoredBlob, error) {
	f, err := os.Open(path)
	if err != nil {
		return simpleingest.StoredBlob{}, &simpleingest.StorageError{Op: "import", Err: err}
	}
	defer f.Close()

	blob, err := s.PutBlob(ctx, f)
	if err != nil {
		return simpleingest.StoredBlob{}, err
	}
	return blob, nil
}

// PutDirectory stores every regular file below dir and then a manifest
// listing them. The manifest's id is returned with the summed file size.
func (s *Store) PutDirectory(ctx context.Context, dir string) (simpleingest.StoredBlob, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return simpleingest.StoredBlob{}, &simpleingest.StorageError{Op: "import_directory", Err: err}
	}
	if !info.IsDir() {
		return simpleingest.StoredBlob{}, &simpleingest.StorageError{Op: "import_directory", Err: fmt.Errorf("%s is not a directory", dir)}
	}

	manifest := Manifest{Type: ManifestType, Entries: []ManifestEntry{}}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		blob, err := s.PutPath(ctx, path)
		if err != nil {
			return err
		}
		manifest.Entries = append(manifest.Entries, ManifestEntry{
			Path: filepath.ToSlash(rel),
			ID:   blob.ID,
			Size: blob.Size,
		})
		manifest.Size += blob.Size
		return nil
	})
	if err != nil {
		return simpleingest.StoredBlob{}, &simpleingest.StorageError{Op: "import_directory", Err: err}
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return simpleingest.StoredBlob{}, &simpleingest.StorageError{Op: "import_directory", Err: err}
	}
	blob, err := s.PutBytes(ctx, data)
	if err != nil {
		return simpleingest.StoredBlob{}, err
	}

	s.logger.Debug("Directory stored", "store_id", blob.ID, "files", len(manifest.Entries), "size", manifest.Size)
	return simpleingest.StoredBlob{ID: blob.ID, Size: manifest.Size}, nil
}

// commit uploads the blob unless the backend already holds it.
func (s *Store) commit(ctx context.Context, id string, reader io.Reader) error {
	key := ObjectKey(id)
	exists, err := s.backend.Exists(ctx, key)
	if err != nil {
		return &simpleingest.StorageError{StoreID: id, Op: "exists", Err: err}
	}
	if exists {
		return nil
	}
	if err := s.backend.Upload(ctx, key, reader); err != nil {
		return &simpleingest.StorageError{StoreID: id, Op: "upload", Err: err}
	}
	return nil
}

// Stat returns the backend's accounting for a blob
func (s *Store) Stat(ctx context.Context, id string) (simpleingest.BlobStat, error) {
	key, err := s.key(id)
	if err != nil {
		return simpleingest.BlobStat{}, err
	}
	meta, err := s.backend.Stat(ctx, key)
	if err != nil {
		return simpleingest.BlobStat{}, &simpleingest.StorageError{StoreID: id, Op: "stat", Err: err}
	}
	return simpleingest.BlobStat{ID: id, Size: meta.Size, UpdatedAt: meta.UpdatedAt}, nil
}

// Open returns a stream over a blob
func (s *Store) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}
	rc, err := s.backend.Download(ctx, key)
	if err != nil {
		return nil, &simpleingest.StorageError{StoreID: id, Op: "open", Err: err}
	}
	return rc, nil
}

// ReadAll returns a blob's bytes
func (s *Store) ReadAll(ctx context.Context, id string) ([]byte, error) {
	rc, err := s.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &simpleingest.StorageError{StoreID: id, Op: "read", Err: err}
	}
	return data, nil
}

// ReadManifest loads the manifest of a stored directory
func (s *Store) ReadManifest(ctx context.Context, id string) (*Manifest, error) {
	data, err := s.ReadAll(ctx, id)
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil || manifest.Type != ManifestType {
		return nil, &simpleingest.StorageError{StoreID: id, Op: "read_manifest", Err: errors.New("blob is not a directory manifest")}
	}
	return &manifest, nil
}
