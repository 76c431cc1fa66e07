package drivers

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// ErrUnsafePath is returned for archive entries that would land outside the
// extraction directory.
var ErrUnsafePath = errors.New("archive entry escapes extraction directory")

// archiveFormat is a container layout recognised by its leading bytes.
type archiveFormat string

const (
	formatZip     archiveFormat = "zip"
	formatGzip    archiveFormat = "gzip"
	formatZstd    archiveFormat = "zstd"
	formatLZ4     archiveFormat = "lz4"
	formatTar     archiveFormat = "tar"
	formatUnknown archiveFormat = ""
)

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
	tarMagic  = []byte("ustar")
)

// tarMagicOffset is where the ustar signature sits in a tar header
const tarMagicOffset = 257

func sniffArchive(header []byte) archiveFormat {
	switch {
	case bytes.HasPrefix(header, zipMagic):
		return formatZip
	case bytes.HasPrefix(header, gzipMagic):
		return formatGzip
	case bytes.HasPrefix(header, zstdMagic):
		return formatZstd
	case bytes.HasPrefix(header, lz4Magic):
		return formatLZ4
	case len(header) >= tarMagicOffset+len(tarMagic) && bytes.Equal(header[tarMagicOffset:tarMagicOffset+len(tarMagic)], tarMagic):
		return formatTar
	}
	return formatUnknown
}

// Archive expands zip and (optionally compressed) tar archives into a
// temporary directory that the pipeline stores as a directory blob.
type Archive struct {
	simpleingest.Capabilities
	tempDir string
}

// NewArchive creates the archive upload driver. Archives are expanded under
// tempDir.
func NewArchive(tempDir string) *Archive {
	return &Archive{
		Capabilities: simpleingest.Capabilities{
			Inputs: []simpleingest.InputMode{simpleingest.InputStream},
		},
		tempDir: tempDir,
	}
}

func (d *Archive) Name() string { return simpleingest.DriverArchive }

func (d *Archive) ProcessStream(ctx context.Context, input io.Reader, opts simpleingest.DriverOptions) (*simpleingest.DriverResult, error) {
	br := bufio.NewReaderSize(input, 1024)
	header, err := br.Peek(tarMagicOffset + len(tarMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read archive header: %w", err)
	}
	format := sniffArchive(header)
	if format == formatUnknown {
		return nil, fmt.Errorf("unrecognised archive format (extension %q)", opts.Extension)
	}

	dir, err := os.MkdirTemp(d.tempDir, "archive-*")
	if err != nil {
		return nil, fmt.Errorf("create extraction directory: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(dir) }

	var size int64
	if format == formatZip {
		size, err = d.extractZip(ctx, br, dir)
	} else {
		size, err = d.extractCompressedTar(ctx, br, format, dir)
	}
	if err != nil {
		cleanup()
		return nil, err
	}

	return &simpleingest.DriverResult{
		TempPath:  dir,
		Type:      simpleingest.MediaTypeDirectory,
		Extension: simpleingest.ExtensionNone,
		Size:      size,
		Cleanup:   cleanup,
	}, nil
}

func (d *Archive) extractCompressedTar(ctx context.Context, r io.Reader, format archiveFormat, dir string) (int64, error) {
	switch format {
	case formatGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return 0, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	case formatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return 0, fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	case formatLZ4:
		r = lz4.NewReader(r)
	}
	return extractTar(ctx, r, dir)
}

func extractTar(ctx context.Context, r io.Reader, dir string) (int64, error) {
	tr := tar.NewReader(r)
	var total int64
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read tar entry: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return 0, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return 0, err
			}
		case tar.TypeReg:
			n, err := writeFile(target, tr)
			if err != nil {
				return 0, err
			}
			total += n
		}
		// links and device entries are skipped
	}
}

// extractZip spools the stream since the zip directory sits at the end.
func (d *Archive) extractZip(ctx context.Context, r io.Reader, dir string) (int64, error) {
	path, cleanup, err := spool(ctx, d.tempDir, r, "zip")
	if err != nil {
		return 0, err
	}
	defer cleanup()

	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	var total int64
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return 0, err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return 0, err
			}
		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return 0, fmt.Errorf("open zip entry %s: %w", f.Name, err)
			}
			n, err := writeFile(target, rc)
			rc.Close()
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}

// safeJoin resolves an archive entry name below dir.
func safeJoin(dir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(name, "./")))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(dir, cleaned)
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func writeFile(target string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	return n, nil
}
