package simpleingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
)

var errNoPayload = errors.New("driver result carries no payload")

// ingestInput is the normalized form of both ingest requests.
type ingestInput struct {
	ownerID    uuid.UUID
	reader     io.Reader
	fileName   string
	mimeType   string
	driver     string
	sourceHint string
	groupID    *uuid.UUID
	folderID   *uuid.UUID
	progress   chan<- Progress
}

// Ingest takes ownership of req.Reader and closes it when it is closable.
func (s *service) Ingest(ctx context.Context, req IngestRequest) (*Content, error) {
	if c, ok := req.Reader.(io.Closer); ok {
		defer c.Close()
	}

	var reader io.Reader
	switch {
	case req.Reader != nil:
		reader = req.Reader
	case req.Data != nil:
		reader = bytes.NewReader(req.Data)
	case req.Text != "":
		reader = strings.NewReader(req.Text)
	default:
		return nil, &IngestError{OwnerID: req.OwnerID, Op: "ingest", Err: ErrEmptyInput}
	}

	fileName := req.FileName
	if fileName == "" && req.Path != "" {
		fileName = FileNameFromPath(req.Path)
	}

	content, err := s.ingest(ctx, ingestInput{
		ownerID:  req.OwnerID,
		reader:   reader,
		fileName: fileName,
		mimeType: req.MimeType,
		driver:   req.Driver,
		groupID:  req.GroupID,
		folderID: req.FolderID,
		progress: req.Progress,
	})
	if err != nil {
		return nil, &IngestError{OwnerID: req.OwnerID, Op: "ingest", Err: err}
	}
	return content, nil
}

func (s *service) IngestURL(ctx context.Context, req IngestURLRequest) (*Content, error) {
	content, err := s.ingestURL(ctx, req)
	if err != nil {
		return nil, &IngestError{OwnerID: req.OwnerID, Op: "ingest_url", Err: err}
	}
	return content, nil
}

func (s *service) ingestURL(ctx context.Context, req IngestURLRequest) (*Content, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, ErrEmptyInput
	}

	in := ingestInput{
		ownerID:    req.OwnerID,
		fileName:   req.FileName,
		mimeType:   req.MimeType,
		driver:     req.Driver,
		sourceHint: req.URL,
		groupID:    req.GroupID,
		folderID:   req.FolderID,
		progress:   req.Progress,
	}
	if in.fileName == "" {
		in.fileName = FileNameFromURL(req.URL)
	}

	if req.Driver != "" {
		d, ok := s.registry.Select(CategoryUpload, req.Driver)
		if !ok {
			return nil, &DriverError{Category: CategoryUpload, Driver: req.Driver, Op: "select", Err: ErrUnknownDriver}
		}
		if Supports(d, InputSource) {
			res, err := d.(SourceProcessor).ProcessSource(ctx, req.URL, DriverOptions{Progress: req.Progress})
			if err != nil {
				return nil, &DriverError{Category: CategoryUpload, Driver: req.Driver, Op: "process_source", Err: err}
			}
			defer res.Close()

			reader, err := resultReader(res)
			if err != nil {
				return nil, err
			}
			defer reader.Close()
			in.reader = reader
			in.driver = ""
			if in.mimeType == "" {
				in.mimeType = res.Type
			}
			if res.Extension != "" && ExtensionFromName(in.fileName) == "" {
				in.fileName = strings.TrimSuffix(in.fileName, ".") + "." + res.Extension
			}
			return s.ingest(ctx, in)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetchFailed, req.URL, resp.Status)
	}

	if in.mimeType == "" {
		if ct := NormalizeMediaType(resp.Header.Get("Content-Type")); ct != "" && ct != "application/octet-stream" {
			in.mimeType = ct
		}
	}
	in.reader = resp.Body

	return s.ingest(ctx, in)
}

// ingest runs the pipeline: pre-transform, quota wrap, store write, dedup,
// previews and record creation.
func (s *service) ingest(ctx context.Context, in ingestInput) (*Content, error) {
	logger := s.logger.With("owner_id", in.ownerID.String())

	extension := ExtensionFromName(in.fileName)
	mediaType := DetectMediaType(in.mimeType, in.fileName, extension)
	if extension == "" {
		extension = SubType(mediaType)
	}

	reader := in.reader

	if IsVideo(mediaType) || (PrimaryType(mediaType) != "audio" && IsVideo(extension)) {
		converted, res, err := s.convertVideo(ctx, reader, extension, in.progress)
		if err != nil {
			return nil, err
		}
		if res != nil {
			defer res.Close()
			defer converted.Close()
			reader = converted
			if res.Type != "" {
				mediaType = res.Type
			}
			if res.Extension != "" {
				extension = res.Extension
			}
		}
	}

	remaining, limited, err := s.Remaining(ctx, in.ownerID)
	if err != nil {
		return nil, fmt.Errorf("compute remaining quota: %w", err)
	}
	if limited {
		reader = NewQuotaReader(reader, remaining)
	}

	var (
		storeID string
		size    int64
	)

	if in.driver != "" {
		blob, resType, resExt, err := s.runUploadDriver(ctx, in.driver, reader, extension, in.progress)
		if err != nil {
			return nil, err
		}
		storeID, size = blob.ID, blob.Size
		if resType != "" {
			mediaType = resType
		}
		if resExt != "" {
			extension = resExt
		}
	} else {
		blob, err := s.objects.PutBlob(ctx, reader)
		if err != nil {
			return nil, err
		}
		stat, err := s.objects.Stat(ctx, blob.ID)
		if err != nil {
			return nil, err
		}
		storeID, size = stat.ID, stat.Size
	}

	logger = logger.With("store_id", storeID)

	existing, err := s.FindExisting(ctx, storeID, in.ownerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Debug("Content already stored for owner", "content_id", existing.ID.String())
		return s.EnsurePreviews(ctx, existing)
	}

	previews, err := s.GeneratePreview(ctx, storeID, mediaType, in.sourceHint)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	content := &Content{
		ID:        uuid.New(),
		StoreID:   storeID,
		OwnerID:   in.ownerID,
		GroupID:   in.groupID,
		FolderID:  in.folderID,
		Name:      in.fileName,
		Size:      size,
		MediaType: mediaType,
		Extension: extension,
		CreatedAt: now,
		UpdatedAt: now,
	}
	content.ApplyPreviews(previews)

	if err := s.repository.CreateContent(ctx, content); err != nil {
		if errors.Is(err, ErrContentExists) {
			winner, findErr := s.repository.FindByStoreAndOwner(ctx, storeID, in.ownerID)
			if findErr != nil {
				return nil, fmt.Errorf("resolve concurrent create: %w", findErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("create content: %w", err)
	}

	s.recordUpload(ctx, content)

	logger.Info("Content ingested", "content_id", content.ID.String(), "size", size, "media_type", mediaType)
	return content, nil
}

// convertVideo pipes the stream through the streamable video converter.
// A nil result means no converter is registered and the input passes through.
func (s *service) convertVideo(ctx context.Context, input io.Reader, extension string, progress chan<- Progress) (io.ReadCloser, *DriverResult, error) {
	d, ok := s.registry.Select(CategoryConvert, DriverVideoToStreamable)
	if !ok {
		s.logger.Debug("No video converter registered, storing video as is")
		return nil, nil, nil
	}
	if !Supports(d, InputStream) {
		return nil, nil, &DriverError{Category: CategoryConvert, Driver: d.Name(), Op: "select", Err: ErrUnsupportedDriverInput}
	}

	res, err := d.(StreamProcessor).ProcessStream(ctx, input, DriverOptions{Extension: extension, Progress: progress})
	if err != nil {
		return nil, nil, &DriverError{Category: CategoryConvert, Driver: d.Name(), Op: "process_stream", Err: err}
	}

	reader, err := resultReader(res)
	if err != nil {
		res.Close()
		return nil, nil, err
	}
	return reader, res, nil
}

// runUploadDriver applies a named upload driver to the stream and stores its
// output. Archive output is stored as a directory blob.
func (s *service) runUploadDriver(ctx context.Context, name string, input io.Reader, extension string, progress chan<- Progress) (StoredBlob, string, string, error) {
	d, ok := s.registry.Select(CategoryUpload, name)
	if !ok {
		return StoredBlob{}, "", "", &DriverError{Category: CategoryUpload, Driver: name, Op: "select", Err: ErrUnknownDriver}
	}
	if !Supports(d, InputStream) {
		return StoredBlob{}, "", "", &DriverError{Category: CategoryUpload, Driver: name, Op: "select", Err: ErrUnsupportedDriverInput}
	}

	res, err := d.(StreamProcessor).ProcessStream(ctx, input, DriverOptions{Extension: extension, Progress: progress})
	if err != nil {
		return StoredBlob{}, "", "", &DriverError{Category: CategoryUpload, Driver: name, Op: "process_stream", Err: err}
	}
	defer res.Close()

	if name == DriverArchive {
		dir := res.TempPath
		if dir == "" {
			dir = res.Path
		}
		blob, err := s.objects.PutDirectory(ctx, dir)
		if err != nil {
			return StoredBlob{}, "", "", err
		}
		size := res.Size
		if size == 0 {
			size = blob.Size
		}
		return StoredBlob{ID: blob.ID, Size: size}, MediaTypeDirectory, ExtensionNone, nil
	}

	blob, err := s.storeResult(ctx, res)
	if err != nil {
		return StoredBlob{}, "", "", err
	}
	stat, err := s.objects.Stat(ctx, blob.ID)
	if err != nil {
		return StoredBlob{}, "", "", err
	}
	return StoredBlob{ID: stat.ID, Size: stat.Size}, res.Type, res.Extension, nil
}

// recordUpload counts the stored bytes against the owner's quota. The record
// already exists, so failures are logged only.
func (s *service) recordUpload(ctx context.Context, content *Content) {
	if s.quota == nil {
		return
	}
	action := &ContentAction{
		ID:        uuid.New(),
		UserID:    content.OwnerID,
		ContentID: content.ID,
		Kind:      ActionUpload,
		Size:      content.Size,
		CreatedAt: content.CreatedAt,
	}
	if err := s.quota.RecordAction(ctx, action); err != nil {
		s.logger.Error("Failed to record upload action", "content_id", content.ID.String(), "error", err)
	}
}

// resultReader returns a reader over a driver result's payload. Closing it
// does not close the result itself.
func resultReader(res *DriverResult) (io.ReadCloser, error) {
	switch {
	case res == nil:
		return nil, errNoPayload
	case res.Stream != nil:
		return io.NopCloser(res.Stream), nil
	case res.Content != nil:
		return io.NopCloser(bytes.NewReader(res.Content)), nil
	case res.TempPath != "" || res.Path != "":
		p := res.TempPath
		if p == "" {
			p = res.Path
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open driver output: %w", err)
		}
		return f, nil
	}
	return nil, errNoPayload
}

// storeResult writes a driver result to the object store.
func (s *service) storeResult(ctx context.Context, res *DriverResult) (StoredBlob, error) {
	switch {
	case res.Stream != nil:
		return s.objects.PutBlob(ctx, res.Stream)
	case res.Content != nil:
		return s.objects.PutBytes(ctx, res.Content)
	case res.TempPath != "":
		return s.objects.PutPath(ctx, res.TempPath)
	case res.Path != "":
		return s.objects.PutPath(ctx, res.Path)
	}
	return StoredBlob{}, errNoPayload
}
