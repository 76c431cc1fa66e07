package simpleingest

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// previewSizes lists the sizes requested from d; medium is always first.
func previewSizes(d Driver) []OutputSize {
	sizes := []OutputSize{SizeMedium}
	if SupportsOutputSize(d, SizeSmall) {
		sizes = append(sizes, SizeSmall)
	}
	if SupportsOutputSize(d, SizeLarge) {
		sizes = append(sizes, SizeLarge)
	}
	return sizes
}

// previewDriverName picks the preview pool key for a blob.
func previewDriverName(mediaType, sourceHint string) string {
	switch {
	case sourceHint != "" && IsExternalVideoURL(sourceHint):
		return DriverYoutubeThumbnail
	case IsVideo(mediaType):
		return DriverVideoThumbnail
	default:
		return PrimaryType(mediaType)
	}
}

// negotiateInput returns the first supported mode in priority order.
func negotiateInput(d Driver) (InputMode, bool) {
	for _, mode := range []InputMode{InputStream, InputContent, InputSource} {
		if Supports(d, mode) {
			return mode, true
		}
	}
	return "", false
}

func (s *service) GeneratePreview(ctx context.Context, storeID, mediaType, sourceHint string) (PreviewSet, error) {
	logger := s.logger.With("store_id", storeID, "media_type", mediaType)

	name := previewDriverName(mediaType, sourceHint)
	d, ok := s.registry.Select(CategoryPreview, name)
	if !ok {
		logger.Debug("No preview driver registered", "driver", name)
		return PreviewSet{}, nil
	}

	if name == DriverVideoThumbnail {
		frame, err := s.extractFrame(ctx, d, storeID, mediaType, sourceHint)
		if err != nil {
			if isConfigError(err) {
				return PreviewSet{}, err
			}
			logger.Warn("Failed to extract video frame", "driver", name, "error", err)
			return PreviewSet{}, nil
		}
		image, ok := s.registry.Select(CategoryPreview, DriverImage)
		if !ok {
			logger.Debug("No image driver registered for video frame")
			return PreviewSet{}, nil
		}
		d = image
		storeID = frame.ID
		mediaType = frame.mediaType
	}

	set, err := s.runPreviewDriver(ctx, d, storeID, mediaType, sourceHint)
	if err != nil {
		if isConfigError(err) {
			return PreviewSet{}, err
		}
		logger.Warn("Preview generation failed", "driver", d.Name(), "error", fmt.Errorf("%w: %w", ErrPreviewGenerationFailed, err))
		return PreviewSet{}, nil
	}
	return set, nil
}

// isConfigError reports errors that indicate a misconfigured registry.
func isConfigError(err error) bool {
	return errors.Is(err, ErrUnsupportedDriverInput)
}

type frameBlob struct {
	ID        string
	mediaType string
}

// extractFrame runs the video thumbnail driver once and stores the still.
func (s *service) extractFrame(ctx context.Context, d Driver, storeID, mediaType, sourceHint string) (frameBlob, error) {
	mode, ok := negotiateInput(d)
	if !ok {
		return frameBlob{}, &DriverError{Category: CategoryPreview, Driver: d.Name(), Op: "negotiate", Err: ErrUnsupportedDriverInput}
	}

	var content []byte
	if mode == InputContent {
		data, err := s.objects.ReadAll(ctx, storeID)
		if err != nil {
			return frameBlob{}, err
		}
		content = data
	}

	res, err := s.invoke(ctx, d, mode, storeID, content, sourceHint, DriverOptions{Extension: SubType(mediaType), Size: SizeMedium})
	if err != nil {
		return frameBlob{}, err
	}
	defer res.Close()

	blob, err := s.storeResult(ctx, res)
	if err != nil {
		return frameBlob{}, err
	}

	frameType := res.Type
	if frameType == "" {
		frameType = DetectMediaType("", "", res.Extension)
	}
	return frameBlob{ID: blob.ID, mediaType: frameType}, nil
}

// runPreviewDriver negotiates the input mode and produces the preview set.
func (s *service) runPreviewDriver(ctx context.Context, d Driver, storeID, mediaType, sourceHint string) (PreviewSet, error) {
	mode, ok := negotiateInput(d)
	if !ok {
		return PreviewSet{}, &DriverError{Category: CategoryPreview, Driver: d.Name(), Op: "negotiate", Err: ErrUnsupportedDriverInput}
	}

	if mode == InputSource {
		if sourceHint == "" {
			s.logger.Debug("Source preview driver without a source locator", "driver", d.Name(), "store_id", storeID)
			return PreviewSet{}, nil
		}
		res, err := s.invoke(ctx, d, mode, storeID, nil, sourceHint, DriverOptions{Extension: SubType(mediaType), Size: SizeMedium})
		if err != nil {
			return PreviewSet{}, err
		}
		defer res.Close()

		blob, err := s.storeResult(ctx, res)
		if err != nil {
			return PreviewSet{}, err
		}
		return PreviewSet{
			Medium:    &PreviewFile{StoreID: blob.ID, Size: blob.Size},
			MediaType: res.Type,
			Extension: res.Extension,
		}, nil
	}

	var content []byte
	if mode == InputContent {
		data, err := s.objects.ReadAll(ctx, storeID)
		if err != nil {
			return PreviewSet{}, err
		}
		content = data
	}

	type rendition struct {
		blob      StoredBlob
		mediaType string
		extension string
	}

	sizes := previewSizes(d)
	results := make([]rendition, len(sizes))

	g, gctx := errgroup.WithContext(ctx)
	for i, size := range sizes {
		g.Go(func() error {
			res, err := s.invoke(gctx, d, mode, storeID, content, sourceHint, DriverOptions{Extension: SubType(mediaType), Size: size})
			if err != nil {
				return fmt.Errorf("%s preview: %w", size, err)
			}
			defer res.Close()

			blob, err := s.storeResult(gctx, res)
			if err != nil {
				return fmt.Errorf("store %s preview: %w", size, err)
			}
			results[i] = rendition{blob: blob, mediaType: res.Type, extension: res.Extension}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PreviewSet{}, err
	}

	var set PreviewSet
	for i, size := range sizes {
		file := &PreviewFile{StoreID: results[i].blob.ID, Size: results[i].blob.Size}
		switch size {
		case SizeMedium:
			set.Medium = file
			set.MediaType = results[i].mediaType
			set.Extension = results[i].extension
		case SizeSmall:
			set.Small = file
		case SizeLarge:
			set.Large = file
		}
	}
	return set, nil
}

// invoke calls the processing entry point for mode.
func (s *service) invoke(ctx context.Context, d Driver, mode InputMode, storeID string, content []byte, sourceHint string, opts DriverOptions) (*DriverResult, error) {
	var (
		res *DriverResult
		err error
	)
	switch mode {
	case InputStream:
		rc, openErr := s.objects.Open(ctx, storeID)
		if openErr != nil {
			return nil, openErr
		}
		res, err = d.(StreamProcessor).ProcessStream(ctx, rc, opts)
		if err != nil || res == nil {
			rc.Close()
			break
		}
		cleanup := res.Cleanup
		res.Cleanup = func() error {
			rc.Close()
			if cleanup != nil {
				return cleanup()
			}
			return nil
		}
	case InputContent:
		res, err = d.(ContentProcessor).ProcessContent(ctx, content, opts)
	case InputSource:
		res, err = d.(SourceProcessor).ProcessSource(ctx, sourceHint, opts)
	default:
		return nil, &DriverError{Category: CategoryPreview, Driver: d.Name(), Op: "invoke", Err: ErrUnsupportedDriverInput}
	}
	if err != nil {
		return nil, &DriverError{Category: CategoryPreview, Driver: d.Name(), Op: "process_" + string(mode), Err: err}
	}
	if res == nil {
		return nil, &DriverError{Category: CategoryPreview, Driver: d.Name(), Op: "process_" + string(mode), Err: errors.New("no result")}
	}
	return res, nil
}
