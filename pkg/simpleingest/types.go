package simpleingest

import (
	"time"

	"github.com/google/uuid"
)

// DriverCategory is the registry pool a driver belongs to.
type DriverCategory string

// Driver category constants (typed).
const (
	CategoryPreview  DriverCategory = "preview"
	CategoryMetadata DriverCategory = "metadata"
	CategoryUpload   DriverCategory = "upload"
	CategoryConvert  DriverCategory = "convert"
)

// InputMode is how a driver accepts its source data.
type InputMode string

// Input mode constants (typed).
const (
	InputStream  InputMode = "stream"
	InputContent InputMode = "content"
	InputSource  InputMode = "source"
	InputPath    InputMode = "path"
)

// OutputSize is a preview rendition size.
type OutputSize string

// Output size constants (typed).
const (
	SizeSmall  OutputSize = "small"
	SizeMedium OutputSize = "medium"
	SizeLarge  OutputSize = "large"
)

// Well-known driver names.
const (
	DriverImage             = "image"
	DriverText              = "text"
	DriverVideoThumbnail    = "video-thumbnail"
	DriverYoutubeThumbnail  = "youtube-thumbnail"
	DriverVideoToStreamable = "video-to-streamable"
	DriverArchive           = "archive"
	DriverFile              = "file"
	DriverYoutubeVideo      = "youtube-video"
)

// Media type and extension assigned to expanded archives.
const (
	MediaTypeDirectory = "directory"
	ExtensionNone      = "none"
)

// LimitName identifies a per-user limit.
type LimitName string

// LimitSaveContentSize caps the bytes a user may upload and pin per period.
const LimitSaveContentSize LimitName = "save_content:size"

// ActionKind classifies a user content action counted against quota.
type ActionKind string

// Content action constants (typed).
const (
	ActionUpload ActionKind = "upload"
	ActionPin    ActionKind = "pin"
)

// Content is one stored blob owned by a user.
//
// Preview fields are optional; when any of them is set MediumPreviewStoreID
// must be set too (medium is the baseline size).
type Content struct {
	ID        uuid.UUID  `json:"id"`
	StoreID   string     `json:"store_id"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	GroupID   *uuid.UUID `json:"group_id,omitempty"`
	FolderID  *uuid.UUID `json:"folder_id,omitempty"`
	Name      string     `json:"name,omitempty"`
	Size      int64      `json:"size"`
	MediaType string     `json:"media_type"`
	Extension string     `json:"extension,omitempty"`

	MediumPreviewStoreID string `json:"medium_preview_store_id,omitempty"`
	MediumPreviewSize    int64  `json:"medium_preview_size,omitempty"`
	SmallPreviewStoreID  string `json:"small_preview_store_id,omitempty"`
	SmallPreviewSize     int64  `json:"small_preview_size,omitempty"`
	LargePreviewStoreID  string `json:"large_preview_store_id,omitempty"`
	LargePreviewSize     int64  `json:"large_preview_size,omitempty"`
	PreviewMediaType     string `json:"preview_media_type,omitempty"`
	PreviewExtension     string `json:"preview_extension,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPreview reports whether the record carries the baseline medium preview.
func (c *Content) HasPreview() bool {
	return c.MediumPreviewStoreID != "" && c.PreviewMediaType != ""
}

// Previews returns the preview fields of the record as a PreviewSet.
func (c *Content) Previews() PreviewSet {
	var set PreviewSet
	if c.MediumPreviewStoreID != "" {
		set.Medium = &PreviewFile{StoreID: c.MediumPreviewStoreID, Size: c.MediumPreviewSize}
	}
	if c.SmallPreviewStoreID != "" {
		set.Small = &PreviewFile{StoreID: c.SmallPreviewStoreID, Size: c.SmallPreviewSize}
	}
	if c.LargePreviewStoreID != "" {
		set.Large = &PreviewFile{StoreID: c.LargePreviewStoreID, Size: c.LargePreviewSize}
	}
	set.MediaType = c.PreviewMediaType
	set.Extension = c.PreviewExtension
	return set
}

// ApplyPreviews replaces every preview field of the record with the set.
// An empty set clears the fields.
func (c *Content) ApplyPreviews(set PreviewSet) {
	c.MediumPreviewStoreID, c.MediumPreviewSize = set.Medium.fields()
	c.SmallPreviewStoreID, c.SmallPreviewSize = set.Small.fields()
	c.LargePreviewStoreID, c.LargePreviewSize = set.Large.fields()
	c.PreviewMediaType = set.MediaType
	c.PreviewExtension = set.Extension
}

// PreviewFile is one stored preview rendition.
type PreviewFile struct {
	StoreID string `json:"store_id"`
	Size    int64  `json:"size"`
}

func (f *PreviewFile) fields() (string, int64) {
	if f == nil {
		return "", 0
	}
	return f.StoreID, f.Size
}

// PreviewSet is the result of preview generation. The zero value is the
// empty set.
type PreviewSet struct {
	Medium    *PreviewFile `json:"medium,omitempty"`
	Small     *PreviewFile `json:"small,omitempty"`
	Large     *PreviewFile `json:"large,omitempty"`
	MediaType string       `json:"media_type,omitempty"`
	Extension string       `json:"extension,omitempty"`
}

// IsEmpty reports whether no preview was produced.
func (p PreviewSet) IsEmpty() bool {
	return p.Medium == nil && p.Small == nil && p.Large == nil
}

// Validate checks that a non-empty set carries a medium preview.
func (p PreviewSet) Validate() error {
	if !p.IsEmpty() && p.Medium == nil {
		return ErrInvalidPreviewSet
	}
	return nil
}

// StoredBlob is the result of an object store write.
type StoredBlob struct {
	ID   string `json:"id"`
	Size int64  `json:"size"`
}

// BlobStat is the object store's own accounting for a blob.
type BlobStat struct {
	ID        string    `json:"id"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// UserLimit is a configured per-user ceiling. Period bounds the accounting
// window; zero means all time.
type UserLimit struct {
	UserID   uuid.UUID     `json:"user_id"`
	Name     LimitName     `json:"name"`
	Value    int64         `json:"value"`
	Period   time.Duration `json:"period"`
	IsActive bool          `json:"is_active"`
}

// ContentAction is a quota-relevant action performed by a user.
type ContentAction struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	ContentID uuid.UUID  `json:"content_id"`
	Kind      ActionKind `json:"kind"`
	Size      int64      `json:"size"`
	CreatedAt time.Time  `json:"created_at"`
}

// Progress is a progress report emitted by a long-running driver.
type Progress struct {
	Driver    string        `json:"driver"`
	Processed time.Duration `json:"processed,omitempty"`
	Bytes     int64         `json:"bytes,omitempty"`
	Percent   float64       `json:"percent,omitempty"`
	Done      bool          `json:"done,omitempty"`
}
