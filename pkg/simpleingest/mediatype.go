package simpleingest

import (
	"mime"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
)

var videoExtensions = []string{"mp4", "avi", "mov", "mkv", "webm", "quicktime", "m4v", "mpeg", "mpg", "flv", "wmv", "3gp", "ogv"}

// IsVideo reports whether a media type (or bare extension) denotes video.
// Audio types never count, even when their subtype names a video container.
func IsVideo(mediaType string) bool {
	t := NormalizeMediaType(mediaType)
	if t == "" {
		return false
	}
	primary, sub, ok := strings.Cut(t, "/")
	if !ok {
		return slices.Contains(videoExtensions, t)
	}
	switch primary {
	case "video":
		return true
	case "audio":
		return false
	}
	return slices.Contains(videoExtensions, strings.TrimPrefix(sub, "x-"))
}

// ExtensionFromName returns the text after the last dot of a file name, or
// "" when the name has none.
func ExtensionFromName(name string) string {
	base := path.Base(strings.TrimSpace(name))
	idx := strings.LastIndex(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

// FileNameFromPath returns the last element of a slash separated path.
func FileNameFromPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	return parts[len(parts)-1]
}

// FileNameFromURL returns the last path element of a URL.
func FileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return FileNameFromPath(raw)
	}
	return FileNameFromPath(u.Path)
}

// NormalizeMediaType lowercases a media type and drops parameters.
func NormalizeMediaType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.Index(t, ";"); idx >= 0 {
		t = strings.TrimSpace(t[:idx])
	}
	return t
}

// DetectMediaType resolves a media type from an explicit value, then from the
// file name, then from the bare extension.
func DetectMediaType(explicit, fileName, extension string) string {
	if t := NormalizeMediaType(explicit); t != "" {
		return t
	}
	if ext := ExtensionFromName(fileName); ext != "" {
		if t := mime.TypeByExtension("." + ext); t != "" {
			return NormalizeMediaType(t)
		}
	}
	if extension != "" {
		if t := mime.TypeByExtension("." + extension); t != "" {
			return NormalizeMediaType(t)
		}
		return extension
	}
	return "application/octet-stream"
}

// PrimaryType returns the component before the slash ("image" for "image/png").
func PrimaryType(mediaType string) string {
	t, _, _ := strings.Cut(mediaType, "/")
	return t
}

// SubType returns the component after the slash ("png" for "image/png").
func SubType(mediaType string) string {
	_, sub, _ := strings.Cut(mediaType, "/")
	return sub
}

var externalVideoPattern = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com/(watch\?.*v=|embed/|shorts/|v/)|youtu\.be/)[A-Za-z0-9_-]{6,}`)

// IsExternalVideoURL reports whether source points at a hosted video page.
func IsExternalVideoURL(source string) bool {
	return externalVideoPattern.MatchString(strings.TrimSpace(source))
}
