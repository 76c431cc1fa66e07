package drivers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// DefaultThumbnailBaseURL serves hosted video thumbnails
const DefaultThumbnailBaseURL = "https://img.youtube.com/vi"

// maxThumbnailSize bounds the thumbnail download
const maxThumbnailSize = 10 << 20

var videoIDPattern = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|embed/|shorts/|v/)|youtu\.be/)([A-Za-z0-9_-]{6,})`)

// VideoID extracts the hosted video id from a watch, embed, shorts or short
// link URL.
func VideoID(source string) (string, bool) {
	m := videoIDPattern.FindStringSubmatch(source)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// YoutubeThumbnail fetches the published thumbnail of a hosted video.
type YoutubeThumbnail struct {
	simpleingest.Capabilities
	client  *http.Client
	baseURL string
	maxSize int64
}

// NewYoutubeThumbnail creates the hosted video thumbnail driver. An empty
// baseURL selects DefaultThumbnailBaseURL.
func NewYoutubeThumbnail(client *http.Client, baseURL string) *YoutubeThumbnail {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultThumbnailBaseURL
	}
	return &YoutubeThumbnail{
		Capabilities: simpleingest.Capabilities{
			Inputs: []simpleingest.InputMode{simpleingest.InputSource},
			Sizes:  []simpleingest.OutputSize{simpleingest.SizeMedium},
		},
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		maxSize: maxThumbnailSize,
	}
}

func (d *YoutubeThumbnail) Name() string { return simpleingest.DriverYoutubeThumbnail }

func (d *YoutubeThumbnail) ProcessSource(ctx context.Context, source string, opts simpleingest.DriverOptions) (*simpleingest.DriverResult, error) {
	id, ok := VideoID(source)
	if !ok {
		return nil, fmt.Errorf("no video id in %q", source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/"+id+"/hqdefault.jpg", nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch thumbnail: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	if int64(len(data)) > d.maxSize {
		return nil, fmt.Errorf("thumbnail exceeds %d bytes", d.maxSize)
	}

	return &simpleingest.DriverResult{
		Content:   data,
		Type:      "image/jpeg",
		Extension: "jpg",
		Size:      int64(len(data)),
	}, nil
}

// YoutubeVideo downloads a hosted video with yt-dlp and streams it.
type YoutubeVideo struct {
	simpleingest.Capabilities
	path string
}

// NewYoutubeVideo creates the hosted video download driver using the yt-dlp
// binary at path.
func NewYoutubeVideo(path string) *YoutubeVideo {
	return &YoutubeVideo{
		Capabilities: simpleingest.Capabilities{
			Inputs: []simpleingest.InputMode{simpleingest.InputSource},
		},
		path: path,
	}
}

func (d *YoutubeVideo) Name() string { return simpleingest.DriverYoutubeVideo }

func (d *YoutubeVideo) ProcessSource(ctx context.Context, source string, opts simpleingest.DriverOptions) (*simpleingest.DriverResult, error) {
	if _, ok := VideoID(source); !ok {
		return nil, fmt.Errorf("no video id in %q", source)
	}

	cmd := exec.CommandContext(ctx, d.path,
		"--quiet", "--progress", "--newline",
		"-f", "best[ext=mp4]/best",
		"-o", "-",
		source)
	stream, err := startStream(cmd, func(line string) {
		if p, ok := parseDownloadProgress(d.Name(), line); ok {
			simpleingest.SendProgress(opts.Progress, p)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}

	return &simpleingest.DriverResult{
		Stream:    stream,
		Type:      "video/mp4",
		Extension: "mp4",
	}, nil
}

var downloadPattern = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)

// parseDownloadProgress reads a yt-dlp "[download]  42.0% of ..." line.
func parseDownloadProgress(driver, line string) (simpleingest.Progress, bool) {
	m := downloadPattern.FindStringSubmatch(line)
	if m == nil {
		return simpleingest.Progress{}, false
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return simpleingest.Progress{}, false
	}
	return simpleingest.Progress{Driver: driver, Percent: percent, Done: percent >= 100}, true
}
