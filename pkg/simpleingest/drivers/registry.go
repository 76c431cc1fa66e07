package drivers

import (
	"log/slog"
	"net/http"
	"os/exec"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// Config selects the external tools and directories used by the default
// drivers.
type Config struct {
	// FFmpegPath is the ffmpeg binary; "ffmpeg" when empty
	FFmpegPath string
	// YtDlpPath is the yt-dlp binary; "yt-dlp" when empty
	YtDlpPath string
	// TempDir holds spooled inputs and extracted archives; the system
	// default when empty
	TempDir string
	// HTTPClient fetches hosted thumbnails
	HTTPClient *http.Client
	// ThumbnailBaseURL overrides DefaultThumbnailBaseURL
	ThumbnailBaseURL string
	Logger           *slog.Logger
}

// NewDefaultRegistry registers every built-in driver. Drivers backed by an
// external binary are left out when the binary cannot be found, so video is
// stored unconverted and gets no frame preview.
func NewDefaultRegistry(cfg Config) (*simpleingest.Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "drivers")

	regs := []simpleingest.Registration{
		simpleingest.Preview(NewImage()),
		simpleingest.Preview(NewText()),
		simpleingest.Preview(NewYoutubeThumbnail(cfg.HTTPClient, cfg.ThumbnailBaseURL)),
		simpleingest.Metadata(NewImageMetadata()),
		simpleingest.Upload(NewArchive(cfg.TempDir)),
		simpleingest.Upload(NewFile()),
	}

	if ffmpegPath, ok := lookPath(cfg.FFmpegPath, "ffmpeg"); ok {
		regs = append(regs,
			simpleingest.Preview(NewVideoThumbnail(ffmpegPath, cfg.TempDir)),
			simpleingest.Convert(NewVideoToStreamable(ffmpegPath, cfg.TempDir)),
		)
	} else {
		logger.Warn("ffmpeg not found, video conversion and frame previews disabled", "path", cfg.FFmpegPath)
	}

	if ytDlpPath, ok := lookPath(cfg.YtDlpPath, "yt-dlp"); ok {
		regs = append(regs, simpleingest.Upload(NewYoutubeVideo(ytDlpPath)))
	} else {
		logger.Warn("yt-dlp not found, hosted video downloads disabled", "path", cfg.YtDlpPath)
	}

	return simpleingest.NewRegistry(regs...)
}

func lookPath(configured, fallback string) (string, bool) {
	name := configured
	if name == "" {
		name = fallback
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}
