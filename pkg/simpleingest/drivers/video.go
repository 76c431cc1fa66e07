package drivers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// ffmpeg runs the ffmpeg binary against spooled inputs.
type ffmpeg struct {
	path    string
	tempDir string
}

func (f ffmpeg) command(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, f.path, append([]string{"-hide_banner"}, args...)...)
}

// VideoThumbnail grabs a representative still frame from a video as PNG.
type VideoThumbnail struct {
	simpleingest.Capabilities
	ffmpeg ffmpeg
}

// NewVideoThumbnail creates the video frame driver using the ffmpeg binary
// at ffmpegPath. Inputs are spooled under tempDir.
func NewVideoThumbnail(ffmpegPath, tempDir string) *VideoThumbnail {
	return &VideoThumbnail{
		Capabilities: simpleingest.Capabilities{
			Inputs: []simpleingest.InputMode{simpleingest.InputStream},
			Sizes:  []simpleingest.OutputSize{simpleingest.SizeMedium},
		},
		ffmpeg: ffmpeg{path: ffmpegPath, tempDir: tempDir},
	}
}

func (d *VideoThumbnail) Name() string { return simpleingest.DriverVideoThumbnail }

func (d *VideoThumbnail) ProcessStream(ctx context.Context, input io.Reader, opts simpleingest.DriverOptions) (*simpleingest.DriverResult, error) {
	path, cleanup, err := spool(ctx, d.ffmpeg.tempDir, input, opts.Extension)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var frame bytes.Buffer
	cmd := d.ffmpeg.command(ctx,
		"-loglevel", "error",
		"-i", path,
		"-vf", "thumbnail",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1")
	cmd.Stdout = &frame
	if err := runCommand(cmd, nil); err != nil {
		return nil, fmt.Errorf("extract frame: %w", err)
	}
	if frame.Len() == 0 {
		return nil, errors.New("extract frame: no frame produced")
	}

	return &simpleingest.DriverResult{
		Content:   frame.Bytes(),
		Type:      "image/png",
		Extension: "png",
		Size:      int64(frame.Len()),
	}, nil
}

// VideoToStreamable re-encodes video into fragmented MP4 that can be played
// while it downloads.
type VideoToStreamable struct {
	simpleingest.Capabilities
	ffmpeg ffmpeg
}

// NewVideoToStreamable creates the video conversion driver
func NewVideoToStreamable(ffmpegPath, tempDir string) *VideoToStreamable {
	return &VideoToStreamable{
		Capabilities: simpleingest.Capabilities{
			Inputs: []simpleingest.InputMode{simpleingest.InputStream},
		},
		ffmpeg: ffmpeg{path: ffmpegPath, tempDir: tempDir},
	}
}

func (d *VideoToStreamable) Name() string { return simpleingest.DriverVideoToStreamable }

func (d *VideoToStreamable) ProcessStream(ctx context.Context, input io.Reader, opts simpleingest.DriverOptions) (*simpleingest.DriverResult, error) {
	in, cleanupInput, err := spool(ctx, d.ffmpeg.tempDir, input, opts.Extension)
	if err != nil {
		return nil, err
	}
	defer cleanupInput()

	out, err := os.CreateTemp(d.ffmpeg.tempDir, "streamable-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	out.Close()
	cleanup := func() error { return os.Remove(out.Name()) }

	progress := &ffmpegProgress{driver: d.Name()}
	cmd := d.ffmpeg.command(ctx,
		"-nostats",
		"-y",
		"-i", in,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-progress", "pipe:2",
		out.Name())
	err = runCommand(cmd, func(line string) {
		if p, ok := progress.parse(line); ok {
			simpleingest.SendProgress(opts.Progress, p)
		}
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("convert video: %w", err)
	}

	info, err := os.Stat(out.Name())
	if err != nil {
		cleanup()
		return nil, err
	}

	return &simpleingest.DriverResult{
		TempPath:  out.Name(),
		Type:      "video/mp4",
		Extension: "mp4",
		Size:      info.Size(),
		Cleanup:   cleanup,
	}, nil
}

var durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ffmpegProgress accumulates the key=value blocks written by -progress.
type ffmpegProgress struct {
	driver   string
	duration time.Duration
	current  simpleingest.Progress
}

// parse consumes one stderr line and returns a report when the line closes
// a progress block.
func (p *ffmpegProgress) parse(line string) (simpleingest.Progress, bool) {
	if p.duration == 0 {
		if m := durationPattern.FindStringSubmatch(line); m != nil {
			p.duration = parseClock(m[1], m[2], m[3])
			return simpleingest.Progress{}, false
		}
	}

	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return simpleingest.Progress{}, false
	}

	switch strings.TrimSpace(key) {
	case "out_time_us", "out_time_ms": // both are microseconds
		if us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			p.current.Processed = time.Duration(us) * time.Microsecond
		}
	case "total_size":
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			p.current.Bytes = n
		}
	case "progress":
		report := p.current
		report.Driver = p.driver
		report.Done = strings.TrimSpace(value) == "end"
		switch {
		case report.Done:
			report.Percent = 100
		case p.duration > 0:
			report.Percent = min(100, float64(report.Processed)/float64(p.duration)*100)
		}
		return report, true
	}
	return simpleingest.Progress{}, false
}

func parseClock(hours, minutes, seconds string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.ParseFloat(seconds, 64)
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s*float64(time.Second))
}
