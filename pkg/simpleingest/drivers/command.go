package drivers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// stderrTail is the number of stderr lines kept for error messages.
const stderrTail = 20

// lineTail keeps the last few lines written by a subprocess.
type lineTail struct {
	mu    sync.Mutex
	lines []string
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > stderrTail {
		t.lines = t.lines[len(t.lines)-stderrTail:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

// scanLines feeds every line of r to fn and records it in tail. Carriage
// returns are treated as line breaks so in-place progress bars are seen.
func scanLines(r io.Reader, tail *lineTail, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(splitLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail.add(line)
		if fn != nil {
			fn(line)
		}
	}
}

func splitLines(data []byte, atEOF bool) (int, []byte, error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// runCommand runs cmd to completion, passing each stderr line to onLine.
func runCommand(cmd *exec.Cmd, onLine func(string)) error {
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	var tail lineTail
	scanLines(stderr, &tail, onLine)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w (stderr: %s)", cmd.Path, err, tail.String())
	}
	return nil
}

// commandStream exposes a running command's stdout as a stream. Reaching
// EOF reports the command's exit status.
type commandStream struct {
	stdout     io.ReadCloser
	cmd        *exec.Cmd
	tail       lineTail
	stderrDone chan struct{}

	once    sync.Once
	waitErr error
}

// startStream starts cmd and returns its stdout.
func startStream(cmd *exec.Cmd, onLine func(string)) (*commandStream, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	s := &commandStream{stdout: stdout, cmd: cmd, stderrDone: make(chan struct{})}
	go func() {
		defer close(s.stderrDone)
		scanLines(stderr, &s.tail, onLine)
	}()
	return s, nil
}

func (s *commandStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// Close stops the command if it is still running.
func (s *commandStream) Close() error {
	s.stdout.Close()
	if s.cmd.ProcessState == nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.wait()
	return nil
}

func (s *commandStream) wait() error {
	s.once.Do(func() {
		<-s.stderrDone
		if err := s.cmd.Wait(); err != nil {
			s.waitErr = fmt.Errorf("%s: %w (stderr: %s)", s.cmd.Path, err, s.tail.String())
		}
	})
	return s.waitErr
}

// spool copies input into a temporary file named with extension. The
// returned cleanup removes the file.
func spool(ctx context.Context, dir string, input io.Reader, extension string) (string, func() error, error) {
	pattern := "input-*"
	if extension != "" {
		pattern += "." + extension
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() error { return os.Remove(f.Name()) }

	if _, err := io.Copy(f, input); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("spool input: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
