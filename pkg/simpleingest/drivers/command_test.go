package drivers

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no shell available")
	}
	return sh
}

func TestCommandStream(t *testing.T) {
	sh := requireShell(t)
	ctx := context.Background()

	t.Run("stdout is streamed", func(t *testing.T) {
		var lines []string
		s, err := startStream(exec.CommandContext(ctx, sh, "-c", "echo progress >&2; printf hello"), func(line string) {
			lines = append(lines, line)
		})
		require.NoError(t, err)

		data, err := io.ReadAll(s)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
		require.NoError(t, s.Close())
		assert.Equal(t, []string{"progress"}, lines)
	})

	t.Run("exit status surfaces at EOF", func(t *testing.T) {
		s, err := startStream(exec.CommandContext(ctx, sh, "-c", "printf partial; echo boom >&2; exit 3"), nil)
		require.NoError(t, err)

		_, err = io.ReadAll(s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		s.Close()
	})

	t.Run("close stops a running command", func(t *testing.T) {
		s, err := startStream(exec.CommandContext(ctx, sh, "-c", "yes"), nil)
		require.NoError(t, err)

		buf := make([]byte, 16)
		_, err = s.Read(buf)
		require.NoError(t, err)
		assert.NoError(t, s.Close())
	})
}

func TestRunCommand(t *testing.T) {
	sh := requireShell(t)
	ctx := context.Background()

	var lines []string
	err := runCommand(exec.CommandContext(ctx, sh, "-c", "printf 'a\\rb\\nc\\n' >&2"), func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)

	err = runCommand(exec.CommandContext(ctx, sh, "-c", "echo failed >&2; exit 1"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestSplitLines(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("one\rtwo\nthree"))
	scanner.Split(splitLines)

	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestLineTail(t *testing.T) {
	var tail lineTail
	for i := 0; i < stderrTail+5; i++ {
		tail.add(strings.Repeat("x", i))
	}
	assert.Len(t, tail.lines, stderrTail)
	assert.Equal(t, strings.Repeat("x", 5), tail.lines[0])
}

func TestSpool(t *testing.T) {
	dir := t.TempDir()
	path, cleanup, err := spool(context.Background(), dir, strings.NewReader("payload"), "mov")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".mov"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, cleanup())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = spool(ctx, dir, strings.NewReader("payload"), "")
	assert.ErrorIs(t, err, context.Canceled)

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left)
}
