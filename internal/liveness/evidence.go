package liveness

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// FileSignals reads signal-file recency from the filesystem. The file's
// modification time is the last-signal timestamp.
type FileSignals struct{}

// LastSignal returns the signal file's mtime. A missing file means no
// signal has been observed yet.
func (FileSignals) LastSignal(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("stat signal file %s: %w", path, err)
	}
	return info.ModTime(), true, nil
}

// tailReadBytes bounds how much of a log file Tail reads from the end.
const tailReadBytes = 256 * 1024

// FileLogs reads bounded log tails from the filesystem.
type FileLogs struct{}

// Tail returns up to maxLines trailing lines. A missing log file yields
// no lines, not an error. A log whose mtime is before since has seen no
// writes in the window and also yields no lines: stale content is not
// activity.
func (FileLogs) Tail(path string, maxLines int, since time.Time) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log %s: %w", path, err)
	}
	if !since.IsZero() && info.ModTime().Before(since) {
		return nil, nil
	}
	offset := info.Size() - tailReadBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek log %s: %w", path, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}

	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if offset > 0 && len(lines) > 0 {
		// First line is likely cut mid-way by the bounded read.
		lines = lines[1:]
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines, nil
}
