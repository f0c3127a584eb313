package scanner

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"
)

// LineSource delivers an unbounded, append-only sequence of log lines.
// The returned channel closes when the source ends or ctx is cancelled.
type LineSource interface {
	Lines(ctx context.Context) <-chan string
}

// Follow consumes a live line sequence and scans each line independently
// as it arrives. It runs until ctx is cancelled or the source closes,
// then returns the total number of violations recorded. Records already
// produced are persisted line-by-line, so cancellation loses nothing.
func (s *Scanner) Follow(ctx context.Context, src LineSource, source string) int {
	total := 0
	lines := src.Lines(ctx)
	for {
		select {
		case <-ctx.Done():
			return total
		case line, ok := <-lines:
			if !ok {
				return total
			}
			total += len(s.Scan(ctx, line, source))
		}
	}
}

// TailFile is a poll-based LineSource over a growing file, starting at
// the current end. Truncation resets the read offset.
type TailFile struct {
	Path string

	// Interval is the poll interval (default 500ms).
	Interval time.Duration

	// FromStart reads existing content before tailing new growth.
	FromStart bool
}

// Lines starts tailing. The channel closes when ctx is cancelled.
func (t *TailFile) Lines(ctx context.Context) <-chan string {
	interval := t.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)

		var offset int64
		if !t.FromStart {
			if info, err := os.Stat(t.Path); err == nil {
				offset = info.Size()
			}
		}

		var partial strings.Builder
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			offset = t.drain(ctx, out, offset, &partial)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

// drain reads everything past offset, emitting complete lines and
// buffering a trailing partial line. Returns the new offset.
func (t *TailFile) drain(ctx context.Context, out chan<- string, offset int64, partial *strings.Builder) int64 {
	f, err := os.Open(t.Path)
	if err != nil {
		return offset
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() < offset {
		// File truncated or rotated; start over.
		offset = 0
		partial.Reset()
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset
	}

	reader := bufio.NewReader(f)
	for {
		chunk, err := reader.ReadString('\n')
		offset += int64(len(chunk))
		if err != nil {
			// Incomplete trailing line: hold until the writer finishes it.
			partial.WriteString(chunk)
			return offset
		}
		line := partial.String() + strings.TrimRight(chunk, "\n")
		partial.Reset()
		select {
		case <-ctx.Done():
			return offset
		case out <- line:
		}
	}
}

// ChanSource adapts a plain channel into a LineSource (used in tests and
// by in-process producers).
type ChanSource <-chan string

// Lines returns the underlying channel.
func (c ChanSource) Lines(ctx context.Context) <-chan string {
	return c
}
