package scanner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ViolationLog is an append-only JSONL log of violation records. Multiple
// independent invocations (a one-shot check racing a continuous monitor)
// may append concurrently, so every write takes an advisory file lock and
// appends a whole line: last-writer-wins-safe, never rewritten.
type ViolationLog struct {
	path string
	lock *flock.Flock
}

// NewViolationLog creates a log writing to path.
func NewViolationLog(path string) *ViolationLog {
	return &ViolationLog{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the log file path.
func (l *ViolationLog) Path() string { return l.path }

// Append writes one violation record as a single JSON line.
func (l *ViolationLog) Append(v Violation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock violations log: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open violations log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append violation: %w", err)
	}
	return nil
}

// Read returns all recorded violations in append order. Unparseable lines
// are skipped: the log may be mid-append from another process.
func (l *ViolationLog) Read() ([]Violation, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open violations log: %w", err)
	}
	defer f.Close()

	var out []Violation
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var v Violation
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("scan violations log: %w", err)
	}
	return out, nil
}
