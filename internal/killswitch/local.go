package killswitch

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/steveyegge/marshal/internal/util"
)

// Marker is the content of the local kill marker file. The wire format is
// the file's existence: any readable content means active. Structured
// content carries the reason and activator for humans and reports.
type Marker struct {
	Reason      string    `json:"reason"`
	ActivatedBy string    `json:"activated_by,omitempty"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
}

// LocalStore owns the local kill marker file.
type LocalStore struct {
	path string
}

// NewLocalStore creates a store for the marker at path.
func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path}
}

// Path returns the marker file path.
func (s *LocalStore) Path() string { return s.path }

// Exists reports whether the marker file is present.
func (s *LocalStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Read returns the marker, or (nil, nil) when absent. Content that does
// not parse as JSON is tolerated: older tooling writes a bare free-text
// reason, and presence alone means active.
func (s *LocalStore) Read() (*Marker, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading kill marker: %w", err)
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return &Marker{Reason: strings.TrimSpace(string(data))}, nil
	}
	return &m, nil
}

// Write creates or replaces the marker atomically.
func (s *LocalStore) Write(m Marker) error {
	return util.AtomicWriteJSON(s.path, m)
}

// Remove deletes the marker. Removing an absent marker is a no-op.
func (s *LocalStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
