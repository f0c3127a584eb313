// Package signals writes supervision signal artifacts: small JSON files
// that communicate discrete events to other fleet components. The
// supervisor writes one per stuck transition; downstream tooling picks
// them up from the signals directory.
package signals

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/marshal/internal/util"
)

// SignalTypeStuck marks an agent-stuck artifact.
const SignalTypeStuck = "agent-stuck"

// Emergency levels for stuck artifacts.
const (
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// StuckSignal is the artifact written when an agent transitions into the
// stuck verdict.
type StuckSignal struct {
	SignalType     string    `json:"signal_type"`
	Agent          string    `json:"agent"`
	Reason         string    `json:"reason"`
	EmergencyLevel string    `json:"emergency_level"`
	Timestamp      time.Time `json:"timestamp"`
	ActionRequired string    `json:"action_required"`
}

// Writer drops signal artifacts into a directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a Writer targeting dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Dir returns the signals directory.
func (w *Writer) Dir() string { return w.dir }

// WriteStuck writes an agent-stuck artifact and returns its path. Each
// artifact gets a unique filename so repeated transitions never clobber
// an unconsumed signal.
func (w *Writer) WriteStuck(agent, reason, level string) (string, error) {
	if level == "" {
		level = LevelWarning
	}
	sig := StuckSignal{
		SignalType:     SignalTypeStuck,
		Agent:          agent,
		Reason:         reason,
		EmergencyLevel: level,
		Timestamp:      w.now().UTC(),
		ActionRequired: fmt.Sprintf("inspect agent %s and restart or clear it", agent),
	}

	name := fmt.Sprintf("stuck-%s-%s.json", agent, uuid.NewString()[:8])
	path := filepath.Join(w.dir, name)
	if err := util.AtomicWriteJSON(path, sig); err != nil {
		return "", fmt.Errorf("writing stuck signal for %s: %w", agent, err)
	}
	return path, nil
}

// List returns the stuck artifacts currently present, oldest first.
func (w *Writer) List() ([]StuckSignal, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading signals dir %s: %w", w.dir, err)
	}

	var out []StuckSignal
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		var sig StuckSignal
		if err := util.ReadJSON(filepath.Join(w.dir, entry.Name()), &sig); err != nil {
			continue
		}
		if sig.SignalType != SignalTypeStuck {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}
