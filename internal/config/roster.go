package config

import (
	"fmt"
	"os"
	"path/filepath"

	yaml "go.yaml.in/yaml/v2"

	"github.com/steveyegge/marshal/internal/liveness"
)

// rosterFile is the fleet roster YAML format.
type rosterFile struct {
	Agents []struct {
		ID         string `yaml:"id"`
		Container  string `yaml:"container"`
		SignalFile string `yaml:"signal_file"`
		LogPath    string `yaml:"log_path"`
	} `yaml:"agents"`
}

// LoadRoster reads the fleet roster. Relative signal and log paths
// resolve against the roster file's directory.
func LoadRoster(path string) ([]liveness.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}
	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("roster %s lists no agents", path)
	}

	base := filepath.Dir(path)
	seen := make(map[string]bool, len(file.Agents))
	agents := make([]liveness.Agent, 0, len(file.Agents))
	for i, a := range file.Agents {
		if a.ID == "" {
			return nil, fmt.Errorf("roster %s: agent %d has no id", path, i)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("roster %s: duplicate agent id %q", path, a.ID)
		}
		seen[a.ID] = true

		container := a.Container
		if container == "" {
			container = a.ID
		}
		agents = append(agents, liveness.Agent{
			ID:         a.ID,
			Container:  container,
			SignalFile: resolve(base, a.SignalFile),
			LogPath:    resolve(base, a.LogPath),
		})
	}
	return agents, nil
}

// FindAgent returns the roster entry with the given id.
func FindAgent(agents []liveness.Agent, id string) (liveness.Agent, bool) {
	for _, a := range agents {
		if a.ID == id {
			return a, true
		}
	}
	return liveness.Agent{}, false
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
