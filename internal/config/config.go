// Package config loads supervision settings for a project root. Values
// come from marshal.toml under the root, overridden by environment
// variables. A missing file yields defaults; a missing root is a fatal
// configuration error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/steveyegge/marshal/internal/liveness"
)

// ConfigFileName is the per-project settings file under the root.
const ConfigFileName = "marshal.toml"

// Container runtimes for state queries.
const (
	RuntimeDocker     = "docker"
	RuntimeKubernetes = "kubernetes"
)

// RemoteConfig addresses the remote kill store.
type RemoteConfig struct {
	// URL is the NATS server URL (env: MARSHAL_REMOTE_URL).
	URL string `toml:"url"`
	// Token is the auth token (env: MARSHAL_REMOTE_TOKEN).
	Token string `toml:"token"`
	// Bucket is the KV bucket holding the kill record.
	Bucket string `toml:"bucket"`
}

// Config holds all supervision settings.
type Config struct {
	// Root is the project root all relative paths resolve against.
	Root string `toml:"-"`

	// MarkerPath is the local kill marker file.
	MarkerPath string `toml:"marker_path"`
	// ViolationsLog is the append-only violations JSONL file.
	ViolationsLog string `toml:"violations_log"`
	// SignalsDir receives stuck signal artifacts.
	SignalsDir string `toml:"signals_dir"`
	// CatalogPath optionally extends the built-in pattern catalog.
	CatalogPath string `toml:"pattern_catalog"`
	// RosterPath is the fleet roster YAML file.
	RosterPath string `toml:"roster"`

	// Runtime selects the container state source: docker or kubernetes.
	Runtime string `toml:"runtime"`
	// Namespace is the K8s namespace for the kubernetes runtime
	// (env: NAMESPACE).
	Namespace string `toml:"namespace"`
	// KubeConfig is the kubeconfig path; empty means in-cluster or
	// default (env: KUBECONFIG).
	KubeConfig string `toml:"kubeconfig"`

	// WebhookURL receives stuck alerts (env: MARSHAL_WEBHOOK_URL).
	WebhookURL string `toml:"webhook_url"`

	Remote RemoteConfig `toml:"remote"`

	// SignalTimeoutSeconds is the tolerated signal-file silence.
	SignalTimeoutSeconds int `toml:"signal_timeout_seconds"`
	// MinLogLines is the minimum log activity per window.
	MinLogLines int `toml:"min_log_lines"`
	// ErrorLoopThreshold is the consecutive-cycle count before an error
	// loop counts as stuck.
	ErrorLoopThreshold int `toml:"error_loop_threshold"`
	// LogWindow is how many trailing log lines to inspect.
	LogWindow int `toml:"log_window"`
	// PollSeconds is the continuous-mode evaluation interval.
	PollSeconds int `toml:"poll_seconds"`
	// RenotifySeconds re-sends an unchanged stuck alert after this many
	// seconds. Zero notifies only on transition or reason change.
	RenotifySeconds int `toml:"renotify_seconds"`
}

// Load reads configuration for the project root.
func Load(root string) (*Config, error) {
	if root == "" {
		return nil, fmt.Errorf("project root is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("project root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	cfg := defaults(root)
	path := filepath.Join(root, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}
	cfg.Root = root
	applyEnv(cfg)
	resolvePaths(cfg)
	return cfg, nil
}

func defaults(root string) *Config {
	return &Config{
		Root:                 root,
		MarkerPath:           filepath.Join(".marshal", "kill"),
		ViolationsLog:        filepath.Join(".marshal", "violations.jsonl"),
		SignalsDir:           filepath.Join(".marshal", "signals"),
		RosterPath:           "fleet.yaml",
		Runtime:              RuntimeDocker,
		Namespace:            "marshal",
		Remote:               RemoteConfig{Bucket: "marshal-kill"},
		SignalTimeoutSeconds: 300,
		MinLogLines:          liveness.DefaultMinLogLines,
		ErrorLoopThreshold:   liveness.DefaultErrorLoopThreshold,
		LogWindow:            liveness.DefaultLogWindow,
		PollSeconds:          30,
		RenotifySeconds:      0,
	}
}

// applyEnv layers environment overrides on top of file values.
func applyEnv(cfg *Config) {
	cfg.Remote.URL = envOr("MARSHAL_REMOTE_URL", cfg.Remote.URL)
	cfg.Remote.Token = envOr("MARSHAL_REMOTE_TOKEN", cfg.Remote.Token)
	cfg.WebhookURL = envOr("MARSHAL_WEBHOOK_URL", cfg.WebhookURL)
	cfg.Namespace = envOr("NAMESPACE", cfg.Namespace)
	cfg.KubeConfig = envOr("KUBECONFIG", cfg.KubeConfig)
	if v := os.Getenv("MARSHAL_POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollSeconds = n
		}
	}
}

// resolvePaths anchors relative paths to the project root.
func resolvePaths(cfg *Config) {
	for _, p := range []*string{
		&cfg.MarkerPath, &cfg.ViolationsLog, &cfg.SignalsDir,
		&cfg.CatalogPath, &cfg.RosterPath,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(cfg.Root, *p)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate checks settings that would otherwise fail mid-evaluation.
func (c *Config) Validate() error {
	switch c.Runtime {
	case RuntimeDocker, RuntimeKubernetes:
	default:
		return fmt.Errorf("unknown runtime %q (want %s or %s)", c.Runtime, RuntimeDocker, RuntimeKubernetes)
	}
	if c.SignalTimeoutSeconds <= 0 {
		return fmt.Errorf("signal_timeout_seconds must be positive")
	}
	if c.PollSeconds <= 0 {
		return fmt.Errorf("poll_seconds must be positive")
	}
	if c.RenotifySeconds < 0 {
		return fmt.Errorf("renotify_seconds must not be negative")
	}
	return nil
}

// SignalTimeout returns the signal timeout as a duration.
func (c *Config) SignalTimeout() time.Duration {
	return time.Duration(c.SignalTimeoutSeconds) * time.Second
}

// PollInterval returns the continuous-mode interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

// RenotifyInterval returns the renotify window as a duration.
func (c *Config) RenotifyInterval() time.Duration {
	return time.Duration(c.RenotifySeconds) * time.Second
}

// LivenessConfig maps the settings onto evaluator thresholds.
func (c *Config) LivenessConfig() liveness.Config {
	return liveness.Config{
		SignalTimeout:      c.SignalTimeout(),
		MinLogLines:        c.MinLogLines,
		ErrorLoopThreshold: c.ErrorLoopThreshold,
		LogWindow:          c.LogWindow,
	}
}
