package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/steveyegge/marshal/internal/config"
	"github.com/steveyegge/marshal/internal/exitcode"
	"github.com/steveyegge/marshal/internal/killswitch"
	"github.com/steveyegge/marshal/internal/liveness"
	"github.com/steveyegge/marshal/internal/notify"
)

// loadConfig resolves the project root and loads settings. A missing
// root is a usage error: it aborts before any evidence gathering.
func loadConfig() (*config.Config, error) {
	if flagRoot == "" {
		return nil, exitcode.Usage("project root required: pass --root or set MARSHAL_ROOT")
	}
	cfg, err := config.Load(flagRoot)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ErrUsage, "loading configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, exitcode.Wrap(exitcode.ErrUsage, "invalid configuration", err)
	}
	return cfg, nil
}

// newCoordinator builds the kill-switch coordinator. When a remote store
// is configured but unreachable, the coordinator runs local-only and the
// connection error is returned as remoteErr for a degraded-check warning;
// an unreachable remote is never fatal.
func newCoordinator(ctx context.Context, cfg *config.Config) (ks *killswitch.Coordinator, cleanup func(), remoteErr error) {
	cleanup = func() {}
	var opts []killswitch.Option
	if cfg.Remote.URL != "" {
		store, err := killswitch.NewNATSStore(ctx, killswitch.NATSConfig{
			URL:    cfg.Remote.URL,
			Token:  cfg.Remote.Token,
			Bucket: cfg.Remote.Bucket,
		}, slog.Default())
		if err != nil {
			remoteErr = err
		} else {
			opts = append(opts, killswitch.WithRemote(store))
			cleanup = store.Close
		}
	}
	return killswitch.New(cfg.MarkerPath, opts...), cleanup, remoteErr
}

// newStateSource picks the container runtime backend.
func newStateSource(cfg *config.Config) (liveness.StateSource, error) {
	switch cfg.Runtime {
	case config.RuntimeKubernetes:
		src, err := liveness.NewPodSourceFromKubeconfig(cfg.KubeConfig, cfg.Namespace)
		if err != nil {
			return nil, exitcode.Wrap(exitcode.ErrNetwork, "connecting to kubernetes", err)
		}
		return src, nil
	default:
		return &liveness.DockerSource{}, nil
	}
}

// newNotifier builds the alert fanout: always the structured log, plus
// the webhook when configured.
func newNotifier(cfg *config.Config) notify.Notifier {
	channels := []notify.Notifier{&notify.LogNotifier{}}
	if cfg.WebhookURL != "" {
		channels = append(channels, notify.NewWebhook(cfg.WebhookURL))
	}
	return notify.NewFanout(slog.Default(), channels...)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
