// Package killswitch implements the fleet-wide halt flag.
//
// The switch has two sources of truth: a local marker file (authoritative,
// fast, survives network partitions) and a remote record (shared across
// hosts). Effective state is the most restrictive of the two: if either
// source shows active, the fleet is halted. Agents consult Check before
// acting.
package killswitch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRemoteTimeout bounds every remote store call so an unresponsive
// dependency cannot stall a safety decision.
const DefaultRemoteTimeout = 3 * time.Second

// Source identifies which store produced the effective state.
type Source string

const (
	SourceNone   Source = "none"
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// State is the effective kill-switch state.
type State struct {
	Active      bool      `json:"active"`
	Reason      string    `json:"reason,omitempty"`
	ActivatedBy string    `json:"activated_by,omitempty"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
	Source      Source    `json:"source"`
}

// CheckResult carries the effective state plus degraded-evidence context.
// A degraded check (remote unreachable) never flips the verdict, but
// operators need to see it happened.
type CheckResult struct {
	State    State
	Degraded bool
	Warning  string
}

// Coordinator reconciles local and remote kill state. It is the single
// writer of the local marker.
type Coordinator struct {
	local         *LocalStore
	remote        RemoteStore // nil when no remote store is configured
	remoteTimeout time.Duration
	logger        *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRemote attaches a remote store.
func WithRemote(r RemoteStore) Option {
	return func(c *Coordinator) { c.remote = r }
}

// WithRemoteTimeout bounds remote store calls.
func WithRemoteTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.remoteTimeout = d }
}

// WithLogger sets the coordinator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a Coordinator over the given local marker path.
func New(markerPath string, opts ...Option) *Coordinator {
	c := &Coordinator{
		local:         NewLocalStore(markerPath),
		remoteTimeout: DefaultRemoteTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns the effective kill-switch state.
//
// The local marker is read first: if present, the switch is active
// regardless of remote state or reachability. If absent, the remote store
// is queried with a bounded timeout. A remote failure degrades to "no
// remote signal", reported as a warning, never treated as active and
// never silently treated as safe. If the remote reports active, the local
// marker is mirrored before returning so a later local-only check (for
// example under a network partition) still halts agents.
func (c *Coordinator) Check(ctx context.Context) CheckResult {
	marker, err := c.local.Read()
	if err != nil {
		// Marker unreadable but present counts as active: absence is the
		// only thing that means inactive.
		if c.local.Exists() {
			c.logger.Warn("kill marker unreadable, treating as active", "error", err)
			return CheckResult{
				State:    State{Active: true, Reason: "unreadable kill marker", Source: SourceLocal},
				Degraded: true,
				Warning:  fmt.Sprintf("kill marker unreadable: %v", err),
			}
		}
	}
	if marker != nil {
		return CheckResult{State: State{
			Active:      true,
			Reason:      marker.Reason,
			ActivatedBy: marker.ActivatedBy,
			ActivatedAt: marker.ActivatedAt,
			Source:      SourceLocal,
		}}
	}

	if c.remote == nil {
		return CheckResult{State: State{Source: SourceNone}}
	}

	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	record, err := c.remote.Fetch(rctx)
	if err != nil {
		c.logger.Warn("remote kill check failed, assuming no remote signal", "error", err)
		return CheckResult{
			State:    State{Source: SourceNone},
			Degraded: true,
			Warning:  fmt.Sprintf("remote kill check failed: %v", err),
		}
	}
	if record == nil || !record.IsActive {
		return CheckResult{State: State{Source: SourceNone}}
	}

	// Remote says halt. Mirror to the local marker so subsequent
	// local-only checks stay halted even if the remote becomes
	// unreachable. A mirror failure does not change the verdict.
	result := CheckResult{State: State{
		Active:      true,
		Reason:      record.Reason,
		ActivatedBy: record.ActivatedBy,
		ActivatedAt: record.ActivatedAt,
		Source:      SourceRemote,
	}}
	if err := c.local.Write(Marker{
		Reason:      record.Reason,
		ActivatedBy: record.ActivatedBy,
		ActivatedAt: record.ActivatedAt,
	}); err != nil {
		c.logger.Warn("failed to mirror remote kill state locally", "error", err)
		result.Degraded = true
		result.Warning = fmt.Sprintf("local mirror of remote kill state failed: %v", err)
	}
	return result
}

// Activate halts the fleet. The local marker write must succeed; the
// remote mirror is best-effort. Repeated activation with the same
// arguments is a no-op beyond refreshing nothing observable.
func (c *Coordinator) Activate(ctx context.Context, reason, activatedBy string) error {
	existing, _ := c.local.Read()
	marker := Marker{
		Reason:      reason,
		ActivatedBy: activatedBy,
		ActivatedAt: time.Now().UTC(),
	}
	if existing != nil && existing.Reason == reason && existing.ActivatedBy == activatedBy {
		// Already active with identical arguments. Keep the original
		// activation time so repeated calls are observably idempotent.
		marker.ActivatedAt = existing.ActivatedAt
	}

	if err := c.local.Write(marker); err != nil {
		return fmt.Errorf("writing kill marker: %w", err)
	}
	c.logger.Info("kill switch activated", "reason", reason, "by", activatedBy)

	if c.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
		defer cancel()
		if err := c.remote.Publish(rctx, RemoteRecord{
			IsActive:    true,
			Reason:      reason,
			ActivatedBy: activatedBy,
			ActivatedAt: marker.ActivatedAt,
		}); err != nil {
			// Local-first durability: the halt already holds locally.
			c.logger.Warn("remote kill mirror failed", "error", err)
		}
	}
	return nil
}

// Deactivate clears the halt. The local marker is removed; the remote
// clear is best-effort. If the remote clear fails, the stores are
// inconsistent until the next Check against the remote re-activates the
// local marker, a bounded inconsistency window.
func (c *Coordinator) Deactivate(ctx context.Context) error {
	if err := c.local.Remove(); err != nil {
		return fmt.Errorf("removing kill marker: %w", err)
	}
	c.logger.Info("kill switch deactivated locally")

	if c.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
		defer cancel()
		if err := c.remote.Clear(rctx); err != nil {
			c.logger.Warn("remote kill clear failed; local state may re-activate on next remote poll", "error", err)
		}
	}
	return nil
}

// IsActive is a convenience wrapper over Check for callers that only need
// the boolean verdict.
func (c *Coordinator) IsActive(ctx context.Context) bool {
	return c.Check(ctx).State.Active
}

// MarkerPath returns the path of the local marker file.
func (c *Coordinator) MarkerPath() string {
	return c.local.Path()
}
