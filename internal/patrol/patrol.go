// Package patrol drives supervision passes over the fleet: one agent on
// demand, all agents in a single pass, or a continuous loop on a fixed
// poll interval. It owns the per-agent alert history and decides when a
// stuck condition warrants a signal artifact and a notification.
package patrol

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/marshal/internal/liveness"
	"github.com/steveyegge/marshal/internal/notify"
	"github.com/steveyegge/marshal/internal/signals"
)

// Report aggregates one all-agents pass.
type Report struct {
	Snapshots []liveness.Snapshot
	StartedAt time.Time
}

// StuckCount returns how many agents are stuck.
func (r Report) StuckCount() int {
	n := 0
	for _, s := range r.Snapshots {
		if s.Stuck() {
			n++
		}
	}
	return n
}

// Stuck returns the stuck snapshots in evaluation order.
func (r Report) Stuck() []liveness.Snapshot {
	var out []liveness.Snapshot
	for _, s := range r.Snapshots {
		if s.Stuck() {
			out = append(out, s)
		}
	}
	return out
}

// alertState remembers the last alert sent for an agent.
type alertState struct {
	reason string
	at     time.Time
}

// Patrol evaluates the fleet and emits alerts on stuck transitions. It
// runs on a single goroutine; agents are evaluated sequentially within a
// cycle so each cycle sees one consistent snapshot window.
type Patrol struct {
	eval     *liveness.Evaluator
	agents   []liveness.Agent
	writer   *signals.Writer // nil disables artifacts
	notifier notify.Notifier // nil disables notifications
	renotify time.Duration
	last     map[string]alertState
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Patrol.
type Option func(*Patrol)

// WithSignals enables stuck artifact emission.
func WithSignals(w *signals.Writer) Option {
	return func(p *Patrol) { p.writer = w }
}

// WithNotifier enables external notification.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Patrol) { p.notifier = n }
}

// WithRenotifyInterval re-sends an unchanged stuck alert after d. Zero
// alerts only on transition or reason change, so a persistent condition
// never storms the channel.
func WithRenotifyInterval(d time.Duration) Option {
	return func(p *Patrol) { p.renotify = d }
}

// WithClock overrides the patrol's time source.
func WithClock(now func() time.Time) Option {
	return func(p *Patrol) { p.now = now }
}

// WithLogger sets the patrol's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Patrol) { p.logger = l }
}

// New creates a Patrol over the roster.
func New(eval *liveness.Evaluator, agents []liveness.Agent, opts ...Option) *Patrol {
	p := &Patrol{
		eval:   eval,
		agents: agents,
		last:   make(map[string]alertState),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckAgent evaluates one named agent.
func (p *Patrol) CheckAgent(ctx context.Context, id string) (liveness.Snapshot, error) {
	for _, a := range p.agents {
		if a.ID == id {
			snap := p.eval.Evaluate(ctx, a)
			p.handle(ctx, snap)
			return snap, nil
		}
	}
	return liveness.Snapshot{}, fmt.Errorf("agent %q is not in the roster", id)
}

// CheckAll evaluates every agent once.
func (p *Patrol) CheckAll(ctx context.Context) Report {
	report := Report{StartedAt: p.now()}
	for _, a := range p.agents {
		if ctx.Err() != nil {
			break
		}
		snap := p.eval.Evaluate(ctx, a)
		p.handle(ctx, snap)
		report.Snapshots = append(report.Snapshots, snap)
	}
	return report
}

// Run repeats CheckAll on the poll interval until ctx is cancelled. Each
// completed report is passed to onReport (may be nil).
func (p *Patrol) Run(ctx context.Context, interval time.Duration, onReport func(Report)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report := p.CheckAll(ctx)
		if onReport != nil {
			onReport(report)
		}
		p.logger.Info("patrol cycle complete",
			"agents", len(report.Snapshots), "stuck", report.StuckCount())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// handle emits the artifact and notification for a stuck snapshot.
// Healthy and unstarted snapshots clear the alert history so the next
// stuck transition alerts again.
func (p *Patrol) handle(ctx context.Context, snap liveness.Snapshot) {
	if !snap.Stuck() {
		delete(p.last, snap.AgentID)
		return
	}

	now := p.now()
	prev, seen := p.last[snap.AgentID]
	if seen && prev.reason == snap.Reason {
		if p.renotify <= 0 || now.Sub(prev.at) < p.renotify {
			return
		}
	}
	p.last[snap.AgentID] = alertState{reason: snap.Reason, at: now}

	p.logger.Error("agent stuck",
		"agent", snap.AgentID, "reason", snap.Reason, "state", snap.ContainerState)

	if p.writer != nil {
		level := signals.LevelWarning
		if snap.ContainerState != liveness.StateRunning {
			level = signals.LevelCritical
		}
		if _, err := p.writer.WriteStuck(snap.AgentID, snap.Reason, level); err != nil {
			p.logger.Warn("stuck signal write failed", "agent", snap.AgentID, "error", err)
		}
	}
	if p.notifier != nil {
		res := p.notifier.Notify(ctx, notify.Message{
			Title:    fmt.Sprintf("agent %s is stuck", snap.AgentID),
			Body:     snap.Reason,
			Agent:    snap.AgentID,
			Severity: "warning",
			SentAt:   now,
		})
		if res.OK {
			p.logger.Debug("stuck alert delivered",
				"agent", snap.AgentID, "channel", res.Channel, "elapsed", res.Elapsed)
		} else {
			p.logger.Warn("stuck alert delivery failed",
				"agent", snap.AgentID, "channel", res.Channel, "error", res.Err)
		}
	}
}
