// Package liveness judges whether fleet agents are making progress. Per
// agent it combines container lifecycle state, signal-file recency, and
// error-repetition heuristics into a single verdict with a
// human-readable reason. The checks run in strict priority order; the
// first matching condition wins.
package liveness

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ContainerState is the coarse lifecycle state of an agent's container.
type ContainerState string

const (
	StateUnknown  ContainerState = "unknown"
	StateRunning  ContainerState = "running"
	StateExited   ContainerState = "exited"
	StateNotFound ContainerState = "not_found"
	StateOther    ContainerState = "other"
)

// Verdict is the liveness judgement for one agent.
type Verdict string

const (
	// VerdictHealthy means the agent is progressing.
	VerdictHealthy Verdict = "healthy"
	// VerdictStuck means the agent is judged non-progressing. Not
	// necessarily crashed.
	VerdictStuck Verdict = "stuck"
	// VerdictUnstarted means the agent's container does not exist yet.
	// Not an error.
	VerdictUnstarted Verdict = "unstarted"
)

// Agent identifies one fleet member and where its evidence lives.
type Agent struct {
	ID         string
	Container  string
	SignalFile string
	LogPath    string
}

// Snapshot is the result of one liveness evaluation.
type Snapshot struct {
	AgentID            string
	ContainerState     ContainerState
	LastSignalAt       time.Time // zero means no signal observed
	ErrorSignature     string
	RepeatedErrorCount int
	Verdict            Verdict
	Reason             string
	CheckedAt          time.Time
}

// Stuck reports whether the snapshot's verdict is stuck.
func (s Snapshot) Stuck() bool { return s.Verdict == VerdictStuck }

// StateSource reports the container state for an agent.
type StateSource interface {
	State(ctx context.Context, container string) (ContainerState, error)
}

// SignalSource reports when a signal file was last updated.
type SignalSource interface {
	LastSignal(path string) (at time.Time, ok bool, err error)
}

// LogSource returns a bounded recent window of an agent's log lines.
// Lines only count as activity when the log was written after since; a
// log untouched since then yields no lines.
type LogSource interface {
	Tail(path string, maxLines int, since time.Time) ([]string, error)
}

// Defaults for Config.
const (
	DefaultSignalTimeout      = 5 * time.Minute
	DefaultMinLogLines        = 5
	DefaultErrorLoopThreshold = 3
	DefaultLogWindow          = 50
)

// Config holds the evaluation thresholds. Zero values take the defaults.
type Config struct {
	// SignalTimeout is the maximum silence tolerated since the last
	// signal-file update.
	SignalTimeout time.Duration

	// MinLogLines is the minimum log activity expected within the window.
	MinLogLines int

	// ErrorLoopThreshold is the number of consecutive cycles the same
	// dominant error signature must persist before the agent is stuck.
	ErrorLoopThreshold int

	// LogWindow is how many trailing log lines to inspect.
	LogWindow int
}

func (c Config) withDefaults() Config {
	if c.SignalTimeout <= 0 {
		c.SignalTimeout = DefaultSignalTimeout
	}
	if c.MinLogLines <= 0 {
		c.MinLogLines = DefaultMinLogLines
	}
	if c.ErrorLoopThreshold <= 0 {
		c.ErrorLoopThreshold = DefaultErrorLoopThreshold
	}
	if c.LogWindow <= 0 {
		c.LogWindow = DefaultLogWindow
	}
	return c
}

// errorHistory is the only state carried across cycles, keyed by agent.
type errorHistory struct {
	signature string
	count     int
}

// Evaluator runs the per-agent liveness state machine. It is driven by a
// single supervision loop and is not safe for concurrent use.
type Evaluator struct {
	cfg     Config
	states  StateSource
	signals SignalSource
	logs    LogSource
	history map[string]errorHistory
	now     func() time.Time
	logger  *slog.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithClock overrides the evaluator's time source.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// WithLogger sets the evaluator's logger.
func WithLogger(l *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator creates an Evaluator over the given evidence sources.
func NewEvaluator(cfg Config, states StateSource, signals SignalSource, logs LogSource, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		cfg:     cfg.withDefaults(),
		states:  states,
		signals: signals,
		logs:    logs,
		history: make(map[string]errorHistory),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs one evaluation cycle for the agent. Evidence-source
// failures degrade to "no new evidence" and never flip the verdict to
// healthy or stuck on their own.
func (e *Evaluator) Evaluate(ctx context.Context, agent Agent) Snapshot {
	snap := Snapshot{AgentID: agent.ID, CheckedAt: e.now()}

	state, err := e.states.State(ctx, agent.Container)
	if err != nil {
		e.logger.Warn("container state query failed",
			"agent", agent.ID, "container", agent.Container, "error", err)
		state = StateUnknown
	}
	snap.ContainerState = state

	// 1. Absent container: the agent simply has not launched.
	if state == StateNotFound {
		snap.Verdict = VerdictUnstarted
		snap.Reason = "container not started"
		delete(e.history, agent.ID)
		return snap
	}

	// 2. Anything other than running is abnormal.
	if state != StateRunning {
		snap.Verdict = VerdictStuck
		snap.Reason = fmt.Sprintf("abnormal container state: %s", state)
		return snap
	}

	// 3. Signal-file recency.
	if agent.SignalFile != "" {
		at, ok, err := e.signals.LastSignal(agent.SignalFile)
		if err != nil {
			e.logger.Warn("signal file check failed",
				"agent", agent.ID, "path", agent.SignalFile, "error", err)
		} else if ok {
			snap.LastSignalAt = at
			if age := e.now().Sub(at); age > e.cfg.SignalTimeout {
				snap.Verdict = VerdictStuck
				snap.Reason = fmt.Sprintf("no signal for %s (timeout %s)",
					age.Truncate(time.Second), e.cfg.SignalTimeout)
				return snap
			}
		}
	}

	// Rules 4 and 5 need log evidence; an agent with no configured log
	// cannot fail them.
	if agent.LogPath == "" {
		snap.Verdict = VerdictHealthy
		snap.Reason = "agent is progressing"
		return snap
	}

	// 4. Error repetition across the recent log window. Old content does
	// not count: a log frozen for longer than the timeout is no activity.
	lines, err := e.logs.Tail(agent.LogPath, e.cfg.LogWindow, snap.CheckedAt.Add(-e.cfg.SignalTimeout))
	if err != nil {
		e.logger.Warn("log tail failed",
			"agent", agent.ID, "path", agent.LogPath, "error", err)
		lines = nil
	}
	if sig, ok := dominantErrorSignature(lines); ok {
		count := 1
		if prev, exists := e.history[agent.ID]; exists && prev.signature == sig {
			count = prev.count + 1
		}
		e.history[agent.ID] = errorHistory{signature: sig, count: count}
		snap.ErrorSignature = sig
		snap.RepeatedErrorCount = count
		if count >= e.cfg.ErrorLoopThreshold {
			snap.Verdict = VerdictStuck
			snap.Reason = fmt.Sprintf("error loop: same error repeated for %d cycles", count)
			return snap
		}
	} else {
		delete(e.history, agent.ID)
	}

	// 5. Minimal activity.
	if len(lines) < e.cfg.MinLogLines {
		snap.Verdict = VerdictStuck
		snap.Reason = fmt.Sprintf("minimal activity: %d log lines in window (min %d)",
			len(lines), e.cfg.MinLogLines)
		return snap
	}

	snap.Verdict = VerdictHealthy
	snap.Reason = "agent is progressing"
	return snap
}

// Forget drops the carried error history for an agent.
func (e *Evaluator) Forget(agentID string) {
	delete(e.history, agentID)
}
