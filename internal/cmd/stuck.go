package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/marshal/internal/config"
	"github.com/steveyegge/marshal/internal/exitcode"
	"github.com/steveyegge/marshal/internal/liveness"
	"github.com/steveyegge/marshal/internal/patrol"
	"github.com/steveyegge/marshal/internal/signals"
	"github.com/steveyegge/marshal/internal/style"
)

var (
	stuckAgent   string
	stuckAll     bool
	stuckWatch   bool
	stuckTimeout int
	stuckPoll    int
)

var stuckCmd = &cobra.Command{
	Use:     "stuck",
	Short:   "Evaluate agent liveness",
	GroupID: GroupLiveness,
	Long: `Judges whether agents are making progress.

Per agent, the checks run in priority order: container lifecycle state,
signal-file recency, error-loop detection, then minimum log activity.
A stuck verdict writes a signal artifact and notifies the configured
channels; an ongoing condition alerts again only when its reason
changes or the renotify window elapses.

Exit codes: 0 healthy, 1 one or more agents stuck, 2 bad arguments.

Examples:
  marshal stuck --agent nux
  marshal stuck --all
  marshal stuck --all --watch --poll 30
  marshal stuck --agent nux --timeout 120`,
	Args: cobra.NoArgs,
	RunE: runStuck,
}

func init() {
	stuckCmd.Flags().StringVar(&stuckAgent, "agent", "", "evaluate one named agent")
	stuckCmd.Flags().BoolVar(&stuckAll, "all", false, "evaluate every agent in the roster")
	stuckCmd.Flags().BoolVar(&stuckWatch, "watch", false, "repeat the evaluation on the poll interval")
	stuckCmd.Flags().IntVar(&stuckTimeout, "timeout", 0, "signal timeout in seconds (overrides config)")
	stuckCmd.Flags().IntVar(&stuckPoll, "poll", 0, "poll interval in seconds (overrides config)")

	rootCmd.AddCommand(stuckCmd)
}

func runStuck(cmd *cobra.Command, args []string) error {
	if stuckAgent == "" && !stuckAll {
		return exitcode.Usage("pass --agent <id> or --all")
	}
	if stuckAgent != "" && stuckAll {
		return exitcode.Usage("--agent and --all are mutually exclusive")
	}
	if stuckWatch && !stuckAll {
		return exitcode.Usage("--watch requires --all")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if stuckTimeout > 0 {
		cfg.SignalTimeoutSeconds = stuckTimeout
	}
	if stuckPoll > 0 {
		cfg.PollSeconds = stuckPoll
	}

	agents, err := config.LoadRoster(cfg.RosterPath)
	if err != nil {
		return exitcode.Wrap(exitcode.ErrUsage, "loading fleet roster", err)
	}
	states, err := newStateSource(cfg)
	if err != nil {
		return err
	}
	eval := liveness.NewEvaluator(cfg.LivenessConfig(), states, liveness.FileSignals{}, liveness.FileLogs{})
	p := patrol.New(eval, agents,
		patrol.WithSignals(signals.NewWriter(cfg.SignalsDir)),
		patrol.WithNotifier(newNotifier(cfg)),
		patrol.WithRenotifyInterval(cfg.RenotifyInterval()),
	)

	if stuckAgent != "" {
		return runStuckAgent(cmd, p)
	}
	if stuckWatch {
		return runStuckWatch(cmd, p, cfg)
	}
	return runStuckAll(cmd, p)
}

func runStuckAgent(cmd *cobra.Command, p *patrol.Patrol) error {
	snap, err := p.CheckAgent(cmd.Context(), stuckAgent)
	if err != nil {
		return exitcode.Wrap(exitcode.ErrUsage, "evaluating agent", err)
	}
	printSnapshot(snap)
	if snap.Stuck() {
		return &SilentExitError{Code: exitcode.ErrDetected}
	}
	return nil
}

func runStuckAll(cmd *cobra.Command, p *patrol.Patrol) error {
	report := p.CheckAll(cmd.Context())
	printReport(report)
	if report.StuckCount() > 0 {
		return &SilentExitError{Code: exitcode.ErrDetected}
	}
	return nil
}

func runStuckWatch(cmd *cobra.Command, p *patrol.Patrol, cfg *config.Config) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	fmt.Println(style.Dim(fmt.Sprintf("patrolling every %s, interrupt to stop", cfg.PollInterval())))
	_ = p.Run(ctx, cfg.PollInterval(), func(r patrol.Report) {
		printReport(r)
	})
	return nil
}

func printReport(r patrol.Report) {
	for _, snap := range r.Snapshots {
		printSnapshot(snap)
	}
	fmt.Println(style.Summary(len(r.Snapshots), r.StuckCount()))
}

func printSnapshot(s liveness.Snapshot) {
	switch s.Verdict {
	case liveness.VerdictHealthy:
		fmt.Println(style.Pass("%s: healthy", s.AgentID))
	case liveness.VerdictUnstarted:
		fmt.Println(style.Warn("%s: not started yet", s.AgentID))
	default:
		fmt.Println(style.Fail("%s: stuck - %s", s.AgentID, s.Reason))
	}
}
