package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/marshal/internal/exitcode"
	"github.com/steveyegge/marshal/internal/killswitch"
	"github.com/steveyegge/marshal/internal/style"
)

var killCmd = &cobra.Command{
	Use:     "kill",
	Short:   "Fleet-wide kill switch",
	GroupID: GroupSafety,
	Long: `Manages the fleet-wide halt flag that agents consult before acting.

The switch has two sources: a local marker file and an optional remote
record. If either shows active, the fleet is halted.`,
	RunE: requireSubcommand,
}

var killCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether the kill switch is active",
	Long: `Checks the kill switch: local marker first, then the remote record.

A remote query failure degrades to a local-only answer with a warning;
it never reads as active and never silently reads as safe.

Exit codes: 0 clear, 1 active.`,
	Args: cobra.NoArgs,
	RunE: runKillCheck,
}

var killActivateCmd = &cobra.Command{
	Use:   "activate <reason> [activated-by]",
	Short: "Activate the kill switch",
	Long: `Halts the fleet. The local marker is written first and must succeed;
the remote record is mirrored best-effort. Repeating an activation with
identical arguments is a no-op.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runKillActivate,
}

var killDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate the kill switch",
	Long: `Clears the local marker and best-effort clears the remote record.

If the remote clear fails, the next check re-mirrors the remote state
into the local marker; the inconsistency window lasts at most one poll.`,
	Args: cobra.NoArgs,
	RunE: runKillDeactivate,
}

var killWatchInterval time.Duration

var killWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously poll the kill switch",
	Long: `Polls the kill switch on a fixed interval and prints state
transitions. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runKillWatch,
}

func init() {
	killWatchCmd.Flags().DurationVar(&killWatchInterval, "interval", 10*time.Second,
		"poll interval")

	killCmd.AddCommand(killCheckCmd, killActivateCmd, killDeactivateCmd, killWatchCmd)
	rootCmd.AddCommand(killCmd)
}

func runKillCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ks, cleanup, remoteErr := newCoordinator(ctx, cfg)
	defer cleanup()
	if remoteErr != nil {
		fmt.Println(style.Warn("remote kill store unreachable, local-only check: %v", remoteErr))
	}

	res := ks.Check(ctx)
	if res.Degraded && res.Warning != "" {
		fmt.Println(style.Warn("%s", res.Warning))
	}
	printKillState(res.State)
	if res.State.Active {
		return &SilentExitError{Code: exitcode.ErrDetected}
	}
	return nil
}

func runKillActivate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reason := args[0]
	activatedBy := "operator"
	if len(args) > 1 {
		activatedBy = args[1]
	} else if u := os.Getenv("USER"); u != "" {
		activatedBy = u
	}

	ctx := cmd.Context()
	ks, cleanup, remoteErr := newCoordinator(ctx, cfg)
	defer cleanup()
	if remoteErr != nil {
		fmt.Println(style.Warn("remote kill store unreachable, activating locally only: %v", remoteErr))
	}

	if err := ks.Activate(ctx, reason, activatedBy); err != nil {
		return exitcode.Wrap(exitcode.ErrInternal, "activating kill switch", err)
	}
	fmt.Println(style.Fail("kill switch ACTIVE: %s (by %s)", reason, activatedBy))
	return nil
}

func runKillDeactivate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ks, cleanup, remoteErr := newCoordinator(ctx, cfg)
	defer cleanup()
	if remoteErr != nil {
		fmt.Println(style.Warn("remote kill store unreachable, clearing locally only: %v", remoteErr))
	}

	if err := ks.Deactivate(ctx); err != nil {
		return exitcode.Wrap(exitcode.ErrInternal, "deactivating kill switch", err)
	}
	fmt.Println(style.Pass("kill switch clear"))
	return nil
}

func runKillWatch(cmd *cobra.Command, args []string) error {
	if killWatchInterval <= 0 {
		return exitcode.Usagef("--interval must be positive, got %s", killWatchInterval)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	ks, cleanup, remoteErr := newCoordinator(ctx, cfg)
	defer cleanup()
	if remoteErr != nil {
		fmt.Println(style.Warn("remote kill store unreachable, watching local marker only: %v", remoteErr))
	}

	ticker := time.NewTicker(killWatchInterval)
	defer ticker.Stop()

	var wasActive, first = false, true
	for {
		res := ks.Check(ctx)
		if res.Degraded && res.Warning != "" {
			fmt.Println(style.Warn("%s", res.Warning))
		}
		if first || res.State.Active != wasActive {
			printKillState(res.State)
			wasActive = res.State.Active
			first = false
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printKillState(st killswitch.State) {
	if !st.Active {
		fmt.Println(style.Pass("kill switch clear"))
		return
	}
	line := fmt.Sprintf("kill switch ACTIVE: %s", st.Reason)
	if st.ActivatedBy != "" {
		line += fmt.Sprintf(" (by %s)", st.ActivatedBy)
	}
	if !st.ActivatedAt.IsZero() {
		line += fmt.Sprintf(" at %s", st.ActivatedAt.Format(time.RFC3339))
	}
	fmt.Println(style.Fail("%s", line))
	fmt.Println(style.Dim(fmt.Sprintf("source: %s", st.Source)))
}
