// Package cmd provides CLI commands for the marshal tool.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/marshal/internal/exitcode"
)

var rootCmd = &cobra.Command{
	Use:     "marshal",
	Short:   "Marshal - agent fleet safety and liveness supervisor",
	Version: Version,
	Long: `Marshal supervises fleets of containerized coding agents.

It maintains a dual-source kill switch that agents consult before acting,
scans agent output for forbidden operation patterns, and judges whether
agents are stuck from container state, signal recency, and error loops.

Exit codes are the machine-readable contract: 0 means safe or healthy,
1 means a problem was detected, 2 means the invocation was invalid.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// flagRoot is the project root all supervision state lives under.
var flagRoot string

// Command group IDs - used by subcommands to organize help output
const (
	GroupSafety   = "safety"
	GroupLiveness = "liveness"
	GroupDiag     = "diag"
)

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupSafety, Title: "Safety:"},
		&cobra.Group{ID: GroupLiveness, Title: "Liveness:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)
	rootCmd.SetHelpCommandGroupID(GroupDiag)
	rootCmd.SetCompletionCommandGroupID(GroupDiag)

	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", os.Getenv("MARSHAL_ROOT"),
		"project root holding supervision state (env: MARSHAL_ROOT)")
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		// Silent exits signal status purely via exit code.
		if code, ok := IsSilentExit(err); ok {
			return code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var coded *exitcode.Error
		if errors.As(err, &coded) {
			return coded.Code
		}
		// Uncoded errors escaping to here are invocation mistakes
		// (unknown flags, bad arguments); runtime failures carry codes.
		return exitcode.ErrUsage
	}
	return exitcode.Success
}

// SilentExitError signals an exit code without printing anything. Used by
// scripting commands whose pass/fail output has already been written.
type SilentExitError struct {
	Code int
}

func (e *SilentExitError) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}

// IsSilentExit reports whether err requests a silent exit and with what code.
func IsSilentExit(err error) (int, bool) {
	var silent *SilentExitError
	if errors.As(err, &silent) {
		return silent.Code, true
	}
	return 0, false
}

// buildCommandPath walks the command hierarchy to build the full command path.
func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for c := cmd; c != nil; c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}

// requireSubcommand returns a RunE function for parent commands that require
// a subcommand. Without this, Cobra silently shows help and exits 0 for
// unknown subcommands, masking errors.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\nRun '%s --help' for usage", buildCommandPath(cmd))
	}
	return fmt.Errorf("unknown command %q for %q\n\nRun '%s --help' for available commands",
		args[0], buildCommandPath(cmd), buildCommandPath(cmd))
}
