package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the marshal release version. Overridden at build time via
// -ldflags "-X github.com/steveyegge/marshal/internal/cmd.Version=...".
var Version = "0.2.0"

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version information",
	GroupID: GroupDiag,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("marshal %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
