package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/marshal/internal/exitcode"
	"github.com/steveyegge/marshal/internal/scanner"
	"github.com/steveyegge/marshal/internal/style"
)

var (
	scanFile   string
	scanURL    string
	scanFollow bool
)

var scanCmd = &cobra.Command{
	Use:     "scan",
	Short:   "Scan agent output for forbidden operations",
	GroupID: GroupSafety,
	Long: `Matches agent output against the forbidden-operation catalog.

Any single hit activates the kill switch and halts the fleet; there is
no severity tiering. One-shot mode scans a file and exits; follow mode
tails a growing file or subscribes to a live WebSocket log stream and
scans each line as it arrives, until interrupted.

Exit codes: 0 clean, 1 violation found.

Examples:
  marshal scan --file logs/nux.log
  marshal scan --file logs/nux.log --follow
  marshal scan --url ws://fleet-host:9800/logs/nux`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFile, "file", "", "file to scan")
	scanCmd.Flags().StringVar(&scanURL, "url", "", "WebSocket log stream to scan")
	scanCmd.Flags().BoolVar(&scanFollow, "follow", false, "tail the file instead of one-shot scanning")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFile == "" && scanURL == "" {
		return exitcode.Usage("nothing to scan: pass --file or --url")
	}
	if scanFile != "" && scanURL != "" {
		return exitcode.Usage("--file and --url are mutually exclusive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := scanner.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return exitcode.Wrap(exitcode.ErrUsage, "loading pattern catalog", err)
	}

	ctx := cmd.Context()
	ks, cleanup, remoteErr := newCoordinator(ctx, cfg)
	defer cleanup()
	if remoteErr != nil {
		fmt.Println(style.Warn("remote kill store unreachable, activations stay local: %v", remoteErr))
	}

	s := scanner.New(catalog, ks,
		scanner.WithViolationLog(scanner.NewViolationLog(cfg.ViolationsLog)))

	if scanURL == "" && !scanFollow {
		return runScanOnce(cmd, s)
	}
	return runScanFollow(cmd, s)
}

func runScanOnce(cmd *cobra.Command, s *scanner.Scanner) error {
	violations, err := s.ScanFile(cmd.Context(), scanFile)
	if err != nil {
		return exitcode.Wrap(exitcode.ErrInternal, "scanning file", err)
	}
	for _, v := range violations {
		fmt.Println(style.Fail("%s [%s]: %s", v.PatternID, v.Category, v.Excerpt))
	}
	if len(violations) > 0 {
		fmt.Println(style.Fail("%d violation(s) in %s, kill switch activated", len(violations), scanFile))
		return &SilentExitError{Code: exitcode.ErrDetected}
	}
	fmt.Println(style.Pass("%s is clean", scanFile))
	return nil
}

func runScanFollow(cmd *cobra.Command, s *scanner.Scanner) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	var (
		src    scanner.LineSource
		source string
	)
	if scanURL != "" {
		src = &scanner.StreamSource{URL: scanURL}
		source = scanURL
	} else {
		src = &scanner.TailFile{Path: scanFile}
		source = scanFile
	}

	fmt.Println(style.Dim(fmt.Sprintf("scanning %s, interrupt to stop", source)))
	total := s.Follow(ctx, src, source)
	if total > 0 {
		fmt.Println(style.Fail("%d violation(s) detected", total))
		return &SilentExitError{Code: exitcode.ErrDetected}
	}
	fmt.Println(style.Pass("no violations detected"))
	return nil
}
