package cmd

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/steveyegge/marshal/internal/exitcode"
)

func TestIsSilentExit(t *testing.T) {
	code, ok := IsSilentExit(&SilentExitError{Code: exitcode.ErrDetected})
	if !ok || code != 1 {
		t.Errorf("got (%d, %v), want (1, true)", code, ok)
	}

	wrapped := fmt.Errorf("context: %w", &SilentExitError{Code: 2})
	code, ok = IsSilentExit(wrapped)
	if !ok || code != 2 {
		t.Errorf("wrapped: got (%d, %v), want (2, true)", code, ok)
	}

	if _, ok := IsSilentExit(fmt.Errorf("plain error")); ok {
		t.Error("plain error treated as silent exit")
	}
	if _, ok := IsSilentExit(nil); ok {
		t.Error("nil treated as silent exit")
	}
}

func TestRequireSubcommand(t *testing.T) {
	err := requireSubcommand(killCmd, nil)
	if err == nil {
		t.Fatal("no error for missing subcommand")
	}
	if !strings.Contains(err.Error(), "requires a subcommand") {
		t.Errorf("error = %q", err)
	}

	err = requireSubcommand(killCmd, []string{"explode"})
	if err == nil {
		t.Fatal("no error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), `"explode"`) {
		t.Errorf("error = %q", err)
	}
}

func TestKillWatchRejectsBadInterval(t *testing.T) {
	orig := killWatchInterval
	defer func() { killWatchInterval = orig }()

	for _, interval := range []int{0, -5} {
		killWatchInterval = time.Duration(interval) * time.Second
		err := runKillWatch(killWatchCmd, nil)
		if err == nil {
			t.Fatalf("interval %d accepted", interval)
		}
		if code := exitcode.Code(err); code != exitcode.ErrUsage {
			t.Errorf("interval %d: exit code = %d, want %d", interval, code, exitcode.ErrUsage)
		}
	}
}

func TestBuildCommandPath(t *testing.T) {
	if got := buildCommandPath(killCheckCmd); got != "marshal kill check" {
		t.Errorf("path = %q", got)
	}
}
