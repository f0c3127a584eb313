package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func TestFollowScansEachLine(t *testing.T) {
	ks := &fakeKill{}
	s := New(DefaultCatalog(), ks)

	lines := make(chan string, 4)
	lines <- "building project"
	lines <- "rm -rf /workspace/out"
	lines <- "git push --force origin main"
	close(lines)

	total := s.Follow(context.Background(), ChanSource(lines), "agent/nux")
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	// Each offending line trips activation independently.
	if ks.calls != 2 {
		t.Errorf("kill switch activated %d times, want 2", ks.calls)
	}
}

func TestFollowStopsOnCancel(t *testing.T) {
	s := New(DefaultCatalog(), &fakeKill{})
	ctx, cancel := context.WithCancel(context.Background())

	lines := make(chan string)
	done := make(chan int, 1)
	go func() {
		done <- s.Follow(ctx, ChanSource(lines), "agent/nux")
	}()

	lines <- "rm -rf /tmp/x"
	cancel()

	select {
	case total := <-done:
		if total != 1 {
			t.Errorf("total = %d, want 1", total)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

func TestTailFileEmitsNewLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.log")
	writeFile(t, path, "old line, skipped\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tail := &TailFile{Path: path, Interval: 20 * time.Millisecond}
	lines := tail.Lines(ctx)

	// Give the tailer a tick to record the starting offset.
	time.Sleep(60 * time.Millisecond)
	appendFile(t, path, "fresh one\nfresh two\n")

	var got []string
	deadline := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case line := <-lines:
			got = append(got, line)
		case <-deadline:
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[0] != "fresh one" || got[1] != "fresh two" {
		t.Errorf("got %v", got)
	}
}

func TestTailFileFromStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.log")
	writeFile(t, path, "first\nsecond\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tail := &TailFile{Path: path, Interval: 20 * time.Millisecond, FromStart: true}
	lines := tail.Lines(ctx)

	var got []string
	deadline := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case line := <-lines:
			got = append(got, line)
		case <-deadline:
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[0] != "first" || got[1] != "second" {
		t.Errorf("got %v", got)
	}
}

func TestTailFileHoldsPartialLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.log")
	writeFile(t, path, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tail := &TailFile{Path: path, Interval: 20 * time.Millisecond, FromStart: true}
	lines := tail.Lines(ctx)

	appendFile(t, path, "incomp")
	select {
	case line := <-lines:
		t.Fatalf("got partial line %q", line)
	case <-time.After(100 * time.Millisecond):
	}

	appendFile(t, path, "lete line\n")
	select {
	case line := <-lines:
		if line != "incomplete line" {
			t.Errorf("line = %q", line)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for completed line")
	}
}

func TestViolationLogAppendRead(t *testing.T) {
	dir := t.TempDir()
	log := NewViolationLog(filepath.Join(dir, "nested", "violations.jsonl"))

	v := Violation{ID: "v1", PatternID: "sql-drop", Category: CategoryProduction, Source: "agent/nux"}
	if err := log.Append(v); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := log.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 1 || got[0].ID != "v1" || got[0].PatternID != "sql-drop" {
		t.Fatalf("got %+v", got)
	}
}

func TestViolationLogSkipsGarbageLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "violations.jsonl")
	log := NewViolationLog(path)

	if err := log.Append(Violation{ID: "v1", PatternID: "mkfs"}); err != nil {
		t.Fatal(err)
	}
	appendFile(t, path, "not json at all\n")
	if err := log.Append(Violation{ID: "v2", PatternID: "sudo-su"}); err != nil {
		t.Fatal(err)
	}

	got, err := log.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 || got[0].ID != "v1" || got[1].ID != "v2" {
		t.Fatalf("got %+v", got)
	}
}

func TestViolationLogReadMissing(t *testing.T) {
	log := NewViolationLog(filepath.Join(t.TempDir(), "absent.jsonl"))
	got, err := log.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}
