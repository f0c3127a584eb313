package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAtomicWriteFile(t *testing.T) {
	t.Run("writes content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "marker")
		if err := AtomicWriteFile(path, []byte("halt"), 0644); err != nil {
			t.Fatalf("AtomicWriteFile: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(data) != "halt" {
			t.Errorf("content = %q, want %q", data, "halt")
		}
	})

	t.Run("creates parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "signals", "deep", "marker")
		if err := AtomicWriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("AtomicWriteFile: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("target missing: %v", err)
		}
	})

	t.Run("overwrites existing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "marker")
		if err := AtomicWriteFile(path, []byte("first"), 0644); err != nil {
			t.Fatalf("first write: %v", err)
		}
		if err := AtomicWriteFile(path, []byte("second"), 0644); err != nil {
			t.Fatalf("second write: %v", err)
		}
		data, _ := os.ReadFile(path)
		if string(data) != "second" {
			t.Errorf("content = %q, want %q", data, "second")
		}
	})

	t.Run("leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "marker")
		if err := AtomicWriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("AtomicWriteFile: %v", err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir: %v", err)
		}
		for _, e := range entries {
			if strings.Contains(e.Name(), ".tmp.") {
				t.Errorf("leftover temp file: %s", e.Name())
			}
		}
	})
}

func TestAtomicWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert.json")
	v := map[string]string{"signal_type": "agent-stuck", "agent": "nux"}
	if err := AtomicWriteJSON(path, v); err != nil {
		t.Fatalf("AtomicWriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"signal_type": "agent-stuck"`) {
		t.Errorf("JSON missing field: %s", data)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Errorf("JSON should end with newline")
	}
}
