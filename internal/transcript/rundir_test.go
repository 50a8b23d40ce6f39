package transcript

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStateDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")
	dir, err := StateDir()
	if err != nil {
		t.Fatalf("state dir: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-state", "duet") {
		t.Fatalf("unexpected dir: %s", dir)
	}
}

func TestStateDirDefaultsUnderHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/tester")
	dir, err := StateDir()
	if err != nil {
		t.Fatalf("state dir: %v", err)
	}
	want := filepath.Join("/home/tester", ".local", "state", "duet")
	if dir != want {
		t.Fatalf("expected %s, got %s", want, dir)
	}
}

func TestNewRunDir(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	dir, err := NewRunDir(base, now, "0123456789abcdef")
	if err != nil {
		t.Fatalf("new run dir: %v", err)
	}
	name := filepath.Base(dir)
	if name != "20260801-093000-01234567" {
		t.Fatalf("unexpected run dir name: %s", name)
	}
	if !strings.HasPrefix(dir, base) {
		t.Fatalf("expected dir under base, got %s", dir)
	}
}
