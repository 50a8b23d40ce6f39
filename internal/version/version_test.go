package version

import "testing"

func TestGetReturnsBuildValues(t *testing.T) {
	previousVersion := Version
	previousCommit := GitCommit
	previousBuilt := Built

	Version = "1.4.0"
	GitCommit = "0123456789abcdef0123"
	Built = "2026-08-01T09:00:00Z"

	t.Cleanup(func() {
		Version = previousVersion
		GitCommit = previousCommit
		Built = previousBuilt
	})

	info := Get()
	if info.Version != "1.4.0" {
		t.Fatalf("expected version 1.4.0, got %q", info.Version)
	}
	if info.GitCommit != "0123456789abcdef0123" {
		t.Fatalf("expected commit to be preserved, got %q", info.GitCommit)
	}
	if info.Built != "2026-08-01T09:00:00Z" {
		t.Fatalf("expected built timestamp to be preserved, got %q", info.Built)
	}
}

func TestLineShortensCommit(t *testing.T) {
	info := Info{Version: "1.4.0", GitCommit: "0123456789abcdef0123", Built: "2026-08-01"}
	got := info.Line("duet")
	want := "duet 1.4.0 (0123456789ab) built 2026-08-01"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLineOmitsEmptyFields(t *testing.T) {
	info := Info{Version: "dev"}
	if got := info.Line("duet-feed"); got != "duet-feed dev" {
		t.Fatalf("expected bare version line, got %q", got)
	}
}
