package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"duet/internal/persona"
)

func TestRunInitWritesStarter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duet.yaml")

	var out, errOut bytes.Buffer
	if code := runInit([]string{path}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("starter file not written: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("wrote")) {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestRunInitStarterValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duet.yaml")

	var out, errOut bytes.Buffer
	if code := runInit([]string{path}, &out, &errOut); code != 0 {
		t.Fatalf("init exit %d", code)
	}

	overlay, err := persona.ParseFile(path)
	if err != nil {
		t.Fatalf("starter does not parse: %v", err)
	}
	cfg := persona.Default().Merge(overlay)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("starter does not validate: %v", err)
	}

	out.Reset()
	errOut.Reset()
	if code := runValidate([]string{path}, &out, &errOut); code != 0 {
		t.Fatalf("duet validate rejects the starter: %s", errOut.String())
	}
}

func TestRunInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duet.yaml")
	if err := os.WriteFile(path, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	var out, errOut bytes.Buffer
	if code := runInit([]string{path}, &out, &errOut); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "keep me" {
		t.Fatal("existing file was overwritten")
	}
}

func TestRunInitUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := runInit([]string{"a", "b"}, &out, &errOut); code != 1 {
		t.Fatalf("expected usage exit 1, got %d", code)
	}
}
