package relay

import (
	"context"
	"errors"
	"os/exec"
	"slices"
	"testing"

	"duet/internal/persona"
	"duet/internal/tmux"
)

// fakeRunner records tmux invocations. has-session answers from the
// exists flag the way the real binary does, with a bare exit error.
type fakeRunner struct {
	exists bool
	calls  [][]string
}

func (r *fakeRunner) Run(args []string, input []byte) ([]byte, error) {
	r.calls = append(r.calls, slices.Clone(args))
	if args[0] == "has-session" && !r.exists {
		return nil, &exec.ExitError{}
	}
	return nil, nil
}

func (r *fakeRunner) commands(verb string) [][]string {
	var matched [][]string
	for _, call := range r.calls {
		if call[0] == verb {
			matched = append(matched, call)
		}
	}
	return matched
}

func paneConfig(t *testing.T) persona.Config {
	t.Helper()
	cfg := persona.Default()
	cfg.Scenario = "planning a picnic"
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestStartSessionLaunchesBothPanes(t *testing.T) {
	runner := &fakeRunner{}
	session, err := StartSession(SessionOptions{
		Client: tmux.NewClientWithRunner(runner),
		Config: paneConfig(t),
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if session.Name() != "duet" {
		t.Fatalf("session name = %q", session.Name())
	}

	if calls := runner.commands("new-session"); len(calls) != 1 {
		t.Fatalf("expected one new-session, got %v", calls)
	}
	if calls := runner.commands("split-window"); len(calls) != 1 {
		t.Fatalf("expected one split, got %v", calls)
	}

	launches := runner.commands("send-keys")
	if len(launches) != 2 {
		t.Fatalf("expected a launch per pane, got %v", launches)
	}
	for i, launch := range launches {
		want := []string{"send-keys", "-t", tmux.PaneTarget("duet", i), "ollama run gemma3:4b", "C-m"}
		if !slices.Equal(launch, want) {
			t.Fatalf("launch %d = %v, want %v", i, launch, want)
		}
	}

	titles := runner.commands("select-pane")
	if len(titles) != 2 || titles[0][4] != "👨 Him" || titles[1][4] != "👩 Her" {
		t.Fatalf("unexpected pane titles: %v", titles)
	}
}

func TestStartSessionRefusesExistingSession(t *testing.T) {
	runner := &fakeRunner{exists: true}
	_, err := StartSession(SessionOptions{
		Client: tmux.NewClientWithRunner(runner),
		Config: paneConfig(t),
	})
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
	if calls := runner.commands("new-session"); len(calls) != 0 {
		t.Fatalf("no session should be created, got %v", calls)
	}
}

func TestStartSessionForceReplacesSession(t *testing.T) {
	runner := &fakeRunner{exists: true}
	_, err := StartSession(SessionOptions{
		Client: tmux.NewClientWithRunner(runner),
		Config: paneConfig(t),
		Force:  true,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if calls := runner.commands("kill-session"); len(calls) != 1 {
		t.Fatalf("expected the old session to be killed, got %v", calls)
	}
	if calls := runner.commands("new-session"); len(calls) != 1 {
		t.Fatalf("expected a fresh session, got %v", calls)
	}
}

func TestSessionAgentsOpenerFirstWhateverThePaneOrder(t *testing.T) {
	cfg := paneConfig(t)
	cfg.Personas[0].Opener = false
	cfg.Personas[1].Opener = true

	runner := &fakeRunner{}
	session, err := StartSession(SessionOptions{
		Client: tmux.NewClientWithRunner(runner),
		Config: cfg,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	agents := session.Agents(cfg, nil)
	if agents[0].Name() != "her" || agents[1].Name() != "him" {
		t.Fatalf("agent order = %s, %s; want opener her first", agents[0].Name(), agents[1].Name())
	}

	// The opener lives in pane 1: her send must target duet:0.1.
	if err := agents[0].Deliver(context.Background(), "hey"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	sends := runner.commands("send-keys")
	literal := sends[len(sends)-2]
	want := []string{"send-keys", "-t", "duet:0.1", "-l", "--", "hey"}
	if !slices.Equal(literal, want) {
		t.Fatalf("literal send = %v, want %v", literal, want)
	}
}

func TestSessionKill(t *testing.T) {
	runner := &fakeRunner{}
	session, err := StartSession(SessionOptions{
		Client: tmux.NewClientWithRunner(runner),
		Config: paneConfig(t),
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := session.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	calls := runner.commands("kill-session")
	if len(calls) != 1 || calls[0][2] != "duet" {
		t.Fatalf("unexpected kill calls: %v", calls)
	}
}
