package relay

import (
	"fmt"

	"duet/internal/logging"
	"duet/internal/persona"
	"duet/internal/repl"
	"duet/internal/tmux"
)

// SessionOptions configures the tmux session hosting the conversation.
type SessionOptions struct {
	Client *tmux.Client
	Config persona.Config
	Force  bool // replace an existing session with the same name
	Logger *logging.Logger
}

// Session owns a tmux session with one REPL pane per persona. The
// opener's pane is on top, matching the persona order in the config.
type Session struct {
	client *tmux.Client
	name   string
	log    *logging.Logger
}

// StartSession creates the session, splits it into two titled panes,
// and types the model launch command into each.
func StartSession(opts SessionOptions) (*Session, error) {
	client := opts.Client
	if client == nil {
		client = tmux.NewClient()
	}
	cfg := opts.Config
	log := opts.Logger.Component("tmux")

	exists, err := client.HasSession(cfg.Session)
	if err != nil {
		return nil, err
	}
	if exists {
		if !opts.Force {
			return nil, fmt.Errorf("tmux session %q: %w", cfg.Session, ErrSessionExists)
		}
		log.Warn("replacing existing session", map[string]string{"session": cfg.Session})
		if err := client.KillSession(cfg.Session); err != nil {
			return nil, err
		}
	}

	if err := client.NewSession(cfg.Session); err != nil {
		return nil, err
	}
	if err := client.SplitPane(cfg.Session); err != nil {
		return nil, fmt.Errorf("split session %q: %w", cfg.Session, err)
	}
	if err := client.EnablePaneTitles(cfg.Session); err != nil {
		log.Warn("pane titles unavailable", map[string]string{"error": err.Error()})
	}

	for idx, p := range cfg.Personas {
		target := tmux.PaneTarget(cfg.Session, idx)
		if err := client.SetPaneTitle(target, p.DisplayLabel()); err != nil {
			log.Warn("pane title not set", map[string]string{"target": target, "error": err.Error()})
		}
		command := CommandLine(cfg.Host, p.Model)
		if err := client.SendKeys(target, command, "C-m"); err != nil {
			return nil, fmt.Errorf("launch %s in %s: %w", p.Name, target, err)
		}
		log.Info("repl launched", map[string]string{
			"pane":    target,
			"persona": p.Name,
			"model":   p.Model,
		})
	}

	return &Session{client: client, name: cfg.Session, log: log}, nil
}

// Name returns the tmux session name.
func (s *Session) Name() string {
	return s.name
}

// Agents returns the pane agents in engine order: opener first.
func (s *Session) Agents(cfg persona.Config, log *logging.Logger) [2]Agent {
	return [2]Agent{
		s.agentFor(cfg, cfg.Opener(), log),
		s.agentFor(cfg, cfg.Responder(), log),
	}
}

// Kill tears the session down, terminating both REPLs.
func (s *Session) Kill() error {
	if s == nil {
		return nil
	}
	s.log.Info("killing session", map[string]string{"session": s.name})
	return s.client.KillSession(s.name)
}

func (s *Session) agentFor(cfg persona.Config, p persona.Persona, log *logging.Logger) Agent {
	target := tmux.PaneTarget(s.name, paneIndex(cfg, p))
	screen := paneScreen{client: s.client, target: target, scrollback: cfg.Scrollback}
	return &replAgent{
		name: p.Name,
		monitor: repl.Monitor{
			Screen:      screen,
			Marker:      cfg.Marker,
			Interval:    cfg.Turns.PollInterval.Std(),
			SettlePolls: cfg.Turns.SettlePolls,
		},
		extract: repl.Extractor{
			Marker:      cfg.Marker,
			ThinkMarker: cfg.ThinkMarker,
			Prefixes:    cfg.Prefixes(),
		},
		send: func(text string) error {
			return s.client.SendText(target, text)
		},
		log: log.Component("agent"),
	}
}

func paneIndex(cfg persona.Config, p persona.Persona) int {
	for idx, candidate := range cfg.Personas {
		if candidate.Name == p.Name {
			return idx
		}
	}
	return 0
}

// paneScreen snapshots one tmux pane including scrollback history.
type paneScreen struct {
	client     *tmux.Client
	target     string
	scrollback int
}

func (s paneScreen) Snapshot() ([]string, error) {
	return s.client.CaptureLines(s.target, s.scrollback)
}
