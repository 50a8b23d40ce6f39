package main

import (
	"fmt"
	"strings"

	"duet/internal/logging"
	"duet/internal/persona"
	"duet/internal/relay"
	"duet/internal/tmux"
)

// feedSession is the tmux session shown with the api transport: one
// duet-feed viewer per persona instead of a model REPL.
type feedSession struct {
	client *tmux.Client
	name   string
	log    *logging.Logger
}

func startFeedSession(cfg persona.Config, transcriptPath string, force bool, log *logging.Logger) (*feedSession, error) {
	client := tmux.NewClient()
	log = log.Component("tmux")

	exists, err := client.HasSession(cfg.Session)
	if err != nil {
		return nil, err
	}
	if exists {
		if !force {
			return nil, fmt.Errorf("tmux session %q: %w", cfg.Session, relay.ErrSessionExists)
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
		command := feedCommandLine(p.Name, transcriptPath)
		if err := client.SendKeys(target, command, "C-m"); err != nil {
			return nil, fmt.Errorf("launch feed for %s in %s: %w", p.Name, target, err)
		}
	}

	return &feedSession{client: client, name: cfg.Session, log: log}, nil
}

func (s *feedSession) Kill() error {
	if s == nil {
		return nil
	}
	s.log.Info("killing session", map[string]string{"session": s.name})
	return s.client.KillSession(s.name)
}

func feedCommandLine(focus, transcriptPath string) string {
	return fmt.Sprintf("duet-feed --follow --focus %s %s", focus, quoteShellArg(transcriptPath))
}

func quoteShellArg(value string) string {
	if value != "" && !strings.ContainsAny(value, " \t\n'\"\\$`!*?[](){}<>|&;~#") {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
