package relay

import (
	"fmt"

	"duet/internal/logging"
	"duet/internal/persona"
	"duet/internal/repl"
	"duet/internal/terminal"
)

// StartPtyAgents launches both model REPLs on embedded ptys, for runs
// without tmux. Agents come back in engine order, opener first, and
// each one owns its host process: Close tears it down.
func StartPtyAgents(cfg persona.Config, log *logging.Logger, factory terminal.PtyFactory) ([2]Agent, error) {
	personas := [2]persona.Persona{cfg.Opener(), cfg.Responder()}

	var agents [2]Agent
	var hosts []*terminal.Host
	for i, p := range personas {
		host, err := terminal.StartHost(terminal.HostOptions{
			Name:       p.Name,
			Argv:       CommandArgv(p.Model),
			Env:        CommandEnv(cfg.Host),
			Scrollback: cfg.Scrollback,
			Logger:     log,
			Factory:    factory,
		})
		if err != nil {
			for _, started := range hosts {
				started.Close()
			}
			return agents, fmt.Errorf("start repl for %s: %w", p.Name, err)
		}
		hosts = append(hosts, host)
		agents[i] = ptyAgent(cfg, p, host, log)
	}
	return agents, nil
}

func ptyAgent(cfg persona.Config, p persona.Persona, host *terminal.Host, log *logging.Logger) Agent {
	return &replAgent{
		name: p.Name,
		monitor: repl.Monitor{
			Screen:      host,
			Marker:      cfg.Marker,
			Interval:    cfg.Turns.PollInterval.Std(),
			SettlePolls: cfg.Turns.SettlePolls,
		},
		extract: repl.Extractor{
			Marker:      cfg.Marker,
			ThinkMarker: cfg.ThinkMarker,
			Prefixes:    cfg.Prefixes(),
		},
		send:    host.WriteLine,
		closeFn: host.Close,
		log:     log.Component("agent"),
	}
}
