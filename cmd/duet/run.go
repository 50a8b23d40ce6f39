package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"duet/internal/api"
	"duet/internal/console"
	"duet/internal/event"
	"duet/internal/logging"
	"duet/internal/metrics"
	"duet/internal/ollama"
	"duet/internal/persona"
	"duet/internal/relay"
	"duet/internal/tmux"
	"duet/internal/transcript"
	"duet/internal/version"
	"duet/internal/watcher"
)

const (
	preflightTimeout = 10 * time.Second
	teardownTimeout  = 10 * time.Second
	eventHistorySize = 256
	eventReplaySize  = 64
)

func runRun(args []string, in io.Reader, out, errOut io.Writer) int {
	opts, err := parseRunArgs(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, err)
		return 1
	}
	if opts.ShowVersion {
		fmt.Fprintln(out, version.Get().Line("duet"))
		return 0
	}

	cfg := persona.Default()
	cfg.Scenario = ""
	fileScenario := false
	if opts.ConfigPath != "" {
		overlay, err := persona.ParseFile(opts.ConfigPath)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		fileScenario = overlay.Scenario != ""
		cfg = cfg.Merge(overlay)
	}
	cfg = cfg.Merge(flagOverlay(opts))
	cfg.Normalize()

	renderer := console.NewRenderer(out, cfg.Personas, console.Options{
		Width:   opts.Width,
		Color:   !opts.NoColor && isTTY(out),
		Verbose: opts.Verbose,
	})
	renderer.Banner()

	if opts.Scenario == "" && !fileScenario {
		cfg.Scenario = promptScenario(in, renderer)
	}
	if cfg.Scenario == "" {
		cfg.Scenario = persona.DefaultScenario
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	level := logging.LevelInfo
	if opts.Verbose {
		level = logging.LevelDebug
	}
	log := logging.NewWithOutput(level, errOut)
	defer log.Close()
	registry := metrics.Default

	if code := preflight(cfg, renderer, errOut); code != 0 {
		return code
	}

	conversation := uuid.NewString()
	runDir, err := resolveRunDir(opts.RunDir, conversation)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	transcriptPath := filepath.Join(runDir, transcript.FileName)
	writer, err := transcript.NewWriter(transcriptPath, transcript.WriterOptions{})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	renderer.Notef("Transcript: %s", transcriptPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The bus outlives the signal context: the engine publishes the
	// ended event after an interrupt, and teardown closes it explicitly.
	bus := event.NewBus[event.Event](context.Background(), event.BusOptions{
		Name:        "conversation",
		HistorySize: eventHistorySize,
		Logger:      log,
		Registry:    registry,
	})
	sink := console.NewSink(bus, renderer)
	recorder := newTranscriptSink(bus, writer)

	var server *api.Server
	if opts.Serve != "" {
		server = api.New(api.Options{
			Addr:     opts.Serve,
			Bus:      bus,
			Personas: cfg.Personas,
			Logger:   log,
			Registry: registry,
			Replay:   eventReplaySize,
		})
		if err := server.Start(); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		renderer.Notef("Live view: http://%s/api/conversation", server.Addr())
	}

	transport, agents, cleanup, code := startAgents(opts, cfg, transcriptPath, renderer, log, errOut)
	if code != 0 {
		return code
	}

	engine, err := relay.NewEngine(relay.EngineOptions{
		Conversation: conversation,
		Scenario:     cfg.Scenario,
		Transport:    transport,
		Agents:       agents,
		Personas:     [2]persona.Persona{cfg.Opener(), cfg.Responder()},
		Bus:          bus,
		Logger:       log,
		Registry:     registry,
		MaxTurns:     cfg.Turns.Max,
		TurnTimeout:  cfg.Turns.Timeout.Std(),
		MinInterval:  cfg.Turns.MinInterval.Std(),
		WarmupDelay:  cfg.Turns.WarmupDelay.Std(),
	})
	if err != nil {
		fmt.Fprintln(errOut, err)
		cleanup()
		return 1
	}

	var reloader *watcher.PersonaReloader
	if opts.Watch && opts.ConfigPath != "" {
		reloader, err = startReloader(opts, cfg, engine, log)
		if err != nil {
			log.Warn("persona watch unavailable", map[string]string{"error": err.Error()})
		}
	}

	runErr := engine.Run(ctx)
	stop()

	if reloader != nil {
		reloader.Close()
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	for _, agent := range agents {
		if err := agent.Close(closeCtx); err != nil {
			log.Warn("agent close failed", map[string]string{
				"agent": agent.Name(),
				"error": err.Error(),
			})
		}
	}
	cancel()
	cleanup()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown failed", map[string]string{"error": err.Error()})
		}
		cancel()
	}
	bus.Close()
	sink.Close()
	recorder.Wait()
	if err := writer.Close(); err != nil {
		log.Warn("transcript close failed", map[string]string{"error": err.Error()})
	}
	renderer.Notef("Transcript saved to %s", transcriptPath)

	if runErr != nil {
		fmt.Fprintln(errOut, runErr)
		return 4
	}
	return 0
}

// flagOverlay lifts flag values into a config overlay; zero values stay
// unset so the file layer shows through.
func flagOverlay(opts runOptions) persona.Config {
	overlay := persona.Config{
		Session:  opts.Session,
		Model:    opts.Model,
		Host:     opts.Host,
		Scenario: opts.Scenario,
	}
	overlay.Turns.Max = opts.MaxTurns
	overlay.Turns.Timeout = persona.Duration(opts.TurnTimeout)
	overlay.Turns.MinInterval = persona.Duration(opts.MinInterval)
	return overlay
}

func promptScenario(in io.Reader, renderer *console.Renderer) string {
	if !isTTY(in) {
		return ""
	}
	renderer.Notef("Enter a scenario (press Enter for: %s)", persona.DefaultScenario)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

func isTTY(stream any) bool {
	file, ok := stream.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func preflight(cfg persona.Config, renderer *console.Renderer, errOut io.Writer) int {
	ctx, cancel := context.WithTimeout(context.Background(), preflightTimeout)
	defer cancel()

	client := ollama.NewClient(cfg.Host, nil)
	if err := client.Available(ctx); err != nil {
		fmt.Fprintln(errOut, err)
		fmt.Fprintln(errOut, "start it with: ollama serve")
		return 3
	}
	for _, p := range cfg.Personas {
		ok, err := client.HasModel(ctx, p.Model)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 3
		}
		if !ok {
			fmt.Fprintf(errOut, "model %s is not available on %s\n", p.Model, client.Host())
			fmt.Fprintf(errOut, "pull it with: ollama pull %s\n", p.Model)
			return 3
		}
	}
	renderer.Successf("Ollama is up at %s", client.Host())
	return 0
}

func resolveRunDir(override, conversation string) (string, error) {
	if override != "" {
		if err := os.MkdirAll(override, 0o755); err != nil {
			return "", fmt.Errorf("create run dir: %w", err)
		}
		return override, nil
	}
	base, err := transcript.StateDir()
	if err != nil {
		return "", err
	}
	return transcript.NewRunDir(base, time.Now(), conversation)
}

// startAgents builds the agent pair for the selected transport. The
// returned cleanup tears down transport infrastructure the agents do not
// own themselves, such as the tmux session.
func startAgents(opts runOptions, cfg persona.Config, transcriptPath string, renderer *console.Renderer, log *logging.Logger, errOut io.Writer) (string, [2]relay.Agent, func(), int) {
	noop := func() {}
	transport := opts.Transport
	if transport == "" {
		if tmux.Installed() {
			transport = transportPane
		} else {
			transport = transportPty
			renderer.Notef("tmux not found, hosting the models on embedded terminals")
		}
	}

	switch transport {
	case transportPane:
		if !tmux.Installed() {
			fmt.Fprintln(errOut, tmux.ErrTmuxMissing)
			return transport, [2]relay.Agent{}, noop, 2
		}
		session, err := relay.StartSession(relay.SessionOptions{
			Config: cfg,
			Force:  opts.Force,
			Logger: log,
		})
		if err != nil {
			fmt.Fprintln(errOut, err)
			if errors.Is(err, relay.ErrSessionExists) {
				fmt.Fprintln(errOut, "use --force to replace it, or --session for a different name")
				return transport, [2]relay.Agent{}, noop, 2
			}
			return transport, [2]relay.Agent{}, noop, 4
		}
		renderer.Notef("Watch the models: tmux attach -t %s", session.Name())
		cleanup := noop
		if !opts.KeepSession {
			cleanup = func() {
				if err := session.Kill(); err != nil {
					log.Warn("session teardown failed", map[string]string{"error": err.Error()})
				}
			}
		}
		return transport, session.Agents(cfg, log), cleanup, 0

	case transportPty:
		agents, err := relay.StartPtyAgents(cfg, log, nil)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return transport, [2]relay.Agent{}, noop, 4
		}
		return transport, agents, noop, 0

	case transportAPI:
		agents := apiAgents(cfg, log)
		cleanup := noop
		if tmux.Installed() && !opts.Headless {
			session, err := startFeedSession(cfg, transcriptPath, opts.Force, log)
			if err != nil {
				if errors.Is(err, relay.ErrSessionExists) {
					fmt.Fprintln(errOut, err)
					fmt.Fprintln(errOut, "use --force to replace it, or --session for a different name")
					return transport, [2]relay.Agent{}, noop, 2
				}
				log.Warn("feed panes unavailable", map[string]string{"error": err.Error()})
			} else {
				renderer.Notef("Watch the feeds: tmux attach -t %s", cfg.Session)
				if !opts.KeepSession {
					cleanup = func() {
						if err := session.Kill(); err != nil {
							log.Warn("session teardown failed", map[string]string{"error": err.Error()})
						}
					}
				}
			}
		}
		return transport, agents, cleanup, 0
	}

	fmt.Fprintf(errOut, "unknown transport %q\n", transport)
	return transport, [2]relay.Agent{}, noop, 1
}

func apiAgents(cfg persona.Config, log *logging.Logger) [2]relay.Agent {
	build := func(p persona.Persona) relay.Agent {
		return relay.NewAPIAgent(relay.APIAgentOptions{
			Persona:     p,
			Host:        cfg.Host,
			Prefixes:    cfg.Prefixes(),
			ThinkMarker: cfg.ThinkMarker,
			Logger:      log,
		})
	}
	return [2]relay.Agent{build(cfg.Opener()), build(cfg.Responder())}
}

func startReloader(opts runOptions, cfg persona.Config, engine *relay.Engine, log *logging.Logger) (*watcher.PersonaReloader, error) {
	watch, err := watcher.NewWithOptions(watcher.Options{Logger: log})
	if err != nil {
		return nil, err
	}
	base := persona.Default()
	base = base.Merge(flagOverlay(opts))
	return watcher.WatchPersonas(watch, watcher.ReloadOptions{
		Path:   opts.ConfigPath,
		Base:   base,
		Names:  [2]string{cfg.Opener().Name, cfg.Responder().Name},
		Queue:  engine,
		Logger: log,
	})
}

// transcriptSink copies posted messages from the bus into the transcript
// writer until the bus closes.
type transcriptSink struct {
	done chan struct{}
}

func newTranscriptSink(bus *event.Bus[event.Event], writer *transcript.Writer) *transcriptSink {
	ch, _ := bus.SubscribeTypes(event.TypeMessagePosted)
	s := &transcriptSink{done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for ev := range ch {
			posted, ok := ev.(event.MessagePosted)
			if !ok {
				continue
			}
			writer.Append(transcript.Message{
				Seq:          posted.Seq,
				Conversation: posted.Conversation,
				Agent:        posted.Agent,
				Label:        posted.Label,
				Text:         posted.Text,
				At:           posted.OccurredAt,
			})
		}
	}()
	return s
}

func (s *transcriptSink) Wait() {
	<-s.done
}
