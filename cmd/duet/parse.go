package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"duet/internal/cli"
	"duet/internal/console"
)

// Transports selectable with --transport. Empty means automatic: tmux
// panes when tmux is installed, embedded ptys otherwise.
const (
	transportPane = "pane"
	transportPty  = "pty"
	transportAPI  = "api"
)

type runOptions struct {
	ConfigPath  string
	Session     string
	Model       string
	Host        string
	Scenario    string
	Transport   string
	MaxTurns    int
	TurnTimeout time.Duration
	MinInterval time.Duration
	Serve       string
	Watch       bool
	KeepSession bool
	Force       bool
	Headless    bool
	RunDir      string
	Width       int
	NoColor     bool
	Verbose     bool
	ShowVersion bool
}

func parseRunArgs(args []string, errOut io.Writer) (runOptions, error) {
	fs := flag.NewFlagSet("duet", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var opts runOptions
	fs.StringVar(&opts.ConfigPath, "config", "", "Persona file (YAML)")
	fs.StringVar(&opts.Session, "session", "", "tmux session name (env: DUET_SESSION, default: duet)")
	fs.StringVar(&opts.Model, "model", "", "Default model for both personas (env: DUET_MODEL, default: gemma3:4b)")
	fs.StringVar(&opts.Host, "host", "", "Ollama host URL (env: DUET_HOST, OLLAMA_HOST, default: http://localhost:11434)")
	fs.StringVar(&opts.Scenario, "scenario", "", "Roleplay scenario (default: positional words, then interactive prompt)")
	fs.StringVar(&opts.Transport, "transport", "", "Agent transport: pane, pty, or api (default: pane, pty without tmux)")
	fs.IntVar(&opts.MaxTurns, "max-turns", 0, "Stop after this many messages (0 runs until interrupted)")
	fs.DurationVar(&opts.TurnTimeout, "turn-timeout", 0, "Per-reply budget (default: 180s)")
	fs.DurationVar(&opts.MinInterval, "min-interval", 0, "Minimum delay between relayed messages (default: 2s)")
	fs.StringVar(&opts.Serve, "serve", "", "Serve the live view API on this address (e.g. 127.0.0.1:8080)")
	fs.BoolVar(&opts.Watch, "watch", false, "Reload personas when the --config file changes")
	fs.BoolVar(&opts.KeepSession, "keep-session", false, "Leave the tmux session running on exit")
	fs.BoolVar(&opts.Force, "force", false, "Replace an existing tmux session with the same name")
	fs.BoolVar(&opts.Headless, "headless", false, "With --transport api: skip the tmux feed panes")
	fs.StringVar(&opts.RunDir, "run-dir", "", "Directory for run artifacts (default: under the user state dir)")
	fs.IntVar(&opts.Width, "width", console.DefaultWidth, "Wrap column for message bodies (negative disables wrapping)")
	fs.BoolVar(&opts.NoColor, "no-color", false, "Disable ANSI colors")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Show relay internals and debug logs")
	helpVersion := cli.AddHelpVersionFlags(fs, "Show this help message", "Print version and exit")
	fs.Usage = func() {
		printRunHelp(fs.Output())
	}

	if err := fs.Parse(args); err != nil {
		return runOptions{}, err
	}

	if helpVersion.Help {
		fs.Usage()
		return runOptions{}, flag.ErrHelp
	}
	if helpVersion.Version {
		return runOptions{ShowVersion: true}, nil
	}

	if opts.Scenario == "" && fs.NArg() > 0 {
		opts.Scenario = strings.TrimSpace(strings.Join(fs.Args(), " "))
	} else if fs.NArg() > 0 {
		fs.Usage()
		return runOptions{}, fmt.Errorf("cannot combine --scenario with positional scenario words")
	}

	if opts.Session == "" {
		opts.Session = strings.TrimSpace(os.Getenv("DUET_SESSION"))
	}
	if opts.Model == "" {
		opts.Model = strings.TrimSpace(os.Getenv("DUET_MODEL"))
	}
	if opts.Host == "" {
		opts.Host = strings.TrimSpace(os.Getenv("DUET_HOST"))
	}
	if opts.Host == "" {
		opts.Host = hostFromOllamaEnv(os.Getenv("OLLAMA_HOST"))
	}

	switch opts.Transport {
	case "", transportPane, transportPty, transportAPI:
	default:
		fs.Usage()
		return runOptions{}, fmt.Errorf("unknown transport %q: use pane, pty, or api", opts.Transport)
	}

	if opts.MaxTurns < 0 {
		fs.Usage()
		return runOptions{}, fmt.Errorf("--max-turns cannot be negative")
	}

	return opts, nil
}

// hostFromOllamaEnv accepts the forms the ollama CLI itself takes:
// a URL, or a bare host:port.
func hostFromOllamaEnv(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.Contains(value, "://") {
		return value
	}
	return "http://" + value
}

func printRunHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: duet [options] [scenario words...]")
	fmt.Fprintln(out, "       duet run [options] [scenario words...]")
	fmt.Fprintln(out, "       duet validate FILE")
	fmt.Fprintln(out, "       duet init [PATH]")
	fmt.Fprintln(out, "       duet completion [bash|zsh]")
	fmt.Fprintln(out, "       duet version")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Relay a text-message conversation between two local Ollama models,")
	fmt.Fprintln(out, "one persona per tmux pane.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	writeRunOption(out, "--config FILE", "Persona file (YAML)")
	writeRunOption(out, "--session NAME", "tmux session name (env: DUET_SESSION, default: duet)")
	writeRunOption(out, "--model NAME", "Default model for both personas (env: DUET_MODEL, default: gemma3:4b)")
	writeRunOption(out, "--host URL", "Ollama host (env: DUET_HOST, OLLAMA_HOST, default: http://localhost:11434)")
	writeRunOption(out, "--scenario TEXT", "Roleplay scenario")
	writeRunOption(out, "--transport KIND", "pane, pty, or api (default: pane, pty without tmux)")
	writeRunOption(out, "--max-turns N", "Stop after N messages (0 runs until interrupted)")
	writeRunOption(out, "--turn-timeout D", "Per-reply budget (default: 180s)")
	writeRunOption(out, "--min-interval D", "Minimum delay between relayed messages (default: 2s)")
	writeRunOption(out, "--serve ADDR", "Serve the live view API on ADDR")
	writeRunOption(out, "--watch", "Reload personas when the --config file changes")
	writeRunOption(out, "--keep-session", "Leave the tmux session running on exit")
	writeRunOption(out, "--force", "Replace an existing tmux session with the same name")
	writeRunOption(out, "--headless", "With --transport api: skip the tmux feed panes")
	writeRunOption(out, "--run-dir DIR", "Directory for run artifacts")
	writeRunOption(out, "--width N", "Wrap column for message bodies")
	writeRunOption(out, "--no-color", "Disable ANSI colors")
	writeRunOption(out, "--verbose", "Show relay internals and debug logs")
	writeRunOption(out, "--help", "Show this help message")
	writeRunOption(out, "--version", "Print version and exit")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  duet")
	fmt.Fprintln(out, "  duet arguing about whose turn it is to do the dishes")
	fmt.Fprintln(out, "  duet --config duet.yaml --watch --serve 127.0.0.1:8080")
	fmt.Fprintln(out, "  duet --transport api --max-turns 20")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Exit codes:")
	fmt.Fprintln(out, "  0  Success")
	fmt.Fprintln(out, "  1  Usage or configuration error")
	fmt.Fprintln(out, "  2  Session conflict, or tmux missing for --transport pane")
	fmt.Fprintln(out, "  3  Ollama unreachable or model missing")
	fmt.Fprintln(out, "  4  Conversation failed")
}

func writeRunOption(out io.Writer, name, desc string) {
	fmt.Fprintf(out, "  %-18s %s\n", name, desc)
}
