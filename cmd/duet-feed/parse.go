package main

import (
	"flag"
	"fmt"
	"io"

	"duet/internal/cli"
	"duet/internal/console"
)

type Config struct {
	Path        string
	Follow      bool
	Focus       string
	Width       int
	NoColor     bool
	ShowVersion bool
}

func parseArgs(args []string, errOut io.Writer) (Config, error) {
	fs := flag.NewFlagSet("duet-feed", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var cfg Config
	fs.BoolVar(&cfg.Follow, "follow", false, "Keep reading as the transcript grows")
	fs.StringVar(&cfg.Focus, "focus", "", "Right-align this agent's messages")
	fs.IntVar(&cfg.Width, "width", console.DefaultWidth, "Wrap column for message bodies (negative disables wrapping)")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable ANSI colors")
	helpVersion := cli.AddHelpVersionFlags(fs, "Show this help message", "Print version and exit")
	fs.Usage = func() {
		printFeedHelp(fs.Output())
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if helpVersion.Help {
		fs.Usage()
		return Config{}, flag.ErrHelp
	}
	if helpVersion.Version {
		return Config{ShowVersion: true}, nil
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return Config{}, fmt.Errorf("transcript path required")
	}
	cfg.Path = fs.Arg(0)
	if cfg.Path == "" {
		fs.Usage()
		return Config{}, fmt.Errorf("transcript path required")
	}

	return cfg, nil
}

func printFeedHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: duet-feed [options] TRANSCRIPT")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Render a duet transcript as the conversation view")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	writeFeedOption(out, "--follow", "Keep reading as the transcript grows")
	writeFeedOption(out, "--focus NAME", "Right-align this agent's messages")
	writeFeedOption(out, "--width N", "Wrap column for message bodies")
	writeFeedOption(out, "--no-color", "Disable ANSI colors")
	writeFeedOption(out, "--help", "Show this help message")
	writeFeedOption(out, "--version", "Print version and exit")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  duet-feed ~/.local/state/duet/20250601-123005-ab12cd34/transcript.jsonl")
	fmt.Fprintln(out, "  duet-feed --follow --focus her transcript.jsonl")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Exit codes:")
	fmt.Fprintln(out, "  0  Success")
	fmt.Fprintln(out, "  1  Usage error")
	fmt.Fprintln(out, "  2  Transcript missing")
	fmt.Fprintln(out, "  3  Read error")
}

func writeFeedOption(out io.Writer, name, desc string) {
	fmt.Fprintf(out, "  %-14s %s\n", name, desc)
}
