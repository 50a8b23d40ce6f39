package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duet/internal/console"
	"duet/internal/logging"
	"duet/internal/transcript"
	"duet/internal/version"
	"duet/internal/watcher"
)

// pollInterval is the fallback cadence when filesystem events are quiet;
// appends within one already-open file do not always surface as distinct
// events on every platform.
const pollInterval = time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	cfg, err := parseArgs(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, err)
		return 1
	}
	if cfg.ShowVersion {
		fmt.Fprintln(out, version.Get().Line("duet-feed"))
		return 0
	}

	feed := console.NewFeed(out, console.FeedOptions{
		Width: cfg.Width,
		Color: !cfg.NoColor && isTTY(out),
		Focus: cfg.Focus,
	})

	tail, err := transcript.OpenTail(cfg.Path)
	if err != nil {
		fmt.Fprintln(errOut, err)
		if errors.Is(err, fs.ErrNotExist) {
			return 2
		}
		return 3
	}
	defer tail.Close()

	if err := drain(tail, feed); err != nil {
		fmt.Fprintln(errOut, err)
		return 3
	}
	if !cfg.Follow {
		return 0
	}
	return follow(cfg.Path, tail, feed, errOut)
}

func drain(tail *transcript.Tail, feed *console.Feed) error {
	messages, err := tail.Next()
	if err != nil {
		return err
	}
	for _, msg := range messages {
		feed.Print(msg)
	}
	return nil
}

// follow keeps draining until interrupted, waking on file events and on a
// steady poll.
func follow(path string, tail *transcript.Tail, feed *console.Feed, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wake := make(chan struct{}, 1)
	watch, err := watcher.NewWithOptions(watcher.Options{Logger: logging.NewWithOutput(logging.LevelError, errOut)})
	if err == nil {
		defer watch.Close()
		handle, watchErr := watcher.WatchFile(watch, path, func(watcher.Event) {
			select {
			case wake <- struct{}{}:
			default:
			}
		})
		if watchErr == nil {
			defer handle.Close()
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return 0
		case <-wake:
		case <-ticker.C:
		}
		if err := drain(tail, feed); err != nil {
			fmt.Fprintln(errOut, err)
			return 3
		}
	}
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
