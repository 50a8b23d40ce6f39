package relay

import (
	"context"
	"fmt"
	"sync"

	"duet/internal/logging"
	"duet/internal/repl"
)

// Polls granted for the prompt hint to vanish after a send before the
// reply wait proceeds anyway.
const consumePolls = 3

// replAgent drives one interactive REPL through a screen snapshot
// source and a text sender. The tmux pane and embedded pty transports
// both speak this protocol; only the plumbing underneath differs.
//
// The REPL's prompt hint is a placeholder that typing consumes, so a
// reply is awaited in two phases: first the hint leaves the last line
// (the input arrived), then it returns and the screen settles (the
// model finished).
type replAgent struct {
	name    string
	monitor repl.Monitor
	extract repl.Extractor
	send    func(text string) error
	closeFn func() error
	log     *logging.Logger

	mu   sync.Mutex
	sent bool
}

func (a *replAgent) Name() string {
	return a.name
}

func (a *replAgent) AwaitReady(ctx context.Context) error {
	if _, err := a.monitor.AwaitIdle(ctx); err != nil {
		return fmt.Errorf("%s: waiting for prompt: %w", a.name, err)
	}
	a.log.Debug("repl ready", map[string]string{"agent": a.name})
	return nil
}

func (a *replAgent) Deliver(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.send(text); err != nil {
		return fmt.Errorf("%s: send: %w", a.name, err)
	}
	a.sent = true
	a.log.Debug("text delivered", map[string]string{
		"agent": a.name,
		"chars": fmt.Sprintf("%d", len(text)),
	})
	return nil
}

func (a *replAgent) Reply(ctx context.Context) (string, error) {
	a.mu.Lock()
	sent := a.sent
	a.sent = false
	a.mu.Unlock()

	// Phase one only applies right after a send. A retried Reply skips
	// it: nothing new was typed, so the hint will not vanish again.
	if sent {
		if _, err := a.monitor.AwaitConsumed(ctx, consumePolls); err != nil {
			return "", fmt.Errorf("%s: %w", a.name, err)
		}
	}

	lines, err := a.monitor.AwaitIdle(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", a.name, err)
	}
	text := a.extract.Reply(lines)
	a.log.Debug("reply extracted", map[string]string{
		"agent": a.name,
		"chars": fmt.Sprintf("%d", len(text)),
	})
	return text, nil
}

func (a *replAgent) Instruct(ctx context.Context, instructions string) error {
	if err := a.Deliver(ctx, instructions); err != nil {
		return err
	}
	// The model answers the role prompt like any other input. Wait that
	// answer out and drop it so it is never relayed.
	if _, err := a.Reply(ctx); err != nil {
		return fmt.Errorf("consume role acknowledgment: %w", err)
	}
	return nil
}

func (a *replAgent) Close(ctx context.Context) error {
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}
