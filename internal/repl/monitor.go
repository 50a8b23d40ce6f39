// Package repl reads an interactive model REPL through its scrollback: it
// watches the input prompt come and go, waits for output to settle, and
// pulls the newest reply out of the visible lines.
package repl

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Screen is a source of pane or terminal scrollback, newest lines last.
type Screen interface {
	Snapshot() ([]string, error)
}

// PromptIdle reports whether the newest non-blank line is the input
// prompt. The prompt hint is a readline placeholder: typing consumes it,
// and it only comes back once the model has finished and is waiting
// again. The last line is checked rather than the whole screen so reply
// text quoting the marker cannot fake idleness.
func PromptIdle(lines []string, marker string) bool {
	return strings.Contains(lastNonBlank(lines), marker)
}

func lastNonBlank(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

// Monitor polls a Screen for prompt activity.
type Monitor struct {
	Screen      Screen
	Marker      string
	Interval    time.Duration // poll cadence, default 1s
	SettlePolls int           // consecutive identical snapshots required, default 3
}

func (m Monitor) interval() time.Duration {
	if m.Interval > 0 {
		return m.Interval
	}
	return time.Second
}

func (m Monitor) settle() int {
	if m.SettlePolls > 0 {
		return m.SettlePolls
	}
	return 3
}

// AwaitConsumed waits for the prompt hint to disappear after input was
// sent. A fast model can answer entirely between two polls, so after
// maxPolls the wait gives up and reports cleared=false instead of
// failing; callers treat that the same as cleared.
func (m Monitor) AwaitConsumed(ctx context.Context, maxPolls int) (bool, error) {
	if maxPolls <= 0 {
		maxPolls = m.settle()
	}
	ticker := time.NewTicker(m.interval())
	defer ticker.Stop()

	for poll := 0; poll < maxPolls; poll++ {
		lines, err := m.Screen.Snapshot()
		if err != nil {
			return false, fmt.Errorf("snapshot: %w", err)
		}
		if !PromptIdle(lines, m.Marker) {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
	return false, nil
}

// AwaitIdle blocks until the prompt is back on the last line and the
// screen has stopped changing for SettlePolls consecutive polls, then
// returns the settled snapshot. The stability requirement keeps
// half-rendered replies out of extraction.
func (m Monitor) AwaitIdle(ctx context.Context) ([]string, error) {
	ticker := time.NewTicker(m.interval())
	defer ticker.Stop()

	var last []string
	stable := 0
	for {
		lines, err := m.Screen.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		if PromptIdle(lines, m.Marker) {
			if slices.Equal(lines, last) {
				stable++
				if stable >= m.settle() {
					return lines, nil
				}
			} else {
				stable = 0
				last = slices.Clone(lines)
			}
		} else {
			stable = 0
			last = nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
