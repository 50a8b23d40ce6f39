package tmux

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Text longer than this, or containing newlines, goes through the paste
// buffer instead of send-keys so tmux does not mangle it.
const pasteThreshold = 1000

// ErrTmuxMissing means the tmux binary is not installed.
var ErrTmuxMissing = errors.New("tmux not found in PATH")

// CommandRunner executes tmux commands with optional stdin data.
type CommandRunner interface {
	Run(args []string, input []byte) ([]byte, error)
}

// Client drives the tmux server hosting the conversation panes.
type Client struct {
	runner CommandRunner
}

func NewClient() *Client {
	return &Client{runner: execRunner{}}
}

func NewClientWithRunner(runner CommandRunner) *Client {
	return &Client{runner: runner}
}

// PaneTarget names the idx-th pane of the session's first window.
func PaneTarget(session string, idx int) string {
	return fmt.Sprintf("%s:0.%d", session, idx)
}

// Installed reports whether the tmux binary is available.
func Installed() bool {
	_, err := lookPath("tmux")
	return err == nil
}

var lookPath = exec.LookPath

// NewSession creates a detached session with a single pane.
func (c *Client) NewSession(name string) error {
	return c.run([]string{"new-session", "-d", "-s", name}, nil)
}

// SplitPane splits the session's window top/bottom, adding a second pane.
func (c *Client) SplitPane(session string) error {
	return c.run([]string{"split-window", "-v", "-t", session}, nil)
}

// HasSession reports whether the named session exists.
func (c *Client) HasSession(name string) (bool, error) {
	if c == nil || c.runner == nil {
		return false, errors.New("tmux runner unavailable")
	}
	output, err := c.runner.Run([]string{"has-session", "-t", name}, nil)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return false, ErrTmuxMissing
		}
		if len(output) > 0 {
			return false, fmt.Errorf("tmux has-session failed: %s", bytes.TrimSpace(output))
		}
		return false, fmt.Errorf("tmux has-session failed: %w", err)
	}
	return true, nil
}

// KillSession terminates the session and everything running in it.
func (c *Client) KillSession(name string) error {
	return c.run([]string{"kill-session", "-t", name}, nil)
}

// SendKeys sends key names (C-m, C-c, ...) to a pane.
func (c *Client) SendKeys(target string, keys ...string) error {
	args := append([]string{"send-keys", "-t", target}, keys...)
	return c.run(args, nil)
}

// SendLiteral types text into a pane without key-name interpretation.
func (c *Client) SendLiteral(target, text string) error {
	return c.run([]string{"send-keys", "-t", target, "-l", "--", text}, nil)
}

// SendEnter presses return in a pane.
func (c *Client) SendEnter(target string) error {
	return c.SendKeys(target, "C-m")
}

// LoadBuffer loads data into the tmux paste buffer.
func (c *Client) LoadBuffer(data []byte) error {
	return c.run([]string{"load-buffer", "-"}, data)
}

// PasteBuffer pastes the current buffer into a pane.
func (c *Client) PasteBuffer(target string) error {
	return c.run([]string{"paste-buffer", "-t", target}, nil)
}

// SendText delivers text to a pane and presses return. Long or multi-line
// text goes through the paste buffer; anything else is typed literally.
func (c *Client) SendText(target, text string) error {
	if len(text) > pasteThreshold || strings.Contains(text, "\n") {
		if err := c.LoadBuffer([]byte(text)); err != nil {
			return err
		}
		if err := c.PasteBuffer(target); err != nil {
			return err
		}
	} else {
		if err := c.SendLiteral(target, text); err != nil {
			return err
		}
	}
	return c.SendEnter(target)
}

// Capture returns the pane contents including scrollback lines of history.
func (c *Client) Capture(target string, scrollback int) ([]byte, error) {
	args := []string{"capture-pane", "-p", "-t", target}
	if scrollback > 0 {
		args = append(args, "-S", fmt.Sprintf("-%d", scrollback))
	}
	return c.runWithOutput(args, nil)
}

// CaptureLines captures a pane and splits it into lines.
func (c *Client) CaptureLines(target string, scrollback int) ([]string, error) {
	output, err := c.Capture(target, scrollback)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(string(output), "\n"), "\n"), nil
}

// SetPaneTitle labels a pane; visible once pane titles are enabled.
func (c *Client) SetPaneTitle(target, title string) error {
	return c.run([]string{"select-pane", "-t", target, "-T", title}, nil)
}

// EnablePaneTitles shows pane titles in the session's border.
func (c *Client) EnablePaneTitles(session string) error {
	return c.run([]string{"set-option", "-t", session, "pane-border-status", "top"}, nil)
}

func (c *Client) run(args []string, input []byte) error {
	_, err := c.runWithOutput(args, input)
	return err
}

func (c *Client) runWithOutput(args []string, input []byte) ([]byte, error) {
	if c == nil || c.runner == nil {
		return nil, errors.New("tmux runner unavailable")
	}
	output, err := c.runner.Run(args, input)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrTmuxMissing
		}
		if len(output) > 0 {
			return nil, fmt.Errorf("tmux %s failed: %s", args[0], bytes.TrimSpace(output))
		}
		return nil, fmt.Errorf("tmux %s failed: %w", args[0], err)
	}
	return output, nil
}

type execRunner struct{}

func (execRunner) Run(args []string, input []byte) ([]byte, error) {
	cmd := exec.Command("tmux", args...)
	if len(input) > 0 {
		cmd.Stdin = bytes.NewReader(input)
	}
	return cmd.CombinedOutput()
}
