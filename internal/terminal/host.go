package terminal

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"duet/internal/logging"
)

const (
	defaultCols = 200 // wide pty keeps replies on few lines
	defaultRows = 50

	readBufferSize = 4096
	byeGrace       = time.Second
	killTimeout    = 3 * time.Second
)

var ErrHostClosed = errors.New("terminal: host closed")

// HostOptions configures a REPL host.
type HostOptions struct {
	Name       string   // agent name, used in logs
	Argv       []string // e.g. ollama run gemma3:4b
	Env        []string // extra KEY=VALUE entries
	Scrollback int
	Cols       uint16
	Rows       uint16
	Logger     *logging.Logger
	Factory    PtyFactory
}

// Host runs one interactive REPL on a pty and buffers its output as lines.
// Snapshot satisfies the screen interface the prompt monitor polls.
type Host struct {
	name   string
	pty    Pty
	cmd    *exec.Cmd
	scroll *Scrollback
	log    *logging.Logger

	mu     sync.Mutex
	closed bool

	exited  chan struct{}
	exitErr error // set before exited closes
	closeMu sync.Mutex
}

// StartHost launches the REPL and begins draining its output.
func StartHost(opts HostOptions) (*Host, error) {
	if len(opts.Argv) == 0 {
		return nil, errors.New("terminal: argv is required")
	}
	factory := opts.Factory
	if factory == nil {
		factory = DefaultPtyFactory()
	}
	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = defaultCols
	}
	if rows == 0 {
		rows = defaultRows
	}
	log := opts.Logger
	if log == nil {
		log = logging.New(logging.LevelInfo)
	}
	name := opts.Name
	if name == "" {
		name = opts.Argv[0]
	}

	p, cmd, err := factory.Start(StartSpec{Argv: opts.Argv, Env: opts.Env, Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", strings.Join(opts.Argv, " "), err)
	}

	host := &Host{
		name:   name,
		pty:    p,
		cmd:    cmd,
		scroll: NewScrollback(opts.Scrollback),
		log:    log.Component("terminal"),
		exited: make(chan struct{}),
	}
	host.log.Debug("repl started", map[string]string{
		"name": name,
		"argv": strings.Join(opts.Argv, " "),
	})
	go host.readLoop()
	return host, nil
}

func (h *Host) Name() string {
	return h.name
}

// Done closes once the REPL process stops producing output.
func (h *Host) Done() <-chan struct{} {
	return h.exited
}

// Snapshot returns the visible lines, or an error once the REPL has exited.
func (h *Host) Snapshot() ([]string, error) {
	select {
	case <-h.exited:
		return nil, h.exitError()
	default:
		return h.scroll.Lines(), nil
	}
}

// WriteLine submits one line of input. The REPL submits on newline, so
// interior newlines are flattened to spaces.
func (h *Host) WriteLine(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHostClosed
	}
	select {
	case <-h.exited:
		return h.exitError()
	default:
	}

	line := strings.ReplaceAll(text, "\n", " ")
	h.log.Debug("repl input", map[string]string{
		"name":  h.name,
		"chars": strconv.Itoa(len(line)),
	})
	if _, err := h.pty.Write([]byte(line + "\r")); err != nil {
		return fmt.Errorf("write to %s: %w", h.name, err)
	}
	return nil
}

// Close asks the REPL to quit, then tears down the process group.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true

	alive := true
	select {
	case <-h.exited:
		alive = false
	default:
	}
	if alive {
		_, _ = h.pty.Write([]byte("/bye\r"))
	}
	h.mu.Unlock()

	if alive {
		select {
		case <-h.exited:
		case <-time.After(byeGrace):
		}
	}

	var errs []error
	if err := terminateProcessTree(h.cmd, killTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := h.pty.Close(); err != nil {
		errs = append(errs, err)
	}
	h.log.Debug("repl closed", map[string]string{"name": h.name})
	return errors.Join(errs...)
}

func (h *Host) exitError() error {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()
	if h.exitErr != nil {
		return h.exitErr
	}
	return fmt.Errorf("%s exited", h.name)
}

func (h *Host) readLoop() {
	filters := Chain{NewUTF8GuardFilter(), NewANSIStripFilter()}
	buf := make([]byte, readBufferSize)
	for {
		n, err := h.pty.Read(buf)
		if n > 0 {
			h.scroll.Append(filters.Write(buf[:n]))
		}
		if err != nil {
			h.scroll.Append(filters.Flush())
			h.closeMu.Lock()
			h.exitErr = fmt.Errorf("%s exited: %w", h.name, err)
			h.closeMu.Unlock()
			close(h.exited)
			return
		}
	}
}
