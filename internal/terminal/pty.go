// Package terminal hosts an interactive model REPL on a pseudo-terminal and
// exposes its scrollback as clean text lines. It is the fallback transport
// for machines without tmux.
package terminal

import "os/exec"

// Pty is the master side of a pseudo-terminal.
type Pty interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	Resize(cols, rows uint16) error
}

// StartSpec describes the child process to run on a pty.
type StartSpec struct {
	Argv []string
	Env  []string // appended to the parent environment
	Cols uint16
	Rows uint16
}

// PtyFactory starts child processes on ptys. Tests substitute fakes.
type PtyFactory interface {
	Start(spec StartSpec) (Pty, *exec.Cmd, error)
}

type defaultPtyFactory struct{}

func (defaultPtyFactory) Start(spec StartSpec) (Pty, *exec.Cmd, error) {
	return startPty(spec)
}

func DefaultPtyFactory() PtyFactory {
	return defaultPtyFactory{}
}
