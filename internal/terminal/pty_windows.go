//go:build windows

package terminal

import (
	"errors"
	"os/exec"
)

var errPtyUnsupported = errors.New("terminal: pty transport requires a unix system")

func startPty(spec StartSpec) (Pty, *exec.Cmd, error) {
	return nil, nil, errPtyUnsupported
}
