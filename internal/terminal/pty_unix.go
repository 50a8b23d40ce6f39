//go:build !windows

package terminal

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

type filePty struct {
	file *os.File
}

func (p *filePty) Read(data []byte) (int, error) {
	return p.file.Read(data)
}

func (p *filePty) Write(data []byte) (int, error) {
	return p.file.Write(data)
}

func (p *filePty) Close() error {
	return p.file.Close()
}

func (p *filePty) Resize(cols, rows uint16) error {
	return pty.Setsize(p.file, &pty.Winsize{Cols: cols, Rows: rows})
}

func startPty(spec StartSpec) (Pty, *exec.Cmd, error) {
	if len(spec.Argv) == 0 {
		return nil, nil, errors.New("terminal: empty argv")
	}
	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	setPtyDeathSignal(cmd.SysProcAttr)

	var ptmx *os.File
	var err error
	if spec.Cols > 0 && spec.Rows > 0 {
		ptmx, err = pty.StartWithSize(cmd, &pty.Winsize{Cols: spec.Cols, Rows: spec.Rows})
	} else {
		ptmx, err = pty.Start(cmd)
	}
	if err != nil {
		return nil, nil, err
	}
	return &filePty{file: ptmx}, cmd, nil
}
