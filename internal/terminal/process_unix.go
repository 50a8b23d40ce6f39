//go:build !windows

package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// terminateProcessTree asks the child's process group to exit, waits up to
// timeout, then kills whatever is left. The REPL spawns model workers, so
// signaling the group rather than the single pid matters.
func terminateProcessTree(cmd *exec.Cmd, timeout time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid
	pgid := processGroupID(pid)

	var errs []error
	if err := signalProcessGroup(pid, pgid, syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		errs = append(errs, fmt.Errorf("signal group: %w", err))
	}

	exited, waitErr := waitForExit(cmd, timeout)
	if waitErr != nil && !ignorableWaitError(waitErr) {
		errs = append(errs, fmt.Errorf("wait process: %w", waitErr))
	}

	if !exited {
		if err := signalProcessGroup(pid, pgid, syscall.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("kill group: %w", err))
		}
		if err := waitProcess(cmd); err != nil && !ignorableWaitError(err) {
			errs = append(errs, fmt.Errorf("wait process: %w", err))
		}
	}

	return errors.Join(errs...)
}

func processGroupID(pid int) int {
	if pid <= 0 {
		return 0
	}
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return 0
	}
	return pgid
}

func signalProcessGroup(pid, pgid int, sig syscall.Signal) error {
	if pgid > 0 {
		return syscall.Kill(-pgid, sig)
	}
	if pid <= 0 {
		return nil
	}
	return syscall.Kill(pid, sig)
}

func waitForExit(cmd *exec.Cmd, timeout time.Duration) (bool, error) {
	if cmd.ProcessState != nil {
		return true, nil
	}
	if timeout <= 0 {
		return true, waitProcess(cmd)
	}

	done := make(chan error, 1)
	go func() {
		done <- waitProcess(cmd)
	}()

	select {
	case err := <-done:
		return true, err
	case <-time.After(timeout):
		return false, nil
	}
}

func waitProcess(cmd *exec.Cmd) error {
	if cmd.ProcessState != nil {
		return nil
	}
	return cmd.Wait()
}

// Exits caused by our own signals are the expected outcome, not failures.
func ignorableWaitError(err error) bool {
	if errors.Is(err, os.ErrProcessDone) {
		return true
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	return status.Signaled()
}
