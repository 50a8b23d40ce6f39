//go:build windows

package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

func terminateProcessTree(cmd *exec.Cmd, timeout time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	var errs []error
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		errs = append(errs, fmt.Errorf("kill process: %w", err))
	}
	if cmd.ProcessState == nil {
		done := make(chan error, 1)
		go func() {
			done <- cmd.Wait()
		}()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, os.ErrProcessDone) {
				errs = append(errs, fmt.Errorf("wait process: %w", err))
			}
		case <-time.After(timeout):
		}
	}
	return errors.Join(errs...)
}
