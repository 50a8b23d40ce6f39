//go:build !windows && !linux

package terminal

import "syscall"

// Parent-death signals are a Linux prctl feature; elsewhere the process
// group teardown in Close covers orphan cleanup.
func setPtyDeathSignal(attr *syscall.SysProcAttr) {}
