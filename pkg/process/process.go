// Package process inspects and signals the storyview daemon by PID.
package process

import (
	"context"
	"os"
	"syscall"
	"time"
)

// PollInterval is how often WaitExit checks whether the process is gone.
const PollInterval = 50 * time.Millisecond

// IsAlive reports whether a process with the given PID exists. Signal 0
// probes without delivering anything; EPERM still means the process exists.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// Terminate sends SIGTERM, which the daemon handles as a graceful shutdown.
func Terminate(pid int) error {
	if pid <= 0 {
		return os.ErrProcessDone
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(syscall.SIGTERM)
}

// WaitExit blocks until pid is no longer alive or ctx is done.
func WaitExit(ctx context.Context, pid int) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for IsAlive(pid) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
