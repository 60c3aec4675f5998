// Package pidfile provides PID file management for the storyview daemon.
package pidfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/storyview/pkg/process"
)

// Acquire writes the current PID to the file.
// It returns an error if another instance is already running.
func Acquire(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	if running, pid, err := IsRunning(path); err == nil && running {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}
	// Process is dead or the file is unreadable; replace it.
	_ = os.Remove(path)

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}

	return nil
}

// Release removes the PID file if it still names this process.
func Release(path string) error {
	if pid, err := Read(path); err == nil && pid != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

// Read returns the PID from the file, or 0 if not found/invalid.
func Read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidStr := strings.TrimSpace(string(content))
	return strconv.Atoi(pidStr)
}

// IsRunning checks if the daemon described by the pidfile is active.
func IsRunning(path string) (bool, int, error) {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return process.IsAlive(pid), pid, nil
}

// Stop terminates the daemon named by the pidfile and waits up to timeout
// for it to exit.
func Stop(path string, timeout time.Duration) (int, error) {
	running, pid, err := IsRunning(path)
	if err != nil {
		return 0, err
	}
	if !running {
		return 0, fmt.Errorf("daemon is not running")
	}
	if err := process.Terminate(pid); err != nil {
		return pid, fmt.Errorf("failed to signal daemon: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := process.WaitExit(ctx, pid); err != nil {
		return pid, fmt.Errorf("daemon (PID %d) did not exit within %s", pid, timeout)
	}
	return pid, nil
}
