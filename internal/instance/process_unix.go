package instance

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// IsProcessRunning reports whether a process with the given PID currently
// exists, using the zero-signal probe idiom (kill(pid, 0)) spec §4.H calls
// for when checking agent-process liveness.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	if err == syscall.ESRCH {
		return false, nil
	}
	if err == syscall.EPERM {
		// Process exists but we lack permission to signal it.
		return true, nil
	}
	return false, nil
}

// GetProcessName reads the executable name for a PID from /proc. Returns an
// empty string (not an error) when /proc is unavailable so callers treat the
// check as inconclusive rather than fatal.
func GetProcessName(pid int) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(string(data)), nil
}

// KillProcess sends SIGTERM, then SIGKILL after a short grace period if the
// process has not exited, mirroring the graceful-then-hard-kill contract of
// spec §5.
func KillProcess(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to send SIGTERM to %d: %w", pid, err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		running, _ := IsProcessRunning(pid)
		if !running {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := process.Signal(syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to send SIGKILL to %d: %w", pid, err)
	}
	return nil
}

// parsePIDList parses newline-separated PID output (e.g. from lsof -t).
func parsePIDList(output string) []int {
	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if pid, err := strconv.Atoi(line); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}
