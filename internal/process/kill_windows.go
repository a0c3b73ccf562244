//go:build windows

// Package process terminates the browser process tree left by a launcher.
package process

import (
	"fmt"
	"os/exec"
	"strconv"
)

// KillProcessGroup kills pid and its children with taskkill /F /T.
func KillProcessGroup(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run(); err != nil {
		return fmt.Errorf("killing process tree %d: %w", pid, err)
	}
	return nil
}
