//go:build windows

package executor

import "os/exec"

// setProcessGroup is a no-op on Windows; job-object-based group kill
// is left for a future enhancement.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills just the child process itself.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
