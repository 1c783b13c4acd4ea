//go:build !windows

package privilege

import "os"

// IsElevated reports whether the agent is running as root (Unix) —
// the condition under which it cannot pop a GUI dialog into its own
// session and must relay through sessionbroker instead.
func IsElevated() bool {
	return os.Getuid() == 0
}
