//go:build windows

package privilege

import "golang.org/x/sys/windows"

// IsElevated reports whether the current process token carries an
// elevated (Administrator, or running as a service in session 0)
// privilege level.
func IsElevated() bool {
	token := windows.GetCurrentProcessToken()
	return token.IsElevated()
}
