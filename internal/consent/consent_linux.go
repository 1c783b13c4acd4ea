//go:build linux

package consent

import (
	"fmt"
	"os"
	"os/exec"
)

func platformDialog(requester, sessionType string, timeoutSecs uint64) (bool, error) {
	hasDisplay := os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	if !hasDisplay {
		return false, fmt.Errorf("no display server available")
	}

	message := fmt.Sprintf(
		"<b>%s</b> is requesting <b>%s</b> access to this computer.\n\nDo you want to allow this connection?",
		requester, sessionType)

	cmd := exec.Command("zenity",
		"--question",
		"--title=ScreenControl - Remote Access Request",
		"--text="+message,
		"--ok-label=Allow",
		"--cancel-label=Deny",
		fmt.Sprintf("--timeout=%d", timeoutSecs),
		"--width=400",
	)

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			// zenity: 0 Allow, 1 Deny, 5 timeout — all are a shown dialog,
			// not an unavailable one.
			_ = exitErr
			return false, nil
		}
		return false, fmt.Errorf("zenity not found: %w", err)
	}
	return true, nil
}
