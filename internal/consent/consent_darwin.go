//go:build darwin

package consent

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

func platformDialog(requester, sessionType string, timeoutSecs uint64) (bool, error) {
	uid := os.Getuid()
	ppid := os.Getppid()
	unattended := os.Getenv("SC_UNATTENDED") == "1"

	if uid == 0 || ppid == 1 || unattended {
		return false, fmt.Errorf("running as service (uid=%d, ppid=%d, unattended=%v) — auto-granting", uid, ppid, unattended)
	}

	script := fmt.Sprintf(
		`display dialog "%s is requesting %s access to this computer.\n\nDo you want to allow this connection?" `+
			`buttons {"Deny", "Allow"} default button "Deny" cancel button "Deny" `+
			`with title "ScreenControl - Remote Access Request" `+
			`giving up after %d`,
		requester, sessionType, timeoutSecs)

	out, err := exec.Command("osascript", "-e", script).Output()
	if err != nil {
		// osascript exits non-zero on Deny/timeout; that's still a shown
		// dialog, not an unavailable one, unless the binary itself is missing.
		if _, ok := err.(*exec.ExitError); !ok {
			return false, fmt.Errorf("osascript failed: %w", err)
		}
	}

	stdout := string(out)
	granted := strings.Contains(stdout, "Allow") && !strings.Contains(stdout, "gave up:true")
	return granted, nil
}
