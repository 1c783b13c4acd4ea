//go:build windows

package consent

import (
	"fmt"
	"os/exec"
)

func platformDialog(requester, sessionType string, timeoutSecs uint64) (bool, error) {
	message := fmt.Sprintf(
		"%s is requesting %s access to this computer.\\n\\nDo you want to allow this connection?",
		requester, sessionType)

	script := fmt.Sprintf(`
$wsh = New-Object -ComObject WScript.Shell
$result = $wsh.Popup("%s", %d, "ScreenControl - Remote Access Request", 4 + 32)
if ($result -eq 6) { exit 0 } else { exit 1 }
`, message, timeoutSecs)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	err := cmd.Run()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, fmt.Errorf("powershell failed: %w", err)
	}
	return true, nil
}
