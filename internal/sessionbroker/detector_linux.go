//go:build linux

package sessionbroker

import (
	"bufio"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type linuxDetector struct{}

// NewSessionDetector returns a Linux session detector backed by
// systemd-logind's loginctl.
func NewSessionDetector() SessionDetector { return &linuxDetector{} }

func (d *linuxDetector) ListSessions() ([]DetectedSession, error) {
	out, err := exec.Command("loginctl", "list-sessions", "--no-legend", "--no-pager").Output()
	if err != nil {
		return nil, fmt.Errorf("sessionbroker: loginctl list-sessions: %w", err)
	}

	var sessions []DetectedSession
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		sessionID := fields[0]
		if _, err := strconv.ParseUint(fields[1], 10, 32); err != nil {
			continue
		}
		username := fields[2]

		sess := DetectedSession{Username: username, Session: sessionID, State: "active"}

		propOut, err := exec.Command("loginctl", "show-session", sessionID,
			"--property=Type,Remote,Seat,State").Output()
		if err == nil {
			for _, propLine := range strings.Split(string(propOut), "\n") {
				parts := strings.SplitN(strings.TrimSpace(propLine), "=", 2)
				if len(parts) != 2 {
					continue
				}
				switch parts[0] {
				case "Type":
					if parts[1] == "x11" || parts[1] == "wayland" {
						sess.Display = parts[1]
					}
				case "Remote":
					sess.IsRemote = parts[1] == "yes"
				case "State":
					sess.State = parts[1]
				}
			}
		}

		sessions = append(sessions, sess)
	}

	return sessions, nil
}
