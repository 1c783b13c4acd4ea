//go:build !linux && !windows

package sessionbroker

// NewSessionDetector returns a detector that reports no sessions. On
// macOS the consent gate prompts directly via osascript in its own
// session (see internal/consent) rather than through a broker, so
// nothing here ever calls ListSessions in practice.
func NewSessionDetector() SessionDetector { return &nullDetector{} }

type nullDetector struct{}

func (nullDetector) ListSessions() ([]DetectedSession, error) { return nil, nil }
