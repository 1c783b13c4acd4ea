// Package consent implements the on-device approval gate: before any
// desktop, terminal, or file-transfer session is allowed, the local user
// (or a service-mode heuristic) must grant it.
package consent

import (
	"context"
	"time"

	"github.com/screencontrol/core/internal/ipc"
	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/internal/privilege"
)

var log = logging.L("consent")

// Relay is satisfied by *sessionbroker.Broker — imported as an
// interface here rather than a concrete type since sessionbroker
// doesn't need to know about consent.
type Relay interface {
	RequestConsent(id, identityKey string, req ipc.ConsentRequest, timeout time.Duration) (ipc.ConsentResponse, error)
}

var activeRelay Relay

// SetRelay installs the session broker used to reach an interactive
// user's session when the agent process itself runs elevated (a
// Windows service in session 0, or root with no attached desktop) and
// can't pop a dialog into its own session. Pass nil to go back to
// prompting directly.
func SetRelay(r Relay) { activeRelay = r }

// Result is the outcome of a consent prompt.
type Result int

const (
	// Granted means the user explicitly allowed the session.
	Granted Result = iota
	// Denied means the user explicitly refused the session.
	Denied
	// TimedOut means the dialog was shown but no decision arrived in time.
	TimedOut
	// NoDisplay means no interactive session was available to prompt —
	// service-mode heuristics decide whether this auto-grants.
	NoDisplay
)

func (r Result) String() string {
	switch r {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	case TimedOut:
		return "timed_out"
	case NoDisplay:
		return "no_display"
	default:
		return "unknown"
	}
}

// nativeDialog is implemented per-platform (consent_linux.go,
// consent_darwin.go, consent_windows.go, consent_other.go). It returns
// (granted, error) where a non-nil error means no dialog could be shown
// at all (headless/service mode), distinct from an explicit deny.
type nativeDialog func(requester, sessionType string, timeoutSecs uint64) (bool, error)

var showNativeDialog nativeDialog = platformDialog

// Prompt shows a consent dialog to the local user and blocks until a
// decision, timeout, or the context is cancelled. If no dialog can be
// shown (headless/service mode), it reports NoDisplay rather than
// blocking forever — callers decide whether NoDisplay auto-grants.
func Prompt(ctx context.Context, requester, sessionType string, timeout time.Duration) Result {
	// Floor only the value passed to the native dialog command (its own
	// --timeout flag needs a sane minimum); the select below still honors
	// the caller's exact timeout.
	dialogTimeoutSecs := uint64(timeout.Seconds())
	if dialogTimeoutSecs < 5 {
		dialogTimeoutSecs = 5
	}

	type outcome struct {
		granted bool
		err     error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		granted, err := showNativeDialog(requester, sessionType, dialogTimeoutSecs)
		resultCh <- outcome{granted: granted, err: err}
	}()

	select {
	case o := <-resultCh:
		if o.err != nil {
			log.Debug("consent dialog unavailable, treating as no-display", "error", o.err)
			return NoDisplay
		}
		if o.granted {
			return Granted
		}
		return Denied
	case <-time.After(timeout):
		return TimedOut
	case <-ctx.Done():
		return TimedOut
	}
}

// PromptForSession is the entry point session/command handling should
// call: it prompts directly via Prompt when the agent process can
// reach its own interactive session, and relays through the installed
// Relay when the process runs elevated with no session of its own
// (see internal/privilege, internal/sessionbroker). identityKey
// selects which connected helper session to relay to (the UID/SID of
// the active console session); if empty, or no relay is installed, or
// the process isn't elevated, it falls back to Prompt.
func PromptForSession(ctx context.Context, identityKey, requester, sessionType string, timeout time.Duration) Result {
	if !privilege.IsElevated() || activeRelay == nil || identityKey == "" {
		return Prompt(ctx, requester, sessionType, timeout)
	}

	resp, err := activeRelay.RequestConsent(requester, identityKey, ipc.ConsentRequest{
		Requester:   requester,
		SessionType: sessionType,
		TimeoutSecs: uint64(timeout.Seconds()),
	}, timeout)
	if err != nil {
		log.Debug("consent relay unavailable, treating as no-display", "error", err)
		return NoDisplay
	}

	switch resp.Result {
	case "granted":
		return Granted
	case "denied":
		return Denied
	case "timed_out":
		return TimedOut
	default:
		return NoDisplay
	}
}
