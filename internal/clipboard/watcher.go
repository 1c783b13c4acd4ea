package clipboard

import (
	"crypto/sha256"
	"sync"
	"time"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("clipboard")

const defaultPollInterval = 500 * time.Millisecond

// Watcher polls a Provider for changes and calls Send whenever the
// content differs from what was last sent or received, so a remote
// echo of content this side just wrote doesn't bounce straight back.
type Watcher struct {
	provider     Provider
	pollInterval time.Duration
	send         func(text string) error

	mu       sync.Mutex
	lastHash [32]byte
	started  bool
}

// NewWatcher creates a Watcher that calls send with any locally-changed
// clipboard text it observes. send is typically a closure that encodes
// and transmits a ClipboardData envelope to the session's peer.
func NewWatcher(provider Provider, send func(text string) error) *Watcher {
	return &Watcher{provider: provider, pollInterval: defaultPollInterval, send: send}
}

// Watch polls the local clipboard until stop is closed.
func (w *Watcher) Watch(stop <-chan struct{}) {
	if w.provider == nil {
		return
	}
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			text, err := w.provider.GetText()
			if err != nil {
				continue
			}
			hash := fingerprint(text)
			w.mu.Lock()
			changed := hash != w.lastHash
			w.mu.Unlock()
			if !changed {
				continue
			}
			if err := w.send(text); err != nil {
				log.Warn("failed to send clipboard update", "error", err)
				continue
			}
			w.mu.Lock()
			w.lastHash = hash
			w.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// Receive applies remotely-sourced clipboard text locally and records
// its fingerprint so the next poll doesn't re-send it as a local change.
func (w *Watcher) Receive(text string) error {
	if w.provider == nil {
		return nil
	}
	if err := w.provider.SetText(text); err != nil {
		return err
	}
	w.mu.Lock()
	w.lastHash = fingerprint(text)
	w.mu.Unlock()
	return nil
}

func fingerprint(text string) [32]byte {
	return sha256.Sum256([]byte(text))
}
