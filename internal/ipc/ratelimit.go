package ipc

import (
	"sync"
	"time"
)

// RateLimiter caps connection attempts per identity (a UID string on
// Unix, a SID on Windows) within a sliding window. In-memory only —
// IPC never leaves the host.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration

	mu          sync.Mutex
	attempts    map[string][]time.Time
	lastCleanup time.Time
}

const cleanupInterval = 5 * time.Minute

// NewRateLimiter returns a limiter allowing maxAttempts per window.
func NewRateLimiter(maxAttempts int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		attempts:    make(map[string][]time.Time),
		lastCleanup: time.Now(),
	}
}

// Allow reports whether identity may connect now, and records the
// attempt if so.
func (r *RateLimiter) Allow(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	if now.Sub(r.lastCleanup) > cleanupInterval {
		for id, times := range r.attempts {
			stale := true
			for _, t := range times {
				if t.After(cutoff) {
					stale = false
					break
				}
			}
			if stale {
				delete(r.attempts, id)
			}
		}
		r.lastCleanup = now
	}

	existing := r.attempts[identity]
	pruned := make([]time.Time, 0, len(existing))
	for _, t := range existing {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}

	if len(pruned) >= r.maxAttempts {
		r.attempts[identity] = pruned
		return false
	}

	r.attempts[identity] = append(pruned, now)
	return true
}
