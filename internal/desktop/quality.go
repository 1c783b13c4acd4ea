package desktop

import "sync/atomic"

// qualityState holds the live QualitySettings a session's capture loop
// reads once per frame. Updated from the agent's command dispatch when
// a viewer pushes a new QualitySettings envelope.
type qualityState struct {
	settings atomic.Pointer[Settings]
}

// Settings mirrors protocol.QualitySettings, decoupled from the wire
// type so this package doesn't import protocol for a plain value copy.
type Settings struct {
	Quality     int
	MaxFPS      int
	BitrateKbps int
}

// DefaultSettings is used until a viewer negotiates something else.
func DefaultSettings() Settings {
	return Settings{Quality: 70, MaxFPS: 30, BitrateKbps: 2000}
}

func newQualityState(initial Settings) *qualityState {
	q := &qualityState{}
	q.Set(initial)
	return q
}

func (q *qualityState) Set(s Settings) {
	cp := s
	q.settings.Store(&cp)
}

func (q *qualityState) Get() Settings {
	if s := q.settings.Load(); s != nil {
		return *s
	}
	return DefaultSettings()
}

// frameIntervalMillis returns the spacing between captures for the current
// MaxFPS, floored to 1 to avoid a division by zero from a bad value.
func (s Settings) frameIntervalMillis() int64 {
	fps := s.MaxFPS
	if fps <= 0 {
		fps = 1
	}
	return int64(1000 / fps)
}
