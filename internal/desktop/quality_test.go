package desktop

import "testing"

func TestQualityStateRoundTrips(t *testing.T) {
	q := newQualityState(Settings{Quality: 50, MaxFPS: 15, BitrateKbps: 1000})
	got := q.Get()
	if got.Quality != 50 || got.MaxFPS != 15 || got.BitrateKbps != 1000 {
		t.Fatalf("Get() = %+v, want Quality=50 MaxFPS=15 BitrateKbps=1000", got)
	}

	q.Set(Settings{Quality: 90, MaxFPS: 60, BitrateKbps: 4000})
	got = q.Get()
	if got.Quality != 90 || got.MaxFPS != 60 || got.BitrateKbps != 4000 {
		t.Fatalf("Get() after Set = %+v, want Quality=90 MaxFPS=60 BitrateKbps=4000", got)
	}
}

func TestFrameIntervalMillisFloorsToOneFPS(t *testing.T) {
	s := Settings{MaxFPS: 0}
	if got := s.frameIntervalMillis(); got != 1000 {
		t.Fatalf("frameIntervalMillis() = %d, want 1000 for a zero FPS", got)
	}
}

func TestFrameIntervalMillisMatchesFPS(t *testing.T) {
	s := Settings{MaxFPS: 50}
	if got := s.frameIntervalMillis(); got != 20 {
		t.Fatalf("frameIntervalMillis() = %d, want 20", got)
	}
}
