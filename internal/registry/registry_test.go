package registry

import (
	"testing"
	"time"
)

func newTestSender() (ChanSender, chan []byte) {
	ch := make(chan []byte, 4)
	return ChanSender(ch), ch
}

func TestRegisterAndUnregisterAgentBroadcastsStatus(t *testing.T) {
	r := New()
	subTx, subCh := newTestSender()
	r.AddEventSub("sub-1", subTx)

	agentTx, _ := newTestSender()
	r.RegisterAgent("agent-1", "DESKTOP-1", agentTx)

	select {
	case msg := <-subCh:
		if len(msg) == 0 {
			t.Fatal("expected non-empty online event")
		}
	default:
		t.Fatal("expected online broadcast event")
	}

	if r.OnlineAgentCount() != 1 {
		t.Fatalf("expected 1 online agent, got %d", r.OnlineAgentCount())
	}

	r.UnregisterAgent("agent-1")
	select {
	case msg := <-subCh:
		if len(msg) == 0 {
			t.Fatal("expected non-empty offline event")
		}
	default:
		t.Fatal("expected offline broadcast event")
	}
	if r.OnlineAgentCount() != 0 {
		t.Fatalf("expected 0 online agents after unregister, got %d", r.OnlineAgentCount())
	}
}

func TestUnregisterAgentRemovesBoundSessions(t *testing.T) {
	r := New()
	agentTx, _ := newTestSender()
	r.RegisterAgent("agent-1", "DESKTOP-1", agentTx)

	if !r.BindSession("sess-1", "agent-1") {
		t.Fatal("expected bind to succeed")
	}
	if r.ActiveSessionCount() != 1 {
		t.Fatalf("expected 1 active session, got %d", r.ActiveSessionCount())
	}

	r.UnregisterAgent("agent-1")
	if r.ActiveSessionCount() != 0 {
		t.Fatalf("expected session to be removed with its agent, got %d", r.ActiveSessionCount())
	}
}

func TestBindSessionFailsForUnknownAgent(t *testing.T) {
	r := New()
	if r.BindSession("sess-1", "ghost-agent") {
		t.Fatal("expected bind to fail for a disconnected agent")
	}
}

func TestUpdateAgentMetricsPreservesStickyFields(t *testing.T) {
	r := New()
	agentTx, _ := newTestSender()
	r.RegisterAgent("agent-1", "DESKTOP-1", agentTx)

	r.UpdateAgentMetrics("agent-1", AgentMetrics{
		CPUPercent:   10,
		LoggedInUser: "alice",
		CPUModel:     "Ryzen 9",
	})

	// A later heartbeat that doesn't resample logged-in user / CPU model
	// must not erase what was previously recorded.
	r.UpdateAgentMetrics("agent-1", AgentMetrics{CPUPercent: 55})

	got, ok := r.AgentMetricsFor("agent-1")
	if !ok {
		t.Fatal("expected metrics to be present")
	}
	if got.CPUPercent != 55 {
		t.Fatalf("expected cpu_percent to update to 55, got %v", got.CPUPercent)
	}
	if got.LoggedInUser != "alice" {
		t.Fatalf("expected logged_in_user to remain sticky, got %q", got.LoggedInUser)
	}
	if got.CPUModel != "Ryzen 9" {
		t.Fatalf("expected cpu_model to remain sticky, got %q", got.CPUModel)
	}
}

func TestShouldCaptureThumbnailGatesOnInterval(t *testing.T) {
	r := New()
	agentTx, _ := newTestSender()
	r.RegisterAgent("agent-1", "DESKTOP-1", agentTx)

	if !r.ShouldCaptureThumbnail("agent-1", time.Hour) {
		t.Fatal("expected first call to permit capture")
	}
	if r.ShouldCaptureThumbnail("agent-1", time.Hour) {
		t.Fatal("expected second call within interval to be denied")
	}
	if r.ShouldCaptureThumbnail("agent-1", 0) == false {
		t.Fatal("expected zero interval to always permit capture")
	}
}

func TestMarkThumbnailSentBypassesGate(t *testing.T) {
	r := New()
	agentTx, _ := newTestSender()
	r.RegisterAgent("agent-1", "DESKTOP-1", agentTx)

	r.MarkThumbnailSent("agent-1")
	if r.ShouldCaptureThumbnail("agent-1", time.Hour) {
		t.Fatal("expected gate to reflect the synthetic mark")
	}
}

func TestBroadcastEventPrunesDeadSubscribers(t *testing.T) {
	r := New()
	fullTx, fullCh := newTestSender()
	for i := 0; i < cap(fullCh); i++ {
		fullCh <- []byte("x")
	}
	r.AddEventSub("full-sub", fullTx)

	r.BroadcastEvent(map[string]any{"type": "test"})

	r.mu.RLock()
	_, stillPresent := r.eventSubs["full-sub"]
	r.mu.RUnlock()
	if stillPresent {
		t.Fatal("expected backed-up subscriber to be pruned")
	}
}

func TestAgentForSessionAndSendToViewer(t *testing.T) {
	r := New()
	agentTx, _ := newTestSender()
	r.RegisterAgent("agent-1", "DESKTOP-1", agentTx)
	r.BindSession("sess-1", "agent-1")

	if _, ok := r.AgentForSession("sess-1"); !ok {
		t.Fatal("expected agent lookup to succeed for bound session")
	}

	viewerTx, viewerCh := newTestSender()
	if !r.AttachViewer("sess-1", viewerTx) {
		t.Fatal("expected viewer attach to succeed")
	}
	if !r.SendToViewer("sess-1", []byte("hello")) {
		t.Fatal("expected send to viewer to succeed")
	}
	if got := <-viewerCh; string(got) != "hello" {
		t.Fatalf("expected viewer to receive forwarded bytes, got %q", got)
	}
}
