package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/screencontrol/core/internal/registry"
	"github.com/screencontrol/core/internal/store"
)

type fakeStore struct {
	staleAgents   []store.StaleAgent
	staleSessions []string
	pruned        int64
}

func (s *fakeStore) MarkStaleAgentsOffline(ctx context.Context, timeout time.Duration) ([]store.StaleAgent, error) {
	return s.staleAgents, nil
}

func (s *fakeStore) EndStaleSessions(ctx context.Context, staleAfter time.Duration) ([]string, error) {
	return s.staleSessions, nil
}

func (s *fakeStore) PruneAuditLog(ctx context.Context, retention time.Duration) (int64, error) {
	return s.pruned, nil
}

func newTestSender() (registry.ChanSender, chan []byte) {
	ch := make(chan []byte, 4)
	return registry.ChanSender(ch), ch
}

func TestCheckHeartbeatsUnregistersStaleAgents(t *testing.T) {
	reg := registry.New()
	tx, _ := newTestSender()
	reg.RegisterAgent("agent-1", "DESKTOP-1", tx)

	s := &fakeStore{staleAgents: []store.StaleAgent{{ID: "agent-1", MachineName: "DESKTOP-1"}}}
	j := &Janitor{Store: s, Registry: reg}

	j.checkHeartbeats(context.Background())

	if reg.OnlineAgentCount() != 0 {
		t.Fatalf("expected agent to be unregistered, online count = %d", reg.OnlineAgentCount())
	}
}

func TestCheckHeartbeatsNoopWhenNoneStale(t *testing.T) {
	reg := registry.New()
	tx, _ := newTestSender()
	reg.RegisterAgent("agent-1", "DESKTOP-1", tx)

	s := &fakeStore{}
	j := &Janitor{Store: s, Registry: reg}
	j.checkHeartbeats(context.Background())

	if reg.OnlineAgentCount() != 1 {
		t.Fatalf("expected agent to remain registered, online count = %d", reg.OnlineAgentCount())
	}
}

func TestCleanupSessionsUnbindsStaleSessions(t *testing.T) {
	reg := registry.New()
	tx, _ := newTestSender()
	reg.RegisterAgent("agent-1", "DESKTOP-1", tx)
	reg.BindSession("sess-1", "agent-1")

	s := &fakeStore{staleSessions: []string{"sess-1"}}
	j := &Janitor{Store: s, Registry: reg}
	j.cleanupSessions(context.Background())

	if _, ok := reg.AgentForSession("sess-1"); ok {
		t.Fatal("expected stale session to be unbound")
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	reg := registry.New()
	j := &Janitor{Store: &fakeStore{}, Registry: reg}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return promptly after cancellation")
	}
}
