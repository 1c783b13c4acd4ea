package session

import (
	"strings"
	"testing"

	"github.com/screencontrol/core/pkg/protocol"
)

func TestBuildWSURLTranslatesSchemeAndAddsPath(t *testing.T) {
	c := New(Config{ServerURL: "https://relay.example.test", AgentID: "agent-42", TenantToken: "tok"}, func(*protocol.Envelope) {})

	got, err := c.buildWSURL()
	if err != nil {
		t.Fatalf("buildWSURL: %v", err)
	}
	if !strings.HasPrefix(got, "wss://relay.example.test/ws/agent/agent-42?") {
		t.Fatalf("unexpected url: %s", got)
	}
	if !strings.Contains(got, "token=tok") {
		t.Fatalf("expected token query param, got %s", got)
	}
}

func TestBuildWSURLPlainHTTP(t *testing.T) {
	c := New(Config{ServerURL: "http://localhost:8080", AgentID: "a1", TenantToken: "t"}, func(*protocol.Envelope) {})
	got, err := c.buildWSURL()
	if err != nil {
		t.Fatalf("buildWSURL: %v", err)
	}
	if !strings.HasPrefix(got, "ws://localhost:8080/ws/agent/a1") {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestSendAfterStopReturnsError(t *testing.T) {
	c := New(Config{ServerURL: "http://localhost:8080", AgentID: "a1"}, func(*protocol.Envelope) {})
	c.Stop()

	err := c.Send(&protocol.Envelope{Payload: &protocol.Ping{Timestamp: 1}})
	if err == nil {
		t.Fatal("expected error sending after stop")
	}
}
