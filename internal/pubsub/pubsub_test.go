package pubsub

import "testing"

func TestAgentChannelNaming(t *testing.T) {
	got := agentChannel("agent-123")
	want := "agent:agent-123"
	if got != want {
		t.Fatalf("agentChannel() = %q, want %q", got, want)
	}
}

func TestSessionChannelNaming(t *testing.T) {
	got := sessionChannel("sess-abc")
	want := "session:sess-abc"
	if got != want {
		t.Fatalf("sessionChannel() = %q, want %q", got, want)
	}
}

func TestNewDoesNotDialEagerly(t *testing.T) {
	b := New("127.0.0.1:0", "", 0)
	if b == nil || b.client == nil {
		t.Fatal("expected a non-nil broadcaster and client")
	}
	_ = b.Close()
}
