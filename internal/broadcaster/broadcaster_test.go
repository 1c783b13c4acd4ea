package broadcaster

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/screencontrol/core/internal/pubsub"
	"github.com/screencontrol/core/internal/registry"
)

type recordingSender struct {
	ch chan []byte
}

func newRecordingSender() *recordingSender {
	return &recordingSender{ch: make(chan []byte, 8)}
}

func (s *recordingSender) TrySend(data []byte) bool {
	select {
	case s.ch <- data:
		return true
	default:
		return false
	}
}

func TestSendToAgentDeliversLocallyWithoutPubsub(t *testing.T) {
	reg := registry.New()
	sender := newRecordingSender()
	reg.RegisterAgent("agent-1", "box", sender)

	b := New(reg, nil)
	if err := b.SendToAgent(context.Background(), "agent-1", []byte("hello")); err != nil {
		t.Fatalf("SendToAgent: %v", err)
	}

	select {
	case got := <-sender.ch:
		if string(got) != "hello" {
			t.Fatalf("got %q, want hello", got)
		}
	default:
		t.Fatal("expected frame delivered to local sender")
	}
}

func TestSendToAgentErrorsWithoutPubsubWhenNotConnectedLocally(t *testing.T) {
	reg := registry.New()
	b := New(reg, nil)

	if err := b.SendToAgent(context.Background(), "agent-missing", []byte("x")); err == nil {
		t.Fatal("expected error when agent not connected and no pubsub configured")
	}
}

func TestSendToViewerDeliversLocally(t *testing.T) {
	reg := registry.New()
	agentSender := newRecordingSender()
	viewerSender := newRecordingSender()
	reg.RegisterAgent("agent-1", "box", agentSender)
	reg.BindSession("sess-1", "agent-1")
	reg.AttachViewer("sess-1", viewerSender)

	b := New(reg, nil)
	if err := b.SendToViewer(context.Background(), "sess-1", []byte("frame-data")); err != nil {
		t.Fatalf("SendToViewer: %v", err)
	}

	select {
	case got := <-viewerSender.ch:
		if string(got) != "frame-data" {
			t.Fatalf("got %q, want frame-data", got)
		}
	default:
		t.Fatal("expected frame delivered to viewer sender")
	}
}

func TestRelayLoopDecodesAndDeliversFrameEvents(t *testing.T) {
	reg := registry.New()
	b := New(reg, nil)

	events := make(chan pubsub.Event, 2)
	delivered := make(chan []byte, 2)

	go b.relayLoop(events, func(data []byte) {
		delivered <- data
	})

	events <- pubsub.Event{Type: eventTypeFrame, Data: base64.StdEncoding.EncodeToString([]byte("payload"))}
	events <- pubsub.Event{Type: "status", Data: "ignored"}
	close(events)

	select {
	case got := <-delivered:
		if string(got) != "payload" {
			t.Fatalf("got %q, want payload", got)
		}
	case <-time.After(time.Second):
		t.Fatal("expected relayed frame to be delivered")
	}

	select {
	case <-delivered:
		t.Fatal("expected non-frame event to be ignored")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchAgentIsNoopWithoutPubsub(t *testing.T) {
	reg := registry.New()
	b := New(reg, nil)
	b.WatchAgent(context.Background(), "agent-1")
	b.UnwatchAgent("agent-1")
}

func TestPublishStatusEventFansOutLocally(t *testing.T) {
	reg := registry.New()
	sub := newRecordingSender()
	reg.AddEventSub("ui-1", sub)

	b := New(reg, nil)
	if err := b.PublishStatusEvent(context.Background(), "agent-1", map[string]any{"type": "agent.status"}); err != nil {
		t.Fatalf("PublishStatusEvent: %v", err)
	}

	select {
	case <-sub.ch:
	default:
		t.Fatal("expected status event delivered to local subscriber")
	}
}
