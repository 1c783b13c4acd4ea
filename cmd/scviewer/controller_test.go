package main

import (
	"testing"

	"github.com/screencontrol/core/internal/viewerconn"
	"github.com/screencontrol/core/pkg/protocol"
)

func TestControllerEnqueuesEnvelopes(t *testing.T) {
	conn := viewerconn.New(viewerconn.Config{ServerURL: "http://localhost:1", SessionID: "s1"}, func(*protocol.Envelope) {})
	c := newController(conn, "s1")

	if err := c.MouseMove(0.5, 0.5); err != nil {
		t.Fatalf("MouseMove: %v", err)
	}
	if err := c.KeyEvent(protocol.KeyA, true, false, false, false, true); err != nil {
		t.Fatalf("KeyEvent: %v", err)
	}
	if err := c.SendClipboard("hello"); err != nil {
		t.Fatalf("SendClipboard: %v", err)
	}
	if err := c.SetQuality(80, 30, 2000); err != nil {
		t.Fatalf("SetQuality: %v", err)
	}

	conn.Stop()
	if err := c.Ping(1); err == nil {
		t.Fatal("expected error sending after stop")
	}
}
