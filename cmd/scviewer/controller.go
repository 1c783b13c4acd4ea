package main

import (
	"github.com/google/uuid"

	"github.com/screencontrol/core/internal/viewerconn"
	"github.com/screencontrol/core/internal/viewerinput"
	"github.com/screencontrol/core/pkg/protocol"
)

// Controller wraps a viewerconn.Client with the outbound envelope
// shapes a front end needs to send: input events, clipboard pushes,
// and quality/monitor changes. It has no GUI dependency of its own, so
// any input source (a real windowing toolkit, a test harness) can
// drive it the same way.
type Controller struct {
	conn      *viewerconn.Client
	sessionID string
}

func newController(conn *viewerconn.Client, sessionID string) *Controller {
	return &Controller{conn: conn, sessionID: sessionID}
}

func (c *Controller) send(payload protocol.Payload) error {
	return c.conn.Send(&protocol.Envelope{
		ID:        uuid.NewString(),
		SessionID: c.sessionID,
		Payload:   payload,
	})
}

// MouseMove forwards an absolute, normalized mouse position.
func (c *Controller) MouseMove(nx, ny float64) error {
	return c.send(viewerinput.MouseMove(nx, ny))
}

// RelativeMouseMove forwards a captured-pointer delta.
func (c *Controller) RelativeMouseMove(dx, dy int) error {
	return c.send(viewerinput.RelativeMouseMove(dx, dy))
}

// MouseButton forwards a button press or release at a normalized position.
func (c *Controller) MouseButton(nx, ny float64, button int, pressed bool) error {
	return c.send(viewerinput.MouseButton(nx, ny, button, pressed))
}

// Scroll forwards a scroll-wheel delta.
func (c *Controller) Scroll(dx, dy float64) error {
	return c.send(viewerinput.MouseScroll(dx, dy))
}

// KeyEvent forwards a key press or release.
func (c *Controller) KeyEvent(keyCode int, ctrl, alt, shift, meta, pressed bool) error {
	mods := viewerinput.Modifiers(ctrl, alt, shift, meta)
	return c.send(viewerinput.KeyEvent(keyCode, mods, pressed))
}

// SendClipboard pushes local clipboard text to the remote machine.
func (c *Controller) SendClipboard(text string) error {
	return c.send(&protocol.ClipboardData{Text: text, Mime: "text/plain"})
}

// SetQuality requests a new capture quality/frame-rate/bitrate from the agent.
func (c *Controller) SetQuality(quality, maxFPS, bitrateKbps int) error {
	return c.send(&protocol.QualitySettings{Quality: quality, MaxFPS: maxFPS, BitrateKbps: bitrateKbps})
}

// SwitchMonitor requests the agent start capturing a different monitor.
func (c *Controller) SwitchMonitor(index int) error {
	return c.send(&protocol.MonitorSwitch{MonitorIndex: index})
}

// Ping measures round-trip latency; the server echoes it back as a Pong.
func (c *Controller) Ping(timestamp int64) error {
	return c.send(&protocol.Ping{Timestamp: timestamp})
}
