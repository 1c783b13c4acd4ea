// Package viewerconn owns the viewer's single WebSocket connection to a
// session, reconnecting with exponential backoff and reporting connection
// lifecycle transitions on a channel so a UI layer can render them.
package viewerconn

import (
	"bytes"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/pkg/protocol"
)

var log = logging.L("viewerconn")

// Backoff is deterministic (1s, 2s, 4s, ... capped at 30s), unlike the
// agent-side session.Client's jittered backoff: connection.rs's own
// reconnect loop never jitters its retry delay, and the exact schedule
// is part of what a viewer-side caller can rely on.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	maxAttempts    = 20
)

// State is a connection lifecycle transition. The concrete types are
// Connected, Reconnecting, and Disconnected.
type State interface{ connState() }

// Connected reports a successful (re)connection.
type Connected struct{}

func (Connected) connState() {}

// Reconnecting reports that the connection dropped and a retry is
// scheduled in NextRetry.
type Reconnecting struct {
	Attempt   int
	NextRetry time.Duration
}

func (Reconnecting) connState() {}

// Disconnected reports that reconnection was abandoned or the session
// ended cleanly; Reason distinguishes the two in the UI.
type Disconnected struct {
	Reason string
}

func (Disconnected) connState() {}

type disconnectReason string

const reasonSessionEnded disconnectReason = "session_ended"

// Config holds the viewer's connection parameters.
type Config struct {
	ServerURL string
	SessionID string
	AuthToken string
}

// Handler processes envelopes the server sends to this viewer. It runs
// inline on the read pump, so it must not block on anything slower than
// decode/cache work — offload rendering elsewhere.
type Handler func(env *protocol.Envelope)

// Client manages the viewer's connection to a single session.
type Client struct {
	config  Config
	handler Handler

	conn   *websocket.Conn
	connMu sync.RWMutex

	send  chan *protocol.Envelope
	state chan State
	done  chan struct{}

	stopOnce  sync.Once
	runningMu sync.RWMutex
	isRunning bool
}

// New creates a viewer connection client. handler is invoked for every
// envelope the server sends for this session.
func New(cfg Config, handler Handler) *Client {
	return &Client{
		config:  cfg,
		handler: handler,
		send:    make(chan *protocol.Envelope, 64),
		state:   make(chan State, 16),
		done:    make(chan struct{}),
	}
}

// State returns the channel carrying connection-state transitions.
func (c *Client) State() <-chan State { return c.state }

// Start runs the reconnect loop until Stop is called. Blocking call; run
// it in its own goroutine.
func (c *Client) Start() {
	c.runningMu.Lock()
	if c.isRunning {
		c.runningMu.Unlock()
		return
	}
	c.isRunning = true
	c.runningMu.Unlock()

	c.reconnectLoop()
}

// Stop closes the connection and stops reconnection attempts.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.runningMu.Lock()
		c.isRunning = false
		c.runningMu.Unlock()

		close(c.done)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
		log.Info("viewer connection stopped")
	})
}

// Send enqueues an envelope for delivery. Non-blocking: returns an error
// if the send queue is full or the client has stopped.
func (c *Client) Send(env *protocol.Envelope) error {
	select {
	case c.send <- env:
		return nil
	case <-c.done:
		return fmt.Errorf("viewerconn: client is stopped")
	default:
		return fmt.Errorf("viewerconn: send queue full")
	}
}

func (c *Client) emit(s State) {
	select {
	case c.state <- s:
	default:
		log.Warn("state channel full, dropping transition")
	}
}

func (c *Client) connect() error {
	wsURL, err := c.buildWSURL()
	if err != nil {
		return fmt.Errorf("viewerconn: build url: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("viewerconn: dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	conn.SetReadLimit(protocol.MaxFrameSize)
	log.Info("connected", "server", c.config.ServerURL, "session", c.config.SessionID)
	return nil
}

func (c *Client) buildWSURL() (string, error) {
	serverURL, err := url.Parse(c.config.ServerURL)
	if err != nil {
		return "", err
	}

	switch serverURL.Scheme {
	case "https":
		serverURL.Scheme = "wss"
	case "http":
		serverURL.Scheme = "ws"
	}

	serverURL.Path = fmt.Sprintf("/ws/viewer/%s", c.config.SessionID)
	q := serverURL.Query()
	q.Set("token", c.config.AuthToken)
	serverURL.RawQuery = q.Encode()

	return serverURL.String(), nil
}

func (c *Client) reconnectLoop() {
	if err := c.connect(); err != nil {
		log.Warn("initial connection failed", "error", err)
		c.retryLoop(1)
		return
	}

	c.emit(Connected{})
	reason := c.runConnection()
	if reason == reasonSessionEnded {
		c.emit(Disconnected{Reason: "session ended"})
		return
	}

	c.retryLoop(1)
}

func (c *Client) retryLoop(startAttempt int) {
	backoff := initialBackoff
	attempt := startAttempt

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if attempt > maxAttempts {
			log.Warn("giving up reconnecting", "attempts", maxAttempts)
			c.emit(Disconnected{Reason: fmt.Sprintf("failed after %d attempts", maxAttempts)})
			return
		}

		c.emit(Reconnecting{Attempt: attempt, NextRetry: backoff})

		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		if err := c.connect(); err != nil {
			log.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			attempt++
			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		attempt = 1
		backoff = initialBackoff
		c.emit(Connected{})

		reason := c.runConnection()
		if reason == reasonSessionEnded {
			c.emit(Disconnected{Reason: "session ended"})
			return
		}

		c.runningMu.RLock()
		running := c.isRunning
		c.runningMu.RUnlock()
		if !running {
			return
		}
		log.Info("connection lost again")
	}
}

func (c *Client) runConnection() disconnectReason {
	done := make(chan struct{})
	go c.writePump(done)
	reason := c.readPump()
	close(done)
	return reason
}

func (c *Client) readPump() disconnectReason {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return ""
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read error", "error", err)
			}
			return ""
		}

		env, err := protocol.Decode(bytes.NewReader(message))
		if err != nil {
			log.Warn("failed to decode envelope", "error", err)
			continue
		}

		if _, ok := env.Payload.(*protocol.SessionEnd); ok {
			c.handler(env)
			return reasonSessionEnded
		}

		c.handler(env)
	}
}

func (c *Client) writePump(done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.done:
			return

		case env := <-c.send:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()
			if conn == nil {
				continue
			}

			var buf bytes.Buffer
			if err := protocol.Encode(&buf, env); err != nil {
				log.Warn("failed to encode envelope", "error", err)
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
				log.Warn("write error", "error", err)
				return
			}

		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()
			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
