// Package session is the agent-side multiplexer: it owns the single
// WebSocket connection to the server, frames every outbound message as a
// protocol envelope, reconnects with jittered exponential backoff, and
// dispatches inbound envelopes to a Handler through a bounded worker pool.
package session

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/internal/workerpool"
	"github.com/screencontrol/core/pkg/protocol"
)

var log = logging.L("session")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3
)

// Config holds the connection parameters for the agent's session client.
type Config struct {
	ServerURL   string
	AgentID     string
	TenantToken string

	// TLSClientConfig, if set, is used for the WebSocket dialer's
	// underlying TLS handshake. Built via internal/mtls.ClientConfig
	// when the deployment has mTLS configured; nil falls back to the
	// dialer's default (public CA pool, no client certificate).
	TLSClientConfig *tls.Config

	// OnConnect, if set, runs once per successful (re)connect, before
	// any inbound envelope is dispatched. The agent uses it to send an
	// AgentRegistration so the server re-learns machine/version info
	// after every reconnect, not just the first one.
	OnConnect func()
}

// Handler processes envelopes the server sends to this agent. Dispatch
// happens on a worker-pool goroutine, never on the read pump itself, so a
// slow handler cannot stall the WebSocket read loop.
type Handler func(env *protocol.Envelope)

// Client manages the agent's single multiplexed connection to the server.
type Client struct {
	config  Config
	handler Handler
	pool    *workerpool.Pool

	conn   *websocket.Conn
	connMu sync.RWMutex

	send     chan *protocol.Envelope
	done     chan struct{}
	stopOnce sync.Once

	runningMu sync.RWMutex
	isRunning bool
}

// New creates a session client. handler is invoked for every envelope the
// server sends; it is dispatched through a small worker pool so handlers
// may block (e.g. waiting on consent) without starving other traffic.
func New(cfg Config, handler Handler) *Client {
	return &Client{
		config:  cfg,
		handler: handler,
		pool:    workerpool.New("session-dispatch", 4, 256),
		send:    make(chan *protocol.Envelope, 256),
		done:    make(chan struct{}),
	}
}

// Start runs the reconnect loop until Stop is called. Blocking call;
// run it in its own goroutine.
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

// Stop closes the connection and drains the dispatch pool.
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

		c.pool.StopAccepting()
		c.pool.Drain(context.Background())
		log.Info("session client stopped")
	})
}

// Send enqueues an envelope for delivery. Non-blocking: returns an error
// if the send queue is full or the client has stopped.
func (c *Client) Send(env *protocol.Envelope) error {
	select {
	case c.send <- env:
		return nil
	case <-c.done:
		return fmt.Errorf("session: client is stopped")
	default:
		return fmt.Errorf("session: send queue full")
	}
}

func (c *Client) connect() error {
	wsURL, err := c.buildWSURL()
	if err != nil {
		return fmt.Errorf("session: build url: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second, TLSClientConfig: c.config.TLSClientConfig}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("session: dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	conn.SetReadLimit(protocol.MaxFrameSize)
	log.Info("connected", "server", c.config.ServerURL)
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

	serverURL.Path = fmt.Sprintf("/ws/agent/%s", c.config.AgentID)
	q := serverURL.Query()
	q.Set("token", c.config.TenantToken)
	serverURL.RawQuery = q.Encode()

	return serverURL.String(), nil
}

func (c *Client) reconnectLoop() {
	backoff := initialBackoff

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.connect(); err != nil {
			log.Warn("connection failed", "error", err)

			jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
			sleep := backoff + jitter
			if sleep < 0 {
				sleep = backoff
			}

			log.Info("retrying", "delay", sleep)
			select {
			case <-c.done:
				return
			case <-time.After(sleep):
			}

			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff

		if c.config.OnConnect != nil {
			c.config.OnConnect()
		}

		done := make(chan struct{})
		go c.writePump(done)
		c.readPump()
		close(done)

		c.runningMu.RLock()
		running := c.isRunning
		c.runningMu.RUnlock()
		if !running {
			return
		}
	}
}

func (c *Client) readPump() {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return
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
			return
		}

		env, err := protocol.Decode(bytes.NewReader(message))
		if err != nil {
			log.Warn("failed to decode envelope", "error", err)
			continue
		}

		envelope := env
		c.pool.Submit(envelope.Payload.Kind(), func() { c.handler(envelope) })
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
