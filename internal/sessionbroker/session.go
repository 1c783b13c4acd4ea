package sessionbroker

import (
	"fmt"
	"sync"
	"time"

	"github.com/screencontrol/core/internal/ipc"
	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("sessionbroker")

// Session is a connected, authenticated per-session consent helper.
type Session struct {
	IdentityKey string
	Username    string
	SessionID   string
	ConnectedAt time.Time
	LastSeen    time.Time

	conn    *ipc.Conn
	mu      sync.Mutex
	pending map[string]chan *ipc.Envelope
}

// NewSession wraps an authenticated connection.
func NewSession(conn *ipc.Conn, identityKey, username, sessionID string) *Session {
	return &Session{
		IdentityKey: identityKey,
		Username:    username,
		SessionID:   sessionID,
		ConnectedAt: time.Now(),
		LastSeen:    time.Now(),
		conn:        conn,
		pending:     make(map[string]chan *ipc.Envelope),
	}
}

// SendCommand sends a request and blocks for the matching response or
// until timeout elapses.
func (s *Session) SendCommand(id, msgType string, payload any, timeout time.Duration) (*ipc.Envelope, error) {
	ch := make(chan *ipc.Envelope, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.conn.SendTyped(id, msgType, payload); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, fmt.Errorf("sessionbroker: session closed while waiting for response")
		}
		return resp, nil
	case <-time.After(timeout):
		return nil, ErrCommandTimeout
	}
}

// HandleResponse routes a received envelope to its pending command
// channel. Returns true if it matched one.
func (s *Session) HandleResponse(env *ipc.Envelope) bool {
	s.mu.Lock()
	ch, ok := s.pending[env.ID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- env:
	default:
		log.Warn("response channel full, dropping", "id", env.ID)
	}
	return true
}

// Touch records activity, resetting the idle timer.
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastSeen = time.Now()
	s.mu.Unlock()
}

// IdleDuration reports how long the session has been quiet.
func (s *Session) IdleDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastSeen)
}

// Close closes the connection and cancels any pending commands.
func (s *Session) Close() error {
	s.mu.Lock()
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	s.mu.Unlock()
	return s.conn.Close()
}

// RecvLoop reads envelopes until the connection closes, dispatching
// each to onMessage. Blocks the calling goroutine.
func (s *Session) RecvLoop(onMessage func(*Session, *ipc.Envelope)) {
	for {
		env, err := s.conn.Recv()
		if err != nil {
			log.Debug("session recv loop ended", "sessionId", s.SessionID, "error", err)
			return
		}
		s.Touch()
		if s.HandleResponse(env) {
			continue
		}
		onMessage(s, env)
	}
}
