// Package sessionbroker lets the privileged agent process (root,
// SYSTEM, or a Windows service running in session 0) reach the
// interactive user's desktop session, which it cannot draw a dialog
// into directly. An unprivileged helper process, launched once per
// interactive login, connects back over internal/ipc and waits for
// consent-relay requests.
package sessionbroker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/screencontrol/core/internal/ipc"
)

const (
	// HandshakeTimeout bounds how long a connecting helper has to
	// complete auth before it's dropped.
	HandshakeTimeout = 5 * time.Second

	// IdleTimeout disconnects helpers that go quiet this long.
	IdleTimeout = 30 * time.Minute

	// MaxConnectionsPerIdentity limits concurrent helper connections
	// per identity (multiple logins of the same user, e.g. fast user
	// switching).
	MaxConnectionsPerIdentity = 3

	// RateLimitAttempts/RateLimitWindow bound connection attempts per
	// identity.
	RateLimitAttempts = 5
	RateLimitWindow   = 60 * time.Second

	// IdleCheckInterval is how often the reaper scans for idle
	// sessions.
	IdleCheckInterval = 60 * time.Second
)

// MessageHandler is invoked for any message from a helper that isn't
// a response to a pending SendCommand.
type MessageHandler func(session *Session, env *ipc.Envelope)

// Broker accepts and authenticates connections from per-session
// consent helpers.
type Broker struct {
	socketPath  string
	listener    net.Listener
	rateLimiter *ipc.RateLimiter

	mu         sync.RWMutex
	sessions   map[string]*Session
	byIdentity map[string][]*Session
	closed     bool

	onMessage MessageHandler
	selfHash  string
}

// New creates a broker listening on socketPath (a filesystem path on
// Unix, a named pipe path on Windows).
func New(socketPath string, onMessage MessageHandler) *Broker {
	b := &Broker{
		socketPath:  socketPath,
		rateLimiter: ipc.NewRateLimiter(RateLimitAttempts, RateLimitWindow),
		sessions:    make(map[string]*Session),
		byIdentity:  make(map[string][]*Session),
		onMessage:   onMessage,
	}
	b.selfHash = b.computeSelfHash()
	return b
}

// Listen starts accepting connections; blocks until stopChan closes.
func (b *Broker) Listen(stopChan <-chan struct{}) error {
	if err := b.setupSocket(); err != nil {
		return fmt.Errorf("sessionbroker: setup socket: %w", err)
	}

	log.Info("session broker listening", "path", b.socketPath)

	go b.idleReaper(stopChan)

	go func() {
		for {
			conn, err := b.listener.Accept()
			if err != nil {
				b.mu.RLock()
				closed := b.closed
				b.mu.RUnlock()
				if closed {
					return
				}
				log.Warn("accept error", "error", err)
				continue
			}
			go b.handleConnection(conn)
		}
	}()

	<-stopChan
	b.Close()
	return nil
}

// Close shuts down the broker and every connected session.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	sessions := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	if b.listener != nil {
		b.listener.Close()
	}
	if runtime.GOOS != "windows" {
		os.Remove(b.socketPath)
	}
	log.Info("session broker closed")
}

// SessionForIdentity returns the first connected helper session for an
// identity key (UID string on Unix, SID on Windows), or nil.
func (b *Broker) SessionForIdentity(key string) *Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if sessions, ok := b.byIdentity[key]; ok && len(sessions) > 0 {
		return sessions[0]
	}
	return nil
}

// SessionCount returns the number of connected helper sessions.
func (b *Broker) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// RequestConsent relays a consent prompt to the helper for the given
// identity and waits for its decision.
func (b *Broker) RequestConsent(id, identityKey string, req ipc.ConsentRequest, timeout time.Duration) (ipc.ConsentResponse, error) {
	session := b.SessionForIdentity(identityKey)
	if session == nil {
		return ipc.ConsentResponse{}, ErrNoHelperForSession
	}

	env, err := session.SendCommand(id, ipc.TypeConsentRequest, req, timeout)
	if err != nil {
		return ipc.ConsentResponse{}, err
	}

	var resp ipc.ConsentResponse
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return ipc.ConsentResponse{}, fmt.Errorf("sessionbroker: decode consent response: %w", err)
	}
	return resp, nil
}

func (b *Broker) handleConnection(rawConn net.Conn) {
	rawConn.SetDeadline(time.Now().Add(HandshakeTimeout))

	creds, err := ipc.GetPeerCredentials(rawConn)
	if err != nil {
		log.Warn("peer credential check failed", "error", err)
		rawConn.Close()
		return
	}
	identityKey := creds.IdentityKey()

	if !b.rateLimiter.Allow(identityKey) {
		log.Warn("connection rate limited", "identity", identityKey)
		rawConn.Close()
		return
	}

	b.mu.RLock()
	count := len(b.byIdentity[identityKey])
	b.mu.RUnlock()
	if count >= MaxConnectionsPerIdentity {
		log.Warn("max connections exceeded", "identity", identityKey)
		rawConn.Close()
		return
	}

	if !b.verifyBinaryPath(creds.BinaryPath) {
		log.Warn("binary path verification failed", "identity", identityKey, "path", creds.BinaryPath)
		rawConn.Close()
		return
	}

	conn := ipc.NewConn(rawConn)

	env, err := conn.Recv()
	if err != nil || env.Type != ipc.TypeAuthRequest {
		log.Warn("expected auth_request", "error", err)
		conn.Close()
		return
	}

	var authReq ipc.AuthRequest
	if err := json.Unmarshal(env.Payload, &authReq); err != nil {
		log.Warn("invalid auth request payload", "error", err)
		conn.Close()
		return
	}

	if identityMismatch(identityKey, creds, authReq) {
		log.Warn("auth identity mismatch", "claimed-sid", authReq.SID, "claimed-uid", authReq.UID)
		conn.SendTyped(env.ID, ipc.TypeAuthResponse, ipc.AuthResponse{Accepted: false, Reason: "identity mismatch"})
		conn.Close()
		return
	}

	if b.selfHash != "" && authReq.BinaryHash != b.selfHash {
		log.Warn("binary hash mismatch", "identity", identityKey)
		conn.SendTyped(env.ID, ipc.TypeAuthResponse, ipc.AuthResponse{Accepted: false, Reason: "binary hash mismatch"})
		conn.Close()
		return
	}

	sessionKey, err := ipc.GenerateSessionKey()
	if err != nil {
		log.Error("failed to generate session key", "error", err)
		conn.Close()
		return
	}

	if err := conn.SendTyped(env.ID, ipc.TypeAuthResponse, ipc.AuthResponse{
		Accepted:   true,
		SessionKey: hex.EncodeToString(sessionKey),
	}); err != nil {
		log.Warn("failed to send auth response", "error", err)
		conn.Close()
		return
	}
	conn.SetSessionKey(sessionKey)
	rawConn.SetDeadline(time.Time{})

	session := NewSession(conn, identityKey, authReq.Username, authReq.SessionID)

	b.mu.Lock()
	b.sessions[authReq.SessionID] = session
	b.byIdentity[identityKey] = append(b.byIdentity[identityKey], session)
	b.mu.Unlock()

	log.Info("consent helper connected", "identity", identityKey, "username", authReq.Username, "sessionId", authReq.SessionID)

	session.RecvLoop(func(s *Session, env *ipc.Envelope) {
		switch env.Type {
		case ipc.TypePing:
			s.conn.SendTyped(env.ID, ipc.TypePong, nil)
		case ipc.TypeDisconnect:
			s.Close()
		default:
			if b.onMessage != nil {
				b.onMessage(s, env)
			}
		}
	})

	b.removeSession(session)
	log.Info("consent helper disconnected", "identity", identityKey, "sessionId", session.SessionID)
}

func identityMismatch(identityKey string, creds *ipc.PeerCredentials, req ipc.AuthRequest) bool {
	if runtime.GOOS == "windows" {
		return req.SID == "" || req.SID != identityKey
	}
	return req.UID != creds.UID
}

func (b *Broker) removeSession(session *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, session.SessionID)
	sessions := b.byIdentity[session.IdentityKey]
	for i, s := range sessions {
		if s == session {
			b.byIdentity[session.IdentityKey] = append(sessions[:i], sessions[i+1:]...)
			break
		}
	}
	if len(b.byIdentity[session.IdentityKey]) == 0 {
		delete(b.byIdentity, session.IdentityKey)
	}
}

func (b *Broker) verifyBinaryPath(peerPath string) bool {
	expected, err := os.Executable()
	if err != nil {
		return false
	}
	expected, err = filepath.EvalSymlinks(expected)
	if err != nil {
		return false
	}
	peerResolved, err := filepath.EvalSymlinks(peerPath)
	if err != nil {
		peerResolved = peerPath
	}
	return filepath.Clean(expected) == filepath.Clean(peerResolved)
}

func (b *Broker) computeSelfHash() string {
	exePath, err := os.Executable()
	if err != nil {
		return ""
	}
	exePath, err = filepath.EvalSymlinks(exePath)
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(exePath)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (b *Broker) idleReaper(stopChan <-chan struct{}) {
	ticker := time.NewTicker(IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.reapIdleSessions()
		case <-stopChan:
			return
		}
	}
}

func (b *Broker) reapIdleSessions() {
	b.mu.RLock()
	var toClose []*Session
	for _, s := range b.sessions {
		if s.IdleDuration() > IdleTimeout {
			toClose = append(toClose, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range toClose {
		log.Info("disconnecting idle consent helper", "sessionId", s.SessionID, "idle", s.IdleDuration())
		s.Close()
		b.removeSession(s)
	}
}
