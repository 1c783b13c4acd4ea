// Package pty bridges a remote-control session to a local shell process
// through a pseudo-terminal, one session per active remote session ID.
package pty

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("pty")

// Session is one shell process bound to a remote session ID.
type Session struct {
	ID    string
	Cols  uint16
	Rows  uint16
	Shell string

	pty      *os.File
	cmd      *exec.Cmd
	mu       sync.Mutex
	closed   bool
	onOutput func(data []byte)
	onClose  func(err error)
}

// Manager owns every active terminal session on the agent, keyed by the
// remote session ID that requested it.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Start spawns a shell bound to sessionID. onOutput is called for every
// chunk of shell output; onClose is called once, when the shell exits or
// the PTY errors.
func (m *Manager) Start(sessionID string, cols, rows uint16, shell string, onOutput func(data []byte), onClose func(err error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; exists {
		return fmt.Errorf("pty: session %s already exists", sessionID)
	}

	if shell == "" {
		shell = defaultShell()
	}

	session := &Session{
		ID:       sessionID,
		Cols:     cols,
		Rows:     rows,
		Shell:    shell,
		onOutput: onOutput,
		onClose:  onClose,
	}

	if err := session.start(); err != nil {
		return fmt.Errorf("pty: start shell: %w", err)
	}

	m.sessions[sessionID] = session
	log.Info("terminal session started", "sessionId", sessionID, "shell", shell, "cols", cols, "rows", rows)
	return nil
}

// Write sends keystroke data to a session's shell stdin.
func (m *Manager) Write(sessionID string, data []byte) error {
	m.mu.RLock()
	session, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("pty: session %s not found", sessionID)
	}
	return session.write(data)
}

// Resize changes a session's terminal window dimensions.
func (m *Manager) Resize(sessionID string, cols, rows uint16) error {
	m.mu.RLock()
	session, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("pty: session %s not found", sessionID)
	}
	return session.resize(cols, rows)
}

// Stop terminates and removes a session.
func (m *Manager) Stop(sessionID string) error {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if exists {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("pty: session %s not found", sessionID)
	}
	return session.close()
}

// Count returns the number of active terminal sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll terminates every active session, e.g. on agent shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (s *Session) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("pty: session is closed")
	}
	if s.pty == nil {
		return fmt.Errorf("pty: not available")
	}
	_, err := s.pty.Write(data)
	return err
}

func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var closeErr error
	if s.pty != nil {
		if err := s.pty.Close(); err != nil {
			closeErr = err
		}
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}

	log.Debug("terminal session closed", "sessionId", s.ID)
	return closeErr
}

func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.pty.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Warn("terminal read error", "sessionId", s.ID, "error", err)
			}
			if s.onClose != nil {
				s.onClose(err)
			}
			return
		}
		if n > 0 && s.onOutput != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.onOutput(data)
		}
	}
}

func defaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return platformDefaultShell()
}
