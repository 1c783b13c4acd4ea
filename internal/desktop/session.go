package desktop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/screencontrol/core/pkg/protocol"
)

// Sender delivers outbound envelopes for a session. Satisfied by
// *session.Client on the agent.
type Sender interface {
	Send(env *protocol.Envelope) error
}

// Session owns one desktop capture-and-encode loop for one viewer
// session. It does not own a peer-to-peer media transport: frames are
// always relayed through the server's envelope multiplexer, never a
// direct agent-viewer data channel.
type Session struct {
	sessionID string
	sender    Sender
	capturer  ScreenCapturer
	encoder   VideoEncoder
	differ    *frameDiffer
	quality   *qualityState
	codec     protocol.Codec

	sequence uint64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSession starts no goroutines; call Run to start the capture loop.
func NewSession(sessionID string, sender Sender, capturer ScreenCapturer, codec protocol.Codec, initial Settings) (*Session, error) {
	vc := CodecJPEG
	if codec == protocol.CodecH264 {
		vc = CodecH264
	}

	w, h, err := capturer.GetScreenBounds()
	if err != nil {
		return nil, fmt.Errorf("desktop: get screen bounds: %w", err)
	}

	enc, err := NewVideoEncoder(EncoderConfig{
		Codec:       vc,
		Width:       w,
		Height:      h,
		Quality:     initial.Quality,
		BitrateKbps: initial.BitrateKbps,
		FPS:         initial.MaxFPS,
	})
	if err != nil {
		return nil, fmt.Errorf("desktop: new video encoder: %w", err)
	}

	return &Session{
		sessionID: sessionID,
		sender:    sender,
		capturer:  capturer,
		encoder:   enc,
		differ:    newFrameDiffer(),
		quality:   newQualityState(initial),
		codec:     codec,
		stop:      make(chan struct{}),
	}, nil
}

// SetQuality updates the live settings the capture loop reads each
// tick, and pushes the new quality/bitrate/fps onto the encoder.
func (s *Session) SetQuality(settings Settings) {
	s.quality.Set(settings)
	_ = s.encoder.SetQuality(settings.Quality)
	_ = s.encoder.SetBitrate(settings.BitrateKbps)
	_ = s.encoder.SetFPS(settings.MaxFPS)
}

// RequestKeyframe forces the next captured frame to be encoded and
// sent even if unchanged, used after a monitor switch or a viewer
// reconnect.
func (s *Session) RequestKeyframe() {
	s.differ.Reset()
}

// Run drives the capture loop until ctx is canceled or Stop is
// called. Blocking; run it in its own goroutine.
func (s *Session) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	for {
		settings := s.quality.Get()
		interval := time.Duration(settings.frameIntervalMillis()) * time.Millisecond

		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-time.After(interval):
		}

		if err := s.captureAndSend(); err != nil {
			log.Warn("capture/send failed", "session", s.sessionID, "error", err)
		}
	}
}

func (s *Session) captureAndSend() error {
	img, err := s.capturer.Capture()
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	if !s.differ.HasChanged(img.Pix) {
		return nil
	}

	data, isKeyframe, err := s.encoder.Encode(img)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	s.sequence++
	frame := &protocol.DesktopFrame{
		Data:       data,
		Sequence:   s.sequence,
		Codec:      s.codec,
		IsKeyframe: isKeyframe,
		Quality:    s.quality.Get().Quality,
	}
	if s.codec == protocol.CodecJPEG {
		frame.Width = img.Bounds().Dx()
		frame.Height = img.Bounds().Dy()
	}

	return s.sender.Send(&protocol.Envelope{SessionID: s.sessionID, Payload: frame})
}

// Stop halts the capture loop and releases the capturer/encoder.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
	_ = s.encoder.Close()
	_ = s.capturer.Close()
}

// SessionManager tracks the one active desktop Session per sessionID
// on an agent (an agent serves exactly one live desktop viewer session
// at a time per the multiplexer's session model, but multiple session
// IDs may be created and torn down over the agent's lifetime).
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager returns an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Start creates and runs a new desktop session, replacing any existing
// session with the same ID.
func (m *SessionManager) Start(ctx context.Context, sessionID string, sender Sender, capturer ScreenCapturer, codec protocol.Codec, initial Settings) (*Session, error) {
	sess, err := NewSession(sessionID, sender, capturer, codec, initial)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if old, ok := m.sessions[sessionID]; ok {
		old.Stop()
	}
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	go sess.Run(ctx)
	return sess, nil
}

// Get returns the active session for sessionID, if any.
func (m *SessionManager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Stop tears down the session for sessionID, if any.
func (m *SessionManager) Stop(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		sess.Stop()
	}
}
