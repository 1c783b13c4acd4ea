package desktop

import (
	"context"
	"fmt"
	"sync"

	"github.com/screencontrol/core/pkg/protocol"
)

// AudioCapturer captures system audio and hands raw interleaved f32
// PCM frames at its native rate/channel count to the callback. A real
// backend (WASAPI loopback, PulseAudio monitor source, CoreAudio
// input) needs platform-specific device-enumeration and buffer-pull
// machinery too fragile to reproduce correctly without a compiler to
// check it against (see DESIGN.md); newAudioCapturer currently
// returns ErrNotSupported on every build so the rest of this pipeline
// — resampling, Opus framing, session wiring — is built and testable
// against a fake capturer now, with the real device backend a
// contained, clearly-scoped follow-up.
type AudioCapturer interface {
	Start(callback func(pcm []float32, sampleRate, channels int)) error
	Stop()
}

// AudioSession owns one audio capture-resample-encode loop for one
// viewer session, mirroring Session's role for video.
type AudioSession struct {
	sessionID string
	sender    Sender
	capturer  AudioCapturer
	encoder   OpusEncoder

	mu       sync.Mutex
	buf      []float32
	sequence uint64
}

// NewAudioSession wires a capturer and Opus encoder into a session
// sender. bitrateBps is typically 64000 per the 64kbps target.
func NewAudioSession(sessionID string, sender Sender, capturer AudioCapturer, bitrateBps int) *AudioSession {
	return &AudioSession{
		sessionID: sessionID,
		sender:    sender,
		capturer:  capturer,
		encoder:   newOpusEncoder(bitrateBps),
	}
}

// Start begins capturing and streaming audio. Returns immediately;
// frames are delivered asynchronously from the capturer's own
// callback goroutine.
func (s *AudioSession) Start() error {
	return s.capturer.Start(s.onPCM)
}

// Stop halts capture and releases the encoder.
func (s *AudioSession) Stop() {
	s.capturer.Stop()
	_ = s.encoder.Close()
}

func (s *AudioSession) onPCM(pcm []float32, sampleRate, channels int) {
	resampled := resampleLinear(pcm, sampleRate, channels)
	if len(resampled) == 0 {
		return
	}

	frameLen := opusFrameSamples() * targetChannels

	s.mu.Lock()
	s.buf = append(s.buf, resampled...)
	var frames [][]float32
	for len(s.buf) >= frameLen {
		frames = append(frames, append([]float32(nil), s.buf[:frameLen]...))
		s.buf = s.buf[frameLen:]
	}
	s.mu.Unlock()

	for _, frame := range frames {
		if err := s.encodeAndSend(frame); err != nil {
			log.Warn("audio encode/send failed", "session", s.sessionID, "error", err)
		}
	}
}

func (s *AudioSession) encodeAndSend(frame []float32) error {
	data, err := s.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	s.mu.Lock()
	s.sequence++
	seq := s.sequence
	s.mu.Unlock()

	af := &protocol.AudioFrame{
		Data:       data,
		SampleRate: targetSampleRate,
		Channels:   targetChannels,
		Sequence:   seq,
	}
	return s.sender.Send(&protocol.Envelope{SessionID: s.sessionID, Payload: af})
}

// WaitContext blocks until ctx is done, then stops the session. A
// thin convenience for callers that manage audio session lifetime
// through a context rather than an explicit Stop call.
func WaitContext(ctx context.Context, s *AudioSession) {
	<-ctx.Done()
	s.Stop()
}
