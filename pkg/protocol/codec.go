package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedFrame is returned when a frame cannot be decoded into a
// known envelope shape.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// ErrOversizedFrame is returned when a frame's declared length exceeds
// MaxFrameSize, before any read of the body is attempted.
var ErrOversizedFrame = errors.New("protocol: oversized frame")

// wireEnvelope is the on-the-wire JSON shape: Payload is flattened into
// Kind + a raw body so the concrete variant type can be resolved on decode.
type wireEnvelope struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Timestamp *int64          `json:"timestamp,omitempty"`
	Kind      string          `json:"kind"`
	Body      json.RawMessage `json:"body"`
}

var payloadConstructors = map[string]func() Payload{
	"agent-registration":      func() Payload { return &AgentRegistration{} },
	"agent-registration-ack":  func() Payload { return &AgentRegistrationAck{} },
	"agent-info":               func() Payload { return &AgentInfo{} },
	"heartbeat":                func() Payload { return &Heartbeat{} },
	"heartbeat-ack":            func() Payload { return &HeartbeatAck{} },
	"session-request":          func() Payload { return &SessionRequest{} },
	"session-offer":            func() Payload { return &SessionOffer{} },
	"session-answer":           func() Payload { return &SessionAnswer{} },
	"ice-candidate":            func() Payload { return &ICECandidate{} },
	"consent-response":         func() Payload { return &ConsentResponse{} },
	"session-end":              func() Payload { return &SessionEnd{} },
	"screen-info":              func() Payload { return &ScreenInfo{} },
	"desktop-frame":            func() Payload { return &DesktopFrame{} },
	"cursor-data":              func() Payload { return &CursorData{} },
	"cursor-position":          func() Payload { return &CursorPosition{} },
	"audio-frame":              func() Payload { return &AudioFrame{} },
	"input-event":              func() Payload { return &InputEvent{} },
	"terminal-data":            func() Payload { return &TerminalData{} },
	"terminal-resize":          func() Payload { return &TerminalResize{} },
	"command-request":          func() Payload { return &CommandRequest{} },
	"command-response":         func() Payload { return &CommandResponse{} },
	"file-list-request":        func() Payload { return &FileListRequest{} },
	"file-list":                func() Payload { return &FileList{} },
	"file-transfer-request":    func() Payload { return &FileTransferRequest{} },
	"file-transfer-ack":        func() Payload { return &FileTransferAck{} },
	"file-chunk":               func() Payload { return &FileChunk{} },
	"chat-message":             func() Payload { return &ChatMessage{} },
	"ping":                     func() Payload { return &Ping{} },
	"pong":                     func() Payload { return &Pong{} },
	"quality-settings":         func() Payload { return &QualitySettings{} },
	"monitor-switch":           func() Payload { return &MonitorSwitch{} },
	"clipboard-data":           func() Payload { return &ClipboardData{} },
}

// Encode serializes an envelope as a 4-byte big-endian length prefix
// followed by a JSON body, and writes it to w.
func Encode(w io.Writer, env *Envelope) error {
	if env.Payload == nil {
		return fmt.Errorf("protocol: encode: %w: nil payload", ErrMalformedFrame)
	}

	body, err := json.Marshal(env.Payload)
	if err != nil {
		return fmt.Errorf("protocol: encode body: %w", err)
	}

	wire := wireEnvelope{
		ID:        env.ID,
		SessionID: env.SessionID,
		Kind:      env.Payload.Kind(),
		Body:      body,
	}
	if env.Timestamp != nil {
		unixNano := env.Timestamp.UnixNano()
		wire.Timestamp = &unixNano
	}

	buf, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("protocol: encode envelope: %w", err)
	}
	if len(buf) > MaxFrameSize {
		return fmt.Errorf("protocol: encode: %w: %d bytes", ErrOversizedFrame, len(buf))
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(buf)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("protocol: write length prefix: %w", err)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write body: %w", err)
	}
	return nil
}

// Decode reads one length-prefixed frame from r and resolves it into an
// Envelope with a concrete Payload variant.
func Decode(r io.Reader) (*Envelope, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("protocol: decode: %w: %d bytes", ErrOversizedFrame, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("protocol: decode: %w: %v", ErrMalformedFrame, err)
	}

	var wire wireEnvelope
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("protocol: decode: %w: %v", ErrMalformedFrame, err)
	}

	construct, ok := payloadConstructors[wire.Kind]
	if !ok {
		return nil, fmt.Errorf("protocol: decode: %w: unknown kind %q", ErrMalformedFrame, wire.Kind)
	}

	payload := construct()
	if len(wire.Body) > 0 {
		if err := json.Unmarshal(wire.Body, payload); err != nil {
			return nil, fmt.Errorf("protocol: decode: %w: %v", ErrMalformedFrame, err)
		}
	}

	env := &Envelope{
		ID:        wire.ID,
		SessionID: wire.SessionID,
		Payload:   payload,
	}
	if wire.Timestamp != nil {
		ts := unixNanoToTime(*wire.Timestamp)
		env.Timestamp = &ts
	}
	return env, nil
}

// NewDecoder wraps r in a buffered reader so repeated Decode calls on a
// stream socket don't each pay a syscall for the 4-byte length prefix.
func NewDecoder(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 64*1024)
}
