// Package protocol implements the wire format shared by the agent, server,
// and viewer: a length-delimited binary envelope carrying exactly one
// payload variant from a closed set.
package protocol

import "time"

// Version is bumped on breaking wire changes.
const Version = 1

// DefaultHeartbeatInterval is the agent's heartbeat cadence before the
// server negotiates a different one via HeartbeatAck.
const DefaultHeartbeatInterval = 30 * time.Second

// MaxFrameSize is the largest envelope the codec will decode.
const MaxFrameSize = 10 << 20 // 10 MiB

// SessionType enumerates the kinds of session a viewer can request.
type SessionType int

const (
	SessionDesktop SessionType = iota + 1
	SessionTerminal
	SessionFileTransfer
	SessionChat
)

func (t SessionType) String() string {
	switch t {
	case SessionDesktop:
		return "desktop"
	case SessionTerminal:
		return "terminal"
	case SessionFileTransfer:
		return "file-transfer"
	case SessionChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Codec enumerates the video codecs a desktop-frame may carry.
type Codec int

const (
	CodecJPEG Codec = iota
	CodecH264
)

func (c Codec) String() string {
	if c == CodecH264 {
		return "h264"
	}
	return "jpeg"
}

// Envelope is the single wire unit. Exactly one of the Payload variants is
// populated; Kind reports which.
type Envelope struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Payload   Payload    `json:"-"`
}

// Payload is implemented by every wire variant struct in payloads.go.
type Payload interface {
	Kind() string
}
