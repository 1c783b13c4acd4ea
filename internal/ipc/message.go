// Package ipc is the local transport between the privileged agent
// process and a per-session helper running in the interactive user's
// desktop session. The agent process (root / SYSTEM / a Windows
// service) cannot itself pop a dialog into that session, so it relays
// requests over a Unix-domain socket (or named pipe on Windows) to a
// small unprivileged helper that can.
package ipc

import "encoding/json"

// Message type constants.
const (
	TypeAuthRequest     = "auth_request"
	TypeAuthResponse    = "auth_response"
	TypeConsentRequest  = "consent_request"
	TypeConsentResponse = "consent_response"
	TypePing            = "ping"
	TypePong            = "pong"
	TypeDisconnect      = "disconnect"
)

// MaxMessageSize is the maximum size of a JSON IPC message (1MB — these
// messages carry nothing larger than a consent prompt).
const MaxMessageSize = 1 * 1024 * 1024

// ProtocolVersion is the current IPC wire protocol version.
const ProtocolVersion = 1

// Envelope is the wire-format wrapper for all IPC messages.
type Envelope struct {
	ID      string          `json:"id"`
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error,omitempty"`
	HMAC    string          `json:"hmac"`
}

// AuthRequest is sent by the helper to the agent process right after
// connecting, asserting the identity the kernel already attributed to
// the socket peer.
type AuthRequest struct {
	ProtocolVersion int    `json:"protocolVersion"`
	UID             uint32 `json:"uid"`
	SID             string `json:"sid,omitempty"`
	Username        string `json:"username"`
	SessionID       string `json:"sessionId"`
	PID             int    `json:"pid"`
	BinaryHash      string `json:"binaryHash"`
}

// AuthResponse is the agent process's reply to an AuthRequest.
type AuthResponse struct {
	Accepted   bool   `json:"accepted"`
	SessionKey string `json:"sessionKey,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ConsentRequest asks the helper to show a consent dialog in its
// session on behalf of a remote viewer.
type ConsentRequest struct {
	Requester   string `json:"requester"`
	SessionType string `json:"sessionType"`
	TimeoutSecs uint64 `json:"timeoutSecs"`
}

// ConsentResponse carries the local user's decision back to the agent
// process. Result is one of "granted", "denied", "timed_out".
type ConsentResponse struct {
	Result string `json:"result"`
}
