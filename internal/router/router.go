// Package router implements the server's payload-transparent message
// routing: it decodes just enough of an envelope to decide where it goes,
// then forwards the original byte buffer unmodified for hot-path data
// (video, audio, input) instead of re-encoding a decoded copy.
package router

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/internal/registry"
	"github.com/screencontrol/core/internal/updatepolicy"
	"github.com/screencontrol/core/pkg/protocol"
)

var log = logging.L("router")

// Store is the subset of server-side persistence the router needs.
// Implemented by internal/store against Postgres.
type Store interface {
	UpsertAgent(ctx context.Context, agentID, machineName, os, osVersion, arch, agentVersion string) error
	TouchAgentLastSeen(ctx context.Context, agentID string) error
	MarkAgentOffline(ctx context.Context, agentID string) error
	UpdateSessionStatus(ctx context.Context, sessionID, status string) error
	EndSession(ctx context.Context, sessionID string) error
	InsertChatMessage(ctx context.Context, sessionID, agentID, senderType, senderName, content string) error
	TenantIDForEnrollmentToken(ctx context.Context, token string) (string, bool, error)
	AssignAgentToGroup(ctx context.Context, agentID, tenantID, groupName string) error
}

// ObjectStore is the subset of presigned-URL issuance the file-transfer
// gateway needs. Implemented by internal/objectstore against whichever
// cloud backend is configured.
type ObjectStore interface {
	PresignedUploadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignedDownloadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// IDGenerator produces new unique IDs (transfer IDs when the viewer omits
// one, envelope IDs for server-synthesized messages).
type IDGenerator func() string

// Router wires the connection registry to persistence and object storage.
type Router struct {
	Registry    *registry.Registry
	Store       Store
	ObjectStore ObjectStore
	Bucket      string
	NewID       IDGenerator

	ThumbnailInterval time.Duration
	HeartbeatInterval time.Duration

	// Policy gates agent auto-update rollout. Nil disables update hints
	// entirely, matching how Thumbnailer/Updater being nil disables
	// their features on the agent side.
	Policy *updatepolicy.Policy
}

// HandleAgentFrame decodes one frame received from an agent's connection
// and routes it: most payload kinds are forwarded byte-for-byte to the
// session's viewer; a handful are intercepted to update server state.
func (r *Router) HandleAgentFrame(ctx context.Context, agentID string, raw []byte) {
	env, err := protocol.Decode(bytes.NewReader(raw))
	if err != nil {
		log.Warn("failed to decode agent frame", "agentId", agentID, "error", err)
		return
	}

	switch p := env.Payload.(type) {
	case *protocol.AgentRegistration:
		r.handleAgentRegistration(ctx, p)
		return

	case *protocol.Heartbeat:
		r.handleHeartbeat(ctx, agentID, p)
		return

	case *protocol.AgentInfo:
		r.handleAgentInfo(p)
		return

	case *protocol.DesktopFrame:
		ok := r.Registry.SendToViewer(env.SessionID, raw)
		log.Debug("desktop frame relay", "sessionId", env.SessionID, "sequence", p.Sequence, "bytes", len(raw), "relayOk", ok)
		return

	case *protocol.ChatMessage:
		if err := r.Store.InsertChatMessage(ctx, env.SessionID, agentID, "agent", p.SenderName, p.Content); err != nil {
			log.Warn("failed to persist chat message", "error", err)
		}
		r.Registry.SendToViewer(env.SessionID, raw)
		return

	case *protocol.SessionOffer, *protocol.SessionAnswer, *protocol.ICECandidate,
		*protocol.TerminalData, *protocol.ScreenInfo, *protocol.FileTransferAck,
		*protocol.FileChunk, *protocol.FileList, *protocol.CommandResponse,
		*protocol.CursorData, *protocol.CursorPosition, *protocol.AudioFrame,
		*protocol.ConsentResponse, *protocol.SessionEnd, *protocol.ClipboardData, *protocol.Pong:
		r.Registry.SendToViewer(env.SessionID, raw)
		return

	default:
		log.Debug("unhandled agent payload type", "kind", env.Payload.Kind())
	}
}

// HandleViewerFrame decodes one frame received from a viewer's connection
// bound to sessionID and routes it to the session's agent, intercepting
// file-transfer requests (to mint presigned URLs), chat (to persist), and
// session-end (to tear down the binding).
func (r *Router) HandleViewerFrame(ctx context.Context, sessionID string, raw []byte, viewerTx registry.Sender) {
	env, err := protocol.Decode(bytes.NewReader(raw))
	if err != nil {
		log.Warn("failed to decode viewer frame", "sessionId", sessionID, "error", err)
		return
	}

	switch p := env.Payload.(type) {
	case *protocol.FileTransferRequest:
		r.handleFileTransferRequest(ctx, sessionID, p, viewerTx)
		return

	case *protocol.ChatMessage:
		if agentID, ok := r.Registry.AgentForSession(sessionID); ok {
			if err := r.Store.InsertChatMessage(ctx, sessionID, agentID, "tech", p.SenderName, p.Content); err != nil {
				log.Warn("failed to persist chat message", "error", err)
			}
		}
		r.Registry.SendToSessionAgent(sessionID, raw)
		return

	case *protocol.SessionEnd:
		r.Registry.SendToSessionAgent(sessionID, raw)
		if err := r.Store.EndSession(ctx, sessionID); err != nil {
			log.Warn("failed to mark session ended", "sessionId", sessionID, "error", err)
		}
		r.Registry.UnbindSession(sessionID)
		return

	case *protocol.SessionRequest, *protocol.SessionOffer, *protocol.SessionAnswer, *protocol.ICECandidate,
		*protocol.TerminalData, *protocol.TerminalResize, *protocol.InputEvent,
		*protocol.FileChunk, *protocol.FileListRequest, *protocol.CommandRequest,
		*protocol.QualitySettings, *protocol.MonitorSwitch, *protocol.ClipboardData, *protocol.Ping:
		r.Registry.SendToSessionAgent(sessionID, raw)
		return

	default:
		log.Debug("unhandled viewer payload type", "kind", env.Payload.Kind())
	}
}

// OnViewerAttached runs the on-attach side effects the spec requires:
// mark the session active, bypass the normal thumbnail gate for an
// immediate capture, and tell the agent where to upload it.
func (r *Router) OnViewerAttached(ctx context.Context, sessionID, agentID string) {
	if err := r.Store.UpdateSessionStatus(ctx, sessionID, "active"); err != nil {
		log.Warn("failed to mark session active", "error", err)
	}

	r.Registry.MarkThumbnailSent(agentID)

	ack := &protocol.Envelope{
		ID: r.NewID(),
		Payload: &protocol.HeartbeatAck{
			IntervalSecs:       uint32(r.HeartbeatInterval.Seconds()),
			ThumbnailUploadURL: fmt.Sprintf("/api/agents/%s/thumbnail/upload", agentID),
		},
	}
	var buf bytes.Buffer
	if err := protocol.Encode(&buf, ack); err != nil {
		log.Warn("failed to encode synthetic heartbeat ack", "error", err)
		return
	}
	r.Registry.SendToAgent(agentID, buf.Bytes())
}

// OnViewerDisconnected runs the teardown side effects when a viewer
// disconnects without sending SessionEnd: the agent must still be told
// the session is over, and the lookup must happen before unbinding.
func (r *Router) OnViewerDisconnected(ctx context.Context, sessionID string) {
	agentID, ok := r.Registry.AgentForSession(sessionID)

	if err := r.Store.UpdateSessionStatus(ctx, sessionID, "ended"); err != nil {
		log.Warn("failed to mark session ended on viewer disconnect", "error", err)
	}

	if ok {
		end := &protocol.Envelope{
			ID:        r.NewID(),
			SessionID: sessionID,
			Payload:   &protocol.SessionEnd{Reason: "console_disconnected"},
		}
		var buf bytes.Buffer
		if err := protocol.Encode(&buf, end); err == nil {
			r.Registry.SendToAgent(agentID, buf.Bytes())
		}
	}

	r.Registry.UnbindSession(sessionID)
}

// handleAgentRegistration resolves the agent's tenant from its enrollment
// token, upserts its identity and group membership, records its
// version/arch on the registry entry so later heartbeats can be evaluated
// against the update policy, and acks back success or failure.
func (r *Router) handleAgentRegistration(ctx context.Context, reg *protocol.AgentRegistration) {
	var assignedID string
	success := true
	message := "registered"

	tenantID, ok, err := r.Store.TenantIDForEnrollmentToken(ctx, reg.TenantToken)
	if err != nil || !ok {
		success = false
		message = "invalid tenant token"
		log.Warn("agent registration rejected", "agentId", reg.AgentID, "error", err, "tokenValid", ok)
	} else {
		assignedID = tenantID
		if err := r.Store.UpsertAgent(ctx, reg.AgentID, reg.MachineName, reg.OS, reg.OSVersion, reg.Arch, reg.AgentVersion); err != nil {
			success = false
			message = "failed to persist agent identity"
			log.Warn("failed to upsert agent", "agentId", reg.AgentID, "error", err)
		} else if reg.GroupName != "" {
			if err := r.Store.AssignAgentToGroup(ctx, reg.AgentID, tenantID, reg.GroupName); err != nil {
				log.Warn("failed to assign agent to group", "agentId", reg.AgentID, "group", reg.GroupName, "error", err)
			}
		}
	}

	if success {
		existing, ok := r.Registry.AgentMetricsFor(reg.AgentID)
		if !ok {
			existing = registry.AgentMetrics{}
		}
		existing.AgentVersion = reg.AgentVersion
		existing.GroupName = reg.GroupName
		existing.PlatformArch = reg.Arch
		r.Registry.UpdateAgentMetrics(reg.AgentID, existing)
	}

	ack := &protocol.Envelope{
		ID: r.NewID(),
		Payload: &protocol.AgentRegistrationAck{
			Success:    success,
			Message:    message,
			AssignedID: assignedID,
		},
	}
	var buf bytes.Buffer
	if err := protocol.Encode(&buf, ack); err != nil {
		log.Warn("failed to encode agent registration ack", "error", err)
		return
	}
	r.Registry.SendToAgent(reg.AgentID, buf.Bytes())
}

func (r *Router) handleHeartbeat(ctx context.Context, agentID string, hb *protocol.Heartbeat) {
	r.Registry.UpdateAgentMetrics(agentID, registry.AgentMetrics{
		CPUPercent: hb.CPUPercent,
		MemUsed:    hb.MemUsed,
		MemTotal:   hb.MemTotal,
		DiskUsed:   hb.DiskUsed,
		DiskTotal:  hb.DiskTotal,
		UptimeSecs: hb.UptimeSecs,
		IPAddress:  hb.IPAddress,
	})

	if err := r.Store.TouchAgentLastSeen(ctx, agentID); err != nil {
		log.Warn("failed to touch agent last seen", "agentId", agentID, "error", err)
	}

	ack := &protocol.HeartbeatAck{IntervalSecs: uint32(r.HeartbeatInterval.Seconds())}
	if r.Registry.ShouldCaptureThumbnail(agentID, r.ThumbnailInterval) {
		ack.ThumbnailUploadURL = fmt.Sprintf("/api/agents/%s/thumbnail/upload", agentID)
	}

	if r.Policy != nil {
		if metrics, ok := r.Registry.AgentMetricsFor(agentID); ok {
			if hint, applies := r.Policy.Evaluate(agentID, metrics.GroupName, metrics.AgentVersion, metrics.PlatformArch, time.Now()); applies {
				ack.UpdateAvailable = true
				ack.UpdateVersion = hint.Version
				ack.UpdateDownloadURL = hint.DownloadURL
				ack.UpdateSHA256 = hint.SHA256
			}
		}
	}

	env := &protocol.Envelope{ID: r.NewID(), Payload: ack}
	var buf bytes.Buffer
	if err := protocol.Encode(&buf, env); err != nil {
		log.Warn("failed to encode heartbeat ack", "error", err)
		return
	}
	r.Registry.SendToAgent(agentID, buf.Bytes())
}

func (r *Router) handleAgentInfo(info *protocol.AgentInfo) {
	existing, ok := r.Registry.AgentMetricsFor(info.AgentID)
	if !ok {
		existing = registry.AgentMetrics{}
	}
	existing.LoggedInUser = info.LoggedInUser
	existing.CPUModel = info.CPUModel
	r.Registry.UpdateAgentMetrics(info.AgentID, existing)
}

// handleFileTransferRequest mints a public URL for the viewer and an
// internal URL for the agent, keyed by direction: when upload is true the
// viewer is pushing a file to the agent (viewer PUTs, agent GETs), and
// vice versa otherwise.
func (r *Router) handleFileTransferRequest(ctx context.Context, sessionID string, req *protocol.FileTransferRequest, viewerTx registry.Sender) {
	transferID := req.TransferID
	if transferID == "" {
		transferID = r.NewID()
	}
	key := fmt.Sprintf("transfers/%s/%s", sessionID, transferID)

	var viewerURL, agentURL string
	var err error

	if req.Upload {
		viewerURL, err = r.ObjectStore.PresignedUploadURLPublic(ctx, key, time.Hour)
		if err == nil {
			agentURL, err = r.ObjectStore.PresignedDownloadURL(ctx, key, time.Hour)
		}
	} else {
		viewerURL, err = r.ObjectStore.PresignedDownloadURLPublic(ctx, key, time.Hour)
		if err == nil {
			agentURL, err = r.ObjectStore.PresignedUploadURL(ctx, key, time.Hour)
		}
	}

	if err != nil {
		log.Error("failed to generate presigned url", "error", err)
		nak := &protocol.Envelope{
			ID:        r.NewID(),
			SessionID: sessionID,
			Payload: &protocol.FileTransferAck{
				TransferID: transferID,
				Accepted:   false,
				Message:    "failed to generate transfer url",
			},
		}
		var buf bytes.Buffer
		if encErr := protocol.Encode(&buf, nak); encErr == nil {
			viewerTx.TrySend(buf.Bytes())
		}
		return
	}

	viewerAck := &protocol.Envelope{
		ID:        r.NewID(),
		SessionID: sessionID,
		Payload: &protocol.FileTransferAck{
			TransferID:   transferID,
			Accepted:     true,
			PresignedURL: viewerURL,
			Message:      fmt.Sprintf("Transfer ready: %s", req.Name),
		},
	}
	var viewerBuf bytes.Buffer
	if err := protocol.Encode(&viewerBuf, viewerAck); err == nil {
		viewerTx.TrySend(viewerBuf.Bytes())
	}

	agentAck := &protocol.Envelope{
		ID:        r.NewID(),
		SessionID: sessionID,
		Payload: &protocol.FileTransferAck{
			TransferID:   transferID,
			Accepted:     true,
			PresignedURL: agentURL,
		},
	}
	var agentBuf bytes.Buffer
	if err := protocol.Encode(&agentBuf, agentAck); err == nil {
		r.Registry.SendToSessionAgent(sessionID, agentBuf.Bytes())
	}

	// Forward the original request too, so the agent has the file name and
	// declared size without the router needing to mirror every field.
	var origBuf bytes.Buffer
	orig := &protocol.Envelope{ID: r.NewID(), SessionID: sessionID, Payload: req}
	if err := protocol.Encode(&origBuf, orig); err == nil {
		r.Registry.SendToSessionAgent(sessionID, origBuf.Bytes())
	}

	log.Info("file transfer urls generated", "sessionId", sessionID, "transferId", transferID, "upload", req.Upload)
}
