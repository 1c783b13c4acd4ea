// Package registry is the server's in-memory record of which agents and
// viewers are connected to this instance and how sessions bind them
// together. Cross-instance visibility is handled separately by
// internal/pubsub; this package only ever answers for the local process.
package registry

import (
	"sync"
	"time"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("registry")

// Sender abstracts "push this frame to whatever transport owns this
// connection" so the registry never touches a *websocket.Conn directly —
// each connection's own read/write pump is the only goroutine allowed to
// touch its socket, matching the single-writer discipline the agent's own
// websocket client uses.
type Sender interface {
	// TrySend enqueues data for delivery and reports whether the send
	// channel accepted it (false means the peer is backed up or gone).
	TrySend(data []byte) bool
}

// ChanSender is the concrete Sender backing a live connection: a buffered
// channel drained by that connection's write pump.
type ChanSender chan []byte

func (s ChanSender) TrySend(data []byte) bool {
	select {
	case s <- data:
		return true
	default:
		return false
	}
}

// AgentMetrics holds the most recent heartbeat sample for an agent.
// LoggedInUser, CPUModel, AgentVersion, GroupName, and PlatformArch are
// sticky: update merges preserve them across heartbeats that don't
// report them, since only registration (not every heartbeat) carries
// version/group/arch.
type AgentMetrics struct {
	CPUPercent   float64
	MemUsed      uint64
	MemTotal     uint64
	DiskUsed     uint64
	DiskTotal    uint64
	UptimeSecs   uint64
	IPAddress    string
	LoggedInUser string
	CPUModel     string
	AgentVersion string
	GroupName    string
	PlatformArch string
}

type agentConn struct {
	agentID         string
	machineName     string
	tx              Sender
	metrics         AgentMetrics
	lastThumbnailAt time.Time
}

type sessionBinding struct {
	sessionID string
	agentID   string
	agentTx   Sender
	viewerTx  Sender
}

// Registry is the central connection table, safe for concurrent use by
// every WebSocket handler goroutine on this server instance.
type Registry struct {
	mu         sync.RWMutex
	agents     map[string]*agentConn
	sessions   map[string]*sessionBinding
	eventSubs  map[string]Sender
}

func New() *Registry {
	return &Registry{
		agents:    make(map[string]*agentConn),
		sessions:  make(map[string]*sessionBinding),
		eventSubs: make(map[string]Sender),
	}
}

// RegisterAgent records a newly connected agent and broadcasts an
// agent.status online event to subscribers.
func (r *Registry) RegisterAgent(agentID, machineName string, tx Sender) {
	r.mu.Lock()
	r.agents[agentID] = &agentConn{agentID: agentID, machineName: machineName, tx: tx}
	r.mu.Unlock()

	log.Info("agent registered", "agentId", agentID, "machineName", machineName)
	r.BroadcastEvent(map[string]any{
		"type":        "agent.status",
		"agentId":     agentID,
		"machineName": machineName,
		"status":      "online",
	})
}

// UnregisterAgent removes an agent and any sessions bound to it, then
// broadcasts an agent.status offline event.
func (r *Registry) UnregisterAgent(agentID string) {
	r.mu.Lock()
	conn, ok := r.agents[agentID]
	if ok {
		delete(r.agents, agentID)
	}
	for id, binding := range r.sessions {
		if binding.agentID == agentID {
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	log.Info("agent unregistered", "agentId", agentID)
	r.BroadcastEvent(map[string]any{
		"type":        "agent.status",
		"agentId":     agentID,
		"machineName": conn.machineName,
		"status":      "offline",
	})
}

// SendToAgent pushes data to the given agent's connection, if connected.
func (r *Registry) SendToAgent(agentID string, data []byte) bool {
	r.mu.RLock()
	conn, ok := r.agents[agentID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.tx.TrySend(data)
}

// BindSession associates a new session with its agent. Returns false if
// the agent is not connected.
func (r *Registry) BindSession(sessionID, agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.agents[agentID]
	if !ok {
		log.Warn("cannot bind session, agent not connected", "sessionId", sessionID, "agentId", agentID)
		return false
	}
	r.sessions[sessionID] = &sessionBinding{sessionID: sessionID, agentID: agentID, agentTx: conn.tx}
	log.Info("session bound to agent", "sessionId", sessionID, "agentId", agentID)
	return true
}

// AttachViewer attaches a viewer's send channel to an already-bound
// session. Returns false if the session doesn't exist.
func (r *Registry) AttachViewer(sessionID string, tx Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	binding.viewerTx = tx
	log.Info("viewer attached to session", "sessionId", sessionID)
	return true
}

// UnbindSession removes a session binding.
func (r *Registry) UnbindSession(sessionID string) {
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if ok {
		log.Info("session unbound", "sessionId", sessionID)
	}
}

// AgentForSession returns the agent ID bound to a session, if any. Used to
// synthesize a SessionEnd toward the agent when a viewer disconnects
// before the binding is torn down.
func (r *Registry) AgentForSession(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	binding, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return binding.agentID, true
}

// SendToViewer pushes data to the viewer side of a session.
func (r *Registry) SendToViewer(sessionID string, data []byte) bool {
	r.mu.RLock()
	binding, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok || binding.viewerTx == nil {
		return false
	}
	return binding.viewerTx.TrySend(data)
}

// SendToSessionAgent pushes data to the agent side of a session.
func (r *Registry) SendToSessionAgent(sessionID string, data []byte) bool {
	r.mu.RLock()
	binding, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return binding.agentTx.TrySend(data)
}

// UpdateAgentMetrics overwrites CPU/memory/disk/uptime/IP fields from a
// heartbeat while preserving LoggedInUser/CPUModel if the new sample
// leaves them blank — both fields only ever arrive on a subset of
// heartbeats (collector-dependent), so a naive overwrite would erase
// them on every heartbeat that doesn't resample them.
func (r *Registry) UpdateAgentMetrics(agentID string, sample AgentMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.agents[agentID]
	if !ok {
		return
	}
	if sample.LoggedInUser == "" {
		sample.LoggedInUser = conn.metrics.LoggedInUser
	}
	if sample.CPUModel == "" {
		sample.CPUModel = conn.metrics.CPUModel
	}
	if sample.AgentVersion == "" {
		sample.AgentVersion = conn.metrics.AgentVersion
	}
	if sample.GroupName == "" {
		sample.GroupName = conn.metrics.GroupName
	}
	if sample.PlatformArch == "" {
		sample.PlatformArch = conn.metrics.PlatformArch
	}
	conn.metrics = sample
}

// ShouldCaptureThumbnail reports whether interval has elapsed since the
// last thumbnail capture for this agent, atomically reserving the slot
// (updating the timestamp) if so — a compare-and-set gate so concurrent
// heartbeats never trigger two captures in the same window.
func (r *Registry) ShouldCaptureThumbnail(agentID string, interval time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.agents[agentID]
	if !ok {
		return false
	}
	now := time.Now()
	if !conn.lastThumbnailAt.IsZero() && now.Sub(conn.lastThumbnailAt) < interval {
		return false
	}
	conn.lastThumbnailAt = now
	return true
}

// MarkThumbnailSent unconditionally stamps the thumbnail timestamp, used
// when the server issues a synthetic capture request outside the normal
// heartbeat-driven gate (e.g. immediately on viewer attach).
func (r *Registry) MarkThumbnailSent(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.agents[agentID]; ok {
		conn.lastThumbnailAt = time.Now()
	}
}

// AgentMetricsFor returns a copy of the agent's latest metrics.
func (r *Registry) AgentMetricsFor(agentID string) (AgentMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.agents[agentID]
	if !ok {
		return AgentMetrics{}, false
	}
	return conn.metrics, true
}

func (r *Registry) OnlineAgentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

func (r *Registry) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// AddEventSub registers a UI subscriber for broadcast status events.
func (r *Registry) AddEventSub(id string, tx Sender) {
	r.mu.Lock()
	r.eventSubs[id] = tx
	n := len(r.eventSubs)
	r.mu.Unlock()
	log.Debug("event subscriber added", "id", id, "subs", n)
}

// RemoveEventSub unregisters a UI subscriber.
func (r *Registry) RemoveEventSub(id string) {
	r.mu.Lock()
	delete(r.eventSubs, id)
	r.mu.Unlock()
}

// BroadcastEvent fans an event out to every subscriber, pruning any whose
// send channel has backed up or closed. No I/O happens under the lock:
// the subscriber list is copied out before any TrySend call.
func (r *Registry) BroadcastEvent(event map[string]any) {
	data, err := marshalEvent(event)
	if err != nil {
		log.Warn("failed to marshal broadcast event", "error", err)
		return
	}

	r.mu.RLock()
	subs := make(map[string]Sender, len(r.eventSubs))
	for id, tx := range r.eventSubs {
		subs[id] = tx
	}
	r.mu.RUnlock()

	var dead []string
	for id, tx := range subs {
		if !tx.TrySend(data) {
			dead = append(dead, id)
		}
	}
	if len(dead) == 0 {
		return
	}

	r.mu.Lock()
	for _, id := range dead {
		delete(r.eventSubs, id)
	}
	r.mu.Unlock()
}
