// Package broadcaster makes internal/registry's send primitives
// transparent to which server instance actually holds an agent or
// viewer's live socket. A session's agent connection can live on any
// instance behind the load balancer; SendToAgent/SendToViewer here try
// the local registry first and fall back to publishing the frame on
// internal/pubsub's Redis fabric, where the instance holding the
// socket has a standing subscriber that re-injects it locally.
package broadcaster

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/internal/pubsub"
	"github.com/screencontrol/core/internal/registry"
)

var log = logging.L("broadcaster")

const eventTypeFrame = "frame"

// Broadcaster pairs a local Registry with the cross-instance pubsub
// fabric and keeps one relay subscription alive per agent/session this
// instance actually holds a socket for.
type Broadcaster struct {
	registry *registry.Registry
	pubsub   *pubsub.Broadcaster

	mu             sync.Mutex
	agentCancels   map[string]func()
	sessionCancels map[string]func()
}

// New pairs reg with ps. ps may be nil, in which case every operation
// degrades to local-instance-only delivery — used in single-instance
// deployments with no Redis configured.
func New(reg *registry.Registry, ps *pubsub.Broadcaster) *Broadcaster {
	return &Broadcaster{
		registry:       reg,
		pubsub:         ps,
		agentCancels:   make(map[string]func()),
		sessionCancels: make(map[string]func()),
	}
}

// WatchAgent starts relaying cross-instance frames addressed to
// agentID into the local registry. Call when an agent's socket is
// registered on this instance; the returned behavior is idempotent per
// agentID.
func (b *Broadcaster) WatchAgent(ctx context.Context, agentID string) {
	if b.pubsub == nil {
		return
	}
	b.mu.Lock()
	if _, ok := b.agentCancels[agentID]; ok {
		b.mu.Unlock()
		return
	}
	events, cancel := b.pubsub.SubscribeAgent(ctx, agentID)
	b.agentCancels[agentID] = cancel
	b.mu.Unlock()

	go b.relayLoop(events, func(data []byte) {
		b.registry.SendToAgent(agentID, data)
	})
}

// UnwatchAgent stops relaying for agentID, used when the agent
// disconnects from this instance.
func (b *Broadcaster) UnwatchAgent(agentID string) {
	b.mu.Lock()
	cancel, ok := b.agentCancels[agentID]
	delete(b.agentCancels, agentID)
	b.mu.Unlock()
	if ok {
		cancel()
	}
}

// WatchSession starts relaying cross-instance frames addressed to a
// session's viewer side into the local registry.
func (b *Broadcaster) WatchSession(ctx context.Context, sessionID string) {
	if b.pubsub == nil {
		return
	}
	b.mu.Lock()
	if _, ok := b.sessionCancels[sessionID]; ok {
		b.mu.Unlock()
		return
	}
	events, cancel := b.pubsub.SubscribeSession(ctx, sessionID)
	b.sessionCancels[sessionID] = cancel
	b.mu.Unlock()

	go b.relayLoop(events, func(data []byte) {
		b.registry.SendToViewer(sessionID, data)
	})
}

// UnwatchSession stops relaying for sessionID.
func (b *Broadcaster) UnwatchSession(sessionID string) {
	b.mu.Lock()
	cancel, ok := b.sessionCancels[sessionID]
	delete(b.sessionCancels, sessionID)
	b.mu.Unlock()
	if ok {
		cancel()
	}
}

func (b *Broadcaster) relayLoop(events <-chan pubsub.Event, deliver func(data []byte)) {
	for event := range events {
		if event.Type != eventTypeFrame {
			continue
		}
		encoded, ok := event.Data.(string)
		if !ok {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			log.Warn("failed to decode relayed frame", "error", err)
			continue
		}
		deliver(data)
	}
}

// SendToAgent delivers data to agentID, using the local registry if
// this instance holds its socket, or publishing it for the instance
// that does otherwise.
func (b *Broadcaster) SendToAgent(ctx context.Context, agentID string, data []byte) error {
	if b.registry.SendToAgent(agentID, data) {
		return nil
	}
	if b.pubsub == nil {
		return fmt.Errorf("broadcaster: agent %s not connected to this instance", agentID)
	}
	return b.pubsub.PublishAgentEvent(ctx, agentID, pubsub.Event{
		Type: eventTypeFrame,
		Data: base64.StdEncoding.EncodeToString(data),
	})
}

// SendToViewer delivers data to a session's viewer side, relaying
// cross-instance the same way SendToAgent does.
func (b *Broadcaster) SendToViewer(ctx context.Context, sessionID string, data []byte) error {
	if b.registry.SendToViewer(sessionID, data) {
		return nil
	}
	if b.pubsub == nil {
		return fmt.Errorf("broadcaster: session %s viewer not connected to this instance", sessionID)
	}
	return b.pubsub.PublishSessionEvent(ctx, sessionID, pubsub.Event{
		Type: eventTypeFrame,
		Data: base64.StdEncoding.EncodeToString(data),
	})
}

// PublishStatusEvent fans a status event out to local UI subscribers
// via the registry and to every other server instance via pubsub, so
// an operator dashboard attached to any instance sees the same agent
// online/offline transitions.
func (b *Broadcaster) PublishStatusEvent(ctx context.Context, agentID string, event map[string]any) error {
	b.registry.BroadcastEvent(event)
	if b.pubsub == nil {
		return nil
	}
	return b.pubsub.PublishAgentEvent(ctx, agentID, pubsub.Event{
		Type: "status",
		Data: event,
	})
}
