// Package pubsub gives a server instance visibility into agents and
// sessions bound to other instances behind the same load balancer, using
// Redis pub/sub channels keyed by agent or session ID.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("pubsub")

// Event is a cross-instance broadcast: another server instance learned
// something about an agent or session this instance should know about.
type Event struct {
	Type      string `json:"type"`
	AgentID   string `json:"agentId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func agentChannel(agentID string) string   { return fmt.Sprintf("agent:%s", agentID) }
func sessionChannel(sessionID string) string { return fmt.Sprintf("session:%s", sessionID) }

// Broadcaster publishes and subscribes to the cross-instance event fabric.
type Broadcaster struct {
	client *redis.Client
}

// New connects to Redis at addr (host:port) using the given password
// (empty for none) and database index.
func New(addr, password string, db int) *Broadcaster {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Broadcaster{client: client}
}

// Close releases the underlying Redis client.
func (b *Broadcaster) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

// Ping verifies connectivity to Redis.
func (b *Broadcaster) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// PublishAgentEvent notifies every instance subscribed to this agent's
// channel, used for status changes an instance without the agent's live
// connection still needs to know about (e.g. an offline transition seen
// by the instance that actually holds the socket).
func (b *Broadcaster) PublishAgentEvent(ctx context.Context, agentID string, event Event) error {
	event.AgentID = agentID
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal pubsub event: %w", err)
	}
	return b.client.Publish(ctx, agentChannel(agentID), payload).Err()
}

// PublishSessionEvent notifies every instance subscribed to this
// session's channel — used when a viewer connects to an instance that
// doesn't hold the agent's socket and the request must be relayed.
func (b *Broadcaster) PublishSessionEvent(ctx context.Context, sessionID string, event Event) error {
	event.SessionID = sessionID
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal pubsub event: %w", err)
	}
	return b.client.Publish(ctx, sessionChannel(sessionID), payload).Err()
}

// SubscribeAgent returns a channel of events published for a specific
// agent ID across every server instance. Call the returned function to
// unsubscribe and release resources.
func (b *Broadcaster) SubscribeAgent(ctx context.Context, agentID string) (<-chan Event, func()) {
	return b.subscribe(ctx, agentChannel(agentID))
}

// SubscribeSession returns a channel of events published for a specific
// session ID across every server instance.
func (b *Broadcaster) SubscribeSession(ctx context.Context, sessionID string) (<-chan Event, func()) {
	return b.subscribe(ctx, sessionChannel(sessionID))
}

func (b *Broadcaster) subscribe(ctx context.Context, channel string) (<-chan Event, func()) {
	sub := b.client.Subscribe(ctx, channel)
	out := make(chan Event, 32)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for msg := range ch {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn("failed to decode pubsub event", "channel", channel, "error", err)
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
