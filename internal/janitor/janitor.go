// Package janitor runs the server's background maintenance loops: marking
// unresponsive agents offline, ending stale sessions, and pruning old
// audit log entries.
package janitor

import (
	"context"
	"time"

	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/internal/registry"
	"github.com/screencontrol/core/internal/store"
)

var log = logging.L("janitor")

const (
	heartbeatCheckInterval = 30 * time.Second
	heartbeatTimeout       = 90 * time.Second

	sessionCheckInterval = 60 * time.Second
	sessionStaleAfter    = 5 * time.Minute

	auditPruneInterval = 24 * time.Hour
	auditRetention      = 90 * 24 * time.Hour
)

// Store is the subset of persistence the janitors need.
type Store interface {
	MarkStaleAgentsOffline(ctx context.Context, timeout time.Duration) ([]store.StaleAgent, error)
	EndStaleSessions(ctx context.Context, staleAfter time.Duration) ([]string, error)
	PruneAuditLog(ctx context.Context, retention time.Duration) (int64, error)
}

// Janitor owns the three background maintenance loops and the registry
// they keep consistent with the database.
type Janitor struct {
	Store    Store
	Registry *registry.Registry
}

// Run starts all three loops and blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	go j.runHeartbeatMonitor(ctx)
	go j.runSessionCleanup(ctx)
	go j.runAuditPruner(ctx)
	<-ctx.Done()
}

// runHeartbeatMonitor marks agents offline if no heartbeat has been seen
// within heartbeatTimeout, every heartbeatCheckInterval.
func (j *Janitor) runHeartbeatMonitor(ctx context.Context) {
	log.Info("heartbeat monitor started", "checkInterval", heartbeatCheckInterval, "timeout", heartbeatTimeout)
	ticker := time.NewTicker(heartbeatCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.checkHeartbeats(ctx)
		}
	}
}

func (j *Janitor) checkHeartbeats(ctx context.Context) {
	stale, err := j.Store.MarkStaleAgentsOffline(ctx, heartbeatTimeout)
	if err != nil {
		log.Error("heartbeat monitor query failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}
	log.Info("heartbeat monitor marked agents offline", "count", len(stale))
	for _, agent := range stale {
		j.Registry.UnregisterAgent(agent.ID)
		j.Registry.BroadcastEvent(map[string]any{
			"type":        "agent.status",
			"agentId":     agent.ID,
			"machineName": agent.MachineName,
			"status":      "offline",
			"reason":      "heartbeat_timeout",
		})
	}
}

// runSessionCleanup ends sessions stuck in pending/active for longer than
// sessionStaleAfter, every sessionCheckInterval.
func (j *Janitor) runSessionCleanup(ctx context.Context) {
	log.Info("session cleanup worker started", "checkInterval", sessionCheckInterval, "staleAfter", sessionStaleAfter)
	ticker := time.NewTicker(sessionCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.cleanupSessions(ctx)
		}
	}
}

func (j *Janitor) cleanupSessions(ctx context.Context) {
	ended, err := j.Store.EndStaleSessions(ctx, sessionStaleAfter)
	if err != nil {
		log.Error("session cleanup query failed", "error", err)
		return
	}
	if len(ended) == 0 {
		return
	}
	log.Info("session cleanup ended stale sessions", "count", len(ended))
	for _, sessionID := range ended {
		j.Registry.UnbindSession(sessionID)
		j.Registry.BroadcastEvent(map[string]any{
			"type":      "session.ended",
			"sessionId": sessionID,
			"reason":    "stale_cleanup",
		})
	}
}

// runAuditPruner deletes audit log entries older than auditRetention, once
// per auditPruneInterval.
func (j *Janitor) runAuditPruner(ctx context.Context) {
	log.Info("audit pruner started", "interval", auditPruneInterval, "retention", auditRetention)
	ticker := time.NewTicker(auditPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := j.Store.PruneAuditLog(ctx, auditRetention)
			if err != nil {
				log.Error("audit pruner query failed", "error", err)
				continue
			}
			if count > 0 {
				log.Info("audit pruner deleted old entries", "count", count)
			}
		}
	}
}
