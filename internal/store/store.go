// Package store persists agents, sessions, groups, chat messages, and
// audit log entries to Postgres via pgx, shared by the server's router
// and its background janitor workers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("store")

const defaultOperationTimeout = 5 * time.Second

// Store is the server's Postgres-backed persistence layer.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// Open connects to Postgres using dsn (a standard libpq connection string
// or URL) and returns a ready-to-use Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return &Store{pool: pool, timeout: defaultOperationTimeout}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if s.timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, s.timeout)
}

func isNoRows(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// UpsertAgent inserts or updates an agent's identity row, matching the
// tenant-scoped upsert the original runs on every registration.
func (s *Store) UpsertAgent(ctx context.Context, agentID, machineName, osName, osVersion, arch, agentVersion string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO agents (id, machine_name, os, os_version, arch, agent_version, status, last_seen, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 'online', NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
  machine_name = EXCLUDED.machine_name,
  os = EXCLUDED.os,
  os_version = EXCLUDED.os_version,
  arch = EXCLUDED.arch,
  agent_version = EXCLUDED.agent_version,
  status = 'online',
  last_seen = NOW(),
  updated_at = NOW()
`, agentID, machineName, osName, osVersion, arch, agentVersion)
	return err
}

// TouchAgentLastSeen bumps an agent's heartbeat timestamp without
// touching its identity fields.
func (s *Store) TouchAgentLastSeen(ctx context.Context, agentID string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `UPDATE agents SET last_seen = NOW(), status = 'online' WHERE id = $1`, agentID)
	return err
}

// MarkAgentOffline flips an agent's status on disconnect.
func (s *Store) MarkAgentOffline(ctx context.Context, agentID string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `UPDATE agents SET status = 'offline', updated_at = NOW() WHERE id = $1`, agentID)
	return err
}

// AssignAgentToGroup upserts the agent's group membership, used for the
// group-name auto-assignment resolved in DESIGN.md's open questions.
func (s *Store) AssignAgentToGroup(ctx context.Context, agentID, tenantID, groupName string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	var groupID string
	err := s.pool.QueryRow(ctx, `
INSERT INTO groups (tenant_id, name)
VALUES ($1, $2)
ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
RETURNING id
`, tenantID, groupName).Scan(&groupID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE agents SET group_id = $1 WHERE id = $2`, groupID, agentID)
	return err
}

// CreateSession inserts a new pending session row.
func (s *Store) CreateSession(ctx context.Context, sessionID, agentID, sessionType string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO sessions (id, agent_id, session_type, status, started_at)
VALUES ($1, $2, $3, 'pending', NOW())
`, sessionID, agentID, sessionType)
	return err
}

// UpdateSessionStatus sets a session's status column.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET status = $2 WHERE id = $1`, sessionID, status)
	return err
}

// EndSession marks a session ended and stamps its end time.
func (s *Store) EndSession(ctx context.Context, sessionID string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET status = 'ended', ended_at = NOW() WHERE id = $1`, sessionID)
	return err
}

// InsertChatMessage records one chat line for a session's transcript.
func (s *Store) InsertChatMessage(ctx context.Context, sessionID, agentID, senderType, senderName, content string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO chat_messages (session_id, agent_id, sender_type, sender_name, content, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
`, sessionID, agentID, senderType, senderName, content)
	return err
}

// InsertAuditEntry records a single audit log row.
func (s *Store) InsertAuditEntry(ctx context.Context, tenantID, actorID, action, details string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO audit_log (tenant_id, actor_id, action, details, created_at)
VALUES ($1, $2, $3, $4, NOW())
`, tenantID, actorID, action, details)
	return err
}

// StaleAgent is a row returned by MarkStaleAgentsOffline.
type StaleAgent struct {
	ID          string
	MachineName string
}

// MarkStaleAgentsOffline flips any agent whose last heartbeat is older
// than timeout to offline, returning the agents it changed so the caller
// can broadcast status events for each.
func (s *Store) MarkStaleAgentsOffline(ctx context.Context, timeout time.Duration) ([]StaleAgent, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
UPDATE agents
SET status = 'offline', updated_at = NOW()
WHERE status = 'online' AND last_seen < NOW() - make_interval(secs => $1)
RETURNING id, machine_name
`, timeout.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []StaleAgent
	for rows.Next() {
		var a StaleAgent
		if err := rows.Scan(&a.ID, &a.MachineName); err != nil {
			return nil, err
		}
		stale = append(stale, a)
	}
	return stale, rows.Err()
}

// EndStaleSessions ends any pending/active session older than staleAfter,
// returning the IDs it ended so the caller can unbind each from the
// registry and broadcast a cleanup event.
func (s *Store) EndStaleSessions(ctx context.Context, staleAfter time.Duration) ([]string, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
UPDATE sessions
SET status = 'ended', ended_at = NOW()
WHERE status IN ('pending', 'active') AND started_at < NOW() - make_interval(secs => $1)
RETURNING id
`, staleAfter.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PruneAuditLog deletes audit entries older than retention, returning how
// many rows were removed.
func (s *Store) PruneAuditLog(ctx context.Context, retention time.Duration) (int64, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `
DELETE FROM audit_log WHERE created_at < NOW() - make_interval(secs => $1)
`, retention.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// TenantIDForEnrollmentToken resolves a tenant-scoped enrollment token to
// its tenant ID, used during agent registration.
func (s *Store) TenantIDForEnrollmentToken(ctx context.Context, token string) (string, bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	var tenantID string
	err := s.pool.QueryRow(ctx, `SELECT id FROM tenants WHERE enrollment_token = $1`, token).Scan(&tenantID)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return tenantID, true, nil
}
