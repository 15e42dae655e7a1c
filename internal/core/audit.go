package core

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry is one append-only record of a state-changing operation.
// Old/new values are opaque JSON snapshots; entries are never mutated.
type AuditEntry struct {
	ID         int             `json:"id"`
	ActorID    int             `json:"actor_id"`
	ActorName  string          `json:"actor_name"`
	ActionType string          `json:"action_type"`
	TargetType string          `json:"target_type"`
	TargetID   int             `json:"target_id"`
	OldValue   json.RawMessage `json:"old_value,omitempty"`
	NewValue   json.RawMessage `json:"new_value,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditSink receives one entry per state-changing operation. Persistence
// failures are non-fatal: Record logs a warning and returns.
type AuditSink interface {
	Record(ctx context.Context, actor Actor, actionType, targetType string, targetID int, oldValue, newValue any)
	List(ctx context.Context, targetType string, targetID int) ([]AuditEntry, error)
}

type auditSink struct {
	pool *pgxpool.Pool
}

func NewAuditSink(pool *pgxpool.Pool) AuditSink {
	return &auditSink{pool: pool}
}

func (s *auditSink) Record(ctx context.Context, actor Actor, actionType, targetType string, targetID int, oldValue, newValue any) {
	oldJSON := marshalSnapshot(oldValue)
	newJSON := marshalSnapshot(newValue)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_entries (actor_id, actor_name, action_type, target_type, target_id, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, actor.ID, actor.Name, actionType, targetType, targetID, oldJSON, newJSON)
	if err != nil {
		log.Printf("warning: audit entry %s %s/%d not recorded: %v", actionType, targetType, targetID, err)
	}
}

func (s *auditSink) List(ctx context.Context, targetType string, targetID int) ([]AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor_id, actor_name, action_type, target_type, target_id, old_value, new_value, created_at
		FROM audit_entries
		WHERE target_type = $1 AND target_id = $2
		ORDER BY id
	`, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.ActionType, &e.TargetType,
			&e.TargetID, &e.OldValue, &e.NewValue, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func marshalSnapshot(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("warning: audit snapshot not serializable: %v", err)
		return nil
	}
	return b
}
