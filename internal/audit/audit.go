// Package audit records the administrative mutations that shape
// authorization decisions: role CRUD, permission replaces, membership
// changes. Recording is best-effort; a failed write is logged and never
// fails the mutation it describes.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry represents a record stored in audit_logs.
type Entry struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Logger writes records into audit_logs.
type Logger struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewLogger returns a new audit logger.
func NewLogger(pool *pgxpool.Pool, log *slog.Logger) *Logger {
	return &Logger{pool: pool, log: log}
}

// Record persists the entry, logging instead of failing on error.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if l == nil || l.pool == nil {
		return
	}
	if err := l.record(ctx, entry); err != nil && l.log != nil {
		l.log.Warn("audit record failed",
			slog.String("action", entry.Action), slog.Any("error", err))
	}
}

func (l *Logger) record(ctx context.Context, entry Entry) error {
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit entry requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ActorID, entry.Action, entry.Entity, entry.EntityID, metaJSON, at)
	return err
}
