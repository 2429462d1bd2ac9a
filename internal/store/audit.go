package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ppiankov/veritas/internal/model"
)

// LogAction appends an audit entry
func (s *SQLiteStore) LogAction(ctx context.Context, e model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	details := "{}"
	if len(e.Details) > 0 {
		encoded, err := encodeJSON(e.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = encoded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_log (id, actor, action, target, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, e.ID, e.Actor, e.Action, e.Target, details, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// RecentActions returns the newest audit entries first
func (s *SQLiteStore) RecentActions(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, actor, action, target, details, created_at
		FROM audit_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var details, createdAt string
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Target, &details, &createdAt); err != nil {
			return nil, err
		}
		if err := decodeJSON(details, &e.Details); err != nil {
			return nil, fmt.Errorf("audit %s details: %w", e.ID, err)
		}
		if len(e.Details) == 0 {
			e.Details = nil
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
