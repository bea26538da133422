package store

import (
	"context"
	"fmt"

	"github.com/digitalentity/aientity/internal/domain"
)

// InsertAuditRecord persists one accountability record. Called from
// internal/audit's async Logger, never directly from request handlers.
func (s *Store) InsertAuditRecord(ctx context.Context, rec domain.AuditRecord) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO audit_records (timestamp, actor, event_type, resource, action, success, error_message, request_id, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Timestamp, rec.Actor, rec.EventType, rec.Resource, rec.Action, rec.Success,
		rec.ErrorMsg, rec.RequestID, rec.DurationMs)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// AuditRecordsByActor returns the most recent audit records for a given
// actor, newest first, capped at limit.
func (s *Store) AuditRecordsByActor(ctx context.Context, actor string, limit int) ([]domain.AuditRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, timestamp, actor, event_type, resource, action, success, error_message, request_id, duration_ms
		FROM audit_records WHERE actor = ? ORDER BY id DESC LIMIT ?
	`, actor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records for actor %s: %w", actor, err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var r domain.AuditRecord
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Actor, &r.EventType, &r.Resource,
			&r.Action, &r.Success, &r.ErrorMsg, &r.RequestID, &r.DurationMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
