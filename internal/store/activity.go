package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/digitalentity/aientity/internal/domain"
)

// AppendActivity inserts an ActivityEvent and returns the assigned
// monotonic sequence number (observer-receipt ordering, §5).
func (s *Store) AppendActivity(ctx context.Context, lifeNumber int64, kind domain.ActivityKind, payload any) (domain.ActivityEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.ActivityEvent{}, fmt.Errorf("failed to marshal activity payload: %w", err)
	}
	now := time.Now().UTC()

	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO activity_events (life_number, ts, kind, payload) VALUES (?, ?, ?, ?)
	`, lifeNumber, now, kind, string(raw))
	if err != nil {
		return domain.ActivityEvent{}, fmt.Errorf("failed to append activity event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.ActivityEvent{}, fmt.Errorf("failed to read activity event seq: %w", err)
	}

	return domain.ActivityEvent{
		SeqNum: seq, LifeNumber: lifeNumber, Timestamp: now, Kind: kind, Payload: raw,
	}, nil
}

// ActivitySince returns all events with seq > afterSeq, in order, used to
// replay for SSE consumers reconnecting with a Last-Event-ID.
func (s *Store) ActivitySince(ctx context.Context, afterSeq int64, limit int) ([]domain.ActivityEvent, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT seq, life_number, ts, kind, payload FROM activity_events WHERE seq > ? ORDER BY seq ASC LIMIT ?
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", err)
	}
	defer rows.Close()

	var out []domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		var payload string
		if err := rows.Scan(&e.SeqNum, &e.LifeNumber, &e.Timestamp, &e.Kind, &payload); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}
