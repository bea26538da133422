package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/digitalentity/aientity/internal/domain"
)

// InsertOracleMessage records an administrative directive delivered
// out-of-band, to be surfaced in the agent's next prompt composition.
func (s *Store) InsertOracleMessage(ctx context.Context, kind domain.OracleKind, text string, deliveredAt time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO oracle_messages (kind, text, delivered_at) VALUES (?, ?, ?)
	`, kind, text, deliveredAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert oracle message: %w", err)
	}
	return res.LastInsertId()
}

// PendingOracleMessages returns undelivered-to-agent messages in delivery
// order. "Pending" here means not yet acknowledged by the agent's
// think-act loop.
func (s *Store) PendingOracleMessages(ctx context.Context) ([]domain.OracleMessage, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, kind, text, delivered_at, acknowledged_at FROM oracle_messages
		WHERE acknowledged_at IS NULL ORDER BY delivered_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending oracle messages: %w", err)
	}
	defer rows.Close()

	var out []domain.OracleMessage
	for rows.Next() {
		var m domain.OracleMessage
		var ack sql.NullTime
		if err := rows.Scan(&m.ID, &m.Kind, &m.Text, &m.DeliveredAt, &ack); err != nil {
			return nil, err
		}
		if ack.Valid {
			m.AcknowledgedAt = &ack.Time
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AcknowledgeOracleMessage marks a message as consumed by the agent so it
// is not replayed on the next prompt composition.
func (s *Store) AcknowledgeOracleMessage(ctx context.Context, id int64, at time.Time) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE oracle_messages SET acknowledged_at = ? WHERE id = ? AND acknowledged_at IS NULL
	`, at, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge oracle message %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("oracle message %d not found or already acknowledged", id)
	}
	return nil
}
