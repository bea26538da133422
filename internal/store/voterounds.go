package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/digitalentity/aientity/internal/domain"
)

// OpenVoteRound opens a new VoteRound for a life, closing over [opened,
// opened+window). Returns the new round's id.
func (s *Store) OpenVoteRound(ctx context.Context, lifeNumber int64, opened time.Time, window time.Duration) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO vote_rounds (life_number, opened_at, closes_at, live, die, status)
		VALUES (?, ?, ?, 0, 0, ?)
	`, lifeNumber, opened, opened.Add(window), domain.RoundOpen)
	if err != nil {
		return 0, fmt.Errorf("failed to open vote round for life %d: %w", lifeNumber, err)
	}
	return res.LastInsertId()
}

func scanRound(row interface{ Scan(...any) error }) (domain.VoteRound, error) {
	var r domain.VoteRound
	if err := row.Scan(&r.ID, &r.LifeNumber, &r.OpenedAt, &r.ClosesAt, &r.Live, &r.Die, &r.Status); err != nil {
		return domain.VoteRound{}, err
	}
	return r, nil
}

const roundColumns = `id, life_number, opened_at, closes_at, live, die, status`

// OpenRoundForLife returns the currently open round for a life, if any.
func (s *Store) OpenRoundForLife(ctx context.Context, lifeNumber int64) (domain.VoteRound, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+roundColumns+` FROM vote_rounds WHERE life_number = ? AND status = ? ORDER BY id DESC LIMIT 1
	`, lifeNumber, domain.RoundOpen)
	r, err := scanRound(row)
	if err == sql.ErrNoRows {
		return domain.VoteRound{}, fmt.Errorf("no open vote round for life %d", lifeNumber)
	}
	if err != nil {
		return domain.VoteRound{}, fmt.Errorf("failed to load open round for life %d: %w", lifeNumber, err)
	}
	return r, nil
}

// RoundsPastClose returns all open rounds whose closes_at <= now, for the
// voting-window watcher to adjudicate.
func (s *Store) RoundsPastClose(ctx context.Context, now time.Time) ([]domain.VoteRound, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+roundColumns+` FROM vote_rounds WHERE status = ? AND closes_at <= ?
	`, domain.RoundOpen, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds past close: %w", err)
	}
	defer rows.Close()

	var out []domain.VoteRound
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CloseRound transitions a round from open to the given terminal status.
// Conditioned on status=open so a concurrent closer cannot double-close.
func (s *Store) CloseRound(ctx context.Context, roundID int64, newStatus domain.RoundStatus) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE vote_rounds SET status = ? WHERE id = ? AND status = ?
	`, newStatus, roundID, domain.RoundOpen)
	if err != nil {
		return fmt.Errorf("failed to close round %d: %w", roundID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("round %d already closed", roundID)
	}
	return nil
}

// AdjustVoteCounters applies an admin correction (§6 POST /api/god/votes/adjust)
// directly to an open round's tallies, bypassing fingerprint/cooldown
// checks entirely — this is an operator override, not a vote.
func (s *Store) AdjustVoteCounters(ctx context.Context, roundID int64, liveDelta, dieDelta int64) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE vote_rounds SET live = live + ?, die = die + ? WHERE id = ?
	`, liveDelta, dieDelta, roundID)
	if err != nil {
		return fmt.Errorf("failed to adjust vote counters on round %d: %w", roundID, err)
	}
	return nil
}

// IncrementVoteCounter bumps live or die by one on the given round.
func (s *Store) IncrementVoteCounter(ctx context.Context, roundID int64, choice domain.Choice) error {
	column := "live"
	if choice == domain.ChoiceDie {
		column = "die"
	}
	_, err := s.DB.ExecContext(ctx, `UPDATE vote_rounds SET `+column+` = `+column+` + 1 WHERE id = ?`, roundID)
	if err != nil {
		return fmt.Errorf("failed to increment %s counter on round %d: %w", column, roundID, err)
	}
	return nil
}
