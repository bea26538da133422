package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/digitalentity/aientity/internal/domain"
)

// ErrDuplicateVote is returned when (round_id, fingerprint) already has a
// row — the unique constraint is the actual tie-break between concurrent
// submissions for the same fingerprint (§5).
var ErrDuplicateVote = errors.New("duplicate vote for this round")

// InsertVote attempts to record a ballot. Returns ErrDuplicateVote if this
// fingerprint already voted in this round.
func (s *Store) InsertVote(ctx context.Context, vote domain.Vote) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO votes (round_id, voter_fingerprint, choice, cast_at) VALUES (?, ?, ?, ?)
	`, vote.RoundID, vote.VoterFingerprint, vote.Choice, vote.CastAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateVote
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

// VoteExistsInRound reports whether fingerprint has already cast a ballot
// in round, the round-scoped half of the duplicate/cooldown split (§4.3,
// §8 scenario 4: a same-round repeat is a duplicate, never a cooldown).
func (s *Store) VoteExistsInRound(ctx context.Context, roundID int64, fingerprint string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM votes WHERE round_id = ? AND voter_fingerprint = ?)
	`, roundID, fingerprint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing vote in round: %w", err)
	}
	return exists, nil
}

// LastAcceptedVoteTime returns the most recent cast_at for a fingerprint
// across all rounds, used for the hourly rate limit. Returns zero time if
// the fingerprint has never voted.
func (s *Store) LastAcceptedVoteTime(ctx context.Context, fingerprint string) (time.Time, error) {
	var t sql.NullTime
	err := s.DB.QueryRowContext(ctx, `
		SELECT MAX(cast_at) FROM votes WHERE voter_fingerprint = ?
	`, fingerprint).Scan(&t)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last vote time for fingerprint: %w", err)
	}
	return t.Time, nil
}
