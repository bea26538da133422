// Package voting implements the public vote-submission path and the
// round-close watcher (§4.3): rate limiting, duplicate detection, and
// majority-death adjudication.
package voting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/store"
)

// SubmitResult mirrors the public API's {ok} / {error: "cooldown"|"duplicate"|"dead"}
// contract (§6).
type SubmitResult string

const (
	SubmitOK        SubmitResult = "ok"
	SubmitCooldown  SubmitResult = "cooldown"
	SubmitDuplicate SubmitResult = "duplicate"
	SubmitDead      SubmitResult = "dead"
)

// CooldownWindow is the hourly per-fingerprint rate limit (§4.3).
const CooldownWindow = time.Hour

// LifeStateReader is the narrow slice of the lifecycle module voting
// needs: whether the current life is alive, and which life/round to vote
// against. Implemented by internal/lifecycle.Module; kept as an interface
// here so voting never imports lifecycle.
type LifeStateReader interface {
	IsAlive() bool
	CurrentLifeNumber() int64
}

// Service drives submissions against the store and, via the Adjudicator
// callback, notifies the lifecycle module when a round's close causes death.
type Service struct {
	store *store.Store
	life  LifeStateReader
	log   zerolog.Logger
}

func NewService(st *store.Store, life LifeStateReader, log zerolog.Logger) *Service {
	return &Service{store: st, life: life, log: log.With().Str("component", "voting").Logger()}
}

// Submit records one ballot, applying the dead-state lock, per-round
// duplicate rule, and hourly cooldown in that order (§4.3): a repeat
// ballot within the fingerprint's own current round is always a
// duplicate, never a cooldown, even though both would otherwise be true
// (§8 scenario 4).
func (s *Service) Submit(ctx context.Context, fingerprint string, choice domain.Choice) (SubmitResult, error) {
	if !s.life.IsAlive() {
		return SubmitDead, nil
	}

	round, err := s.store.OpenRoundForLife(ctx, s.life.CurrentLifeNumber())
	if err != nil {
		return "", fmt.Errorf("failed to load open round: %w", err)
	}

	voted, err := s.store.VoteExistsInRound(ctx, round.ID, fingerprint)
	if err != nil {
		return "", fmt.Errorf("failed to check for duplicate vote: %w", err)
	}
	if voted {
		return SubmitDuplicate, nil
	}

	lastVote, err := s.store.LastAcceptedVoteTime(ctx, fingerprint)
	if err != nil {
		return "", fmt.Errorf("failed to check vote cooldown: %w", err)
	}
	if !lastVote.IsZero() && time.Since(lastVote) < CooldownWindow {
		return SubmitCooldown, nil
	}

	now := time.Now().UTC()
	err = s.store.InsertVote(ctx, domain.Vote{
		RoundID: round.ID, VoterFingerprint: fingerprint, Choice: choice, CastAt: now,
	})
	if err != nil {
		if err == store.ErrDuplicateVote {
			return SubmitDuplicate, nil
		}
		return "", fmt.Errorf("failed to insert vote: %w", err)
	}

	if err := s.store.IncrementVoteCounter(ctx, round.ID, choice); err != nil {
		return "", fmt.Errorf("failed to increment vote counter: %w", err)
	}

	return SubmitOK, nil
}

// OpenRoundCounts returns the live/die tally for the life's current round.
func (s *Service) OpenRoundCounts(ctx context.Context) (domain.VoteRound, error) {
	return s.store.OpenRoundForLife(ctx, s.life.CurrentLifeNumber())
}
