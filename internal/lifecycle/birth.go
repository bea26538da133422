package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/digitalentity/aientity/internal/domain"
)

// performBirth executes the dead->birthing->alive sequence (§4.1 row 1-2):
// allocate the next life number, choose a bootstrap mode, gather memory
// fragments, call the agent's /birth, and on success open the life and
// its first vote round.
func (m *Module) performBirth(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != domain.PhaseDead {
		m.mu.Unlock()
		return nil
	}
	m.phase = domain.PhaseBirthing
	m.mu.Unlock()

	maxLife, err := m.store.MaxLifeNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to read max life number: %w", err)
	}
	nextLife := maxLife + 1

	recentCauses, err := m.store.RecentDeathCauses(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to read recent death causes: %w", err)
	}
	var priorCause *domain.DeathCause
	if len(recentCauses) > 0 {
		c := recentCauses[0]
		priorCause = &c
	}

	bootstrapMode := chooseBootstrapMode(maxLife, priorCause)

	fragments, err := m.selectMemoryFragments(ctx)
	if err != nil {
		return fmt.Errorf("failed to select memory fragments: %w", err)
	}

	payload := domain.BirthPayload{
		LifeNumber:      nextLife,
		BootstrapMode:   bootstrapMode,
		MemoryFragments: fragments,
		PriorDeathCause: priorCause,
	}

	if err := m.agentClient.Do(ctx, http.MethodPost, "/birth", payload, nil); err != nil {
		m.revertToDead(ctx, nextLife, err)
		return fmt.Errorf("agent rejected birth: %w", err)
	}

	now := time.Now().UTC()
	life := domain.Life{
		LifeNumber:    nextLife,
		BornAt:        now,
		BootstrapMode: bootstrapMode,
	}
	if err := m.store.CreateLife(ctx, life); err != nil {
		return fmt.Errorf("failed to persist new life: %w", err)
	}

	if _, err := m.store.OpenVoteRound(ctx, nextLife, now, m.cfg.VotingWindow()); err != nil {
		return fmt.Errorf("failed to open first vote round: %w", err)
	}

	m.mu.Lock()
	m.phase = domain.PhaseAlive
	m.lifeNumber = nextLife
	m.bornAt = &now
	m.lastSeen = now
	m.bootstrapMode = bootstrapMode
	m.identity = domain.Identity{}
	m.model = ""
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordTransition(domain.PhaseBirthing, domain.PhaseAlive, "birth")
	}
	m.recordEvent(ctx, nextLife, domain.ActivityBirth, map[string]any{
		"bootstrap_mode": bootstrapMode, "prior_death_cause": priorCause,
	})

	return nil
}

// revertToDead handles a birth attempt the agent rejected after retries
// (§4.1 row 3): record a manual death with an error note and let the
// caller reschedule.
func (m *Module) revertToDead(ctx context.Context, attemptedLife int64, cause error) {
	m.mu.Lock()
	m.phase = domain.PhaseDead
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordTransition(domain.PhaseBirthing, domain.PhaseDead, "birth_failed")
	}
	m.log.Error().Err(cause).Int64("attempted_life", attemptedLife).Msg("birth failed, reverting to dead")
}

// SetIdentity records the identity/model the agent chose on birth,
// surfaced over /api/state.
func (m *Module) SetIdentity(ctx context.Context, identity domain.Identity, model string) error {
	m.mu.Lock()
	lifeNumber := m.lifeNumber
	m.identity = identity
	m.model = model
	m.mu.Unlock()

	return m.store.SetIdentity(ctx, lifeNumber, identity, model)
}

// OnRoundClosed implements voting.RoundCloseHandler: a round adjudicated
// to death drives the alive->dying transition with cause vote_majority.
func (m *Module) OnRoundClosed(ctx context.Context, round domain.VoteRound, outcome domain.RoundStatus) {
	if outcome != domain.RoundClosedDied {
		// Survival: open the next round for the same life so voting
		// continues uninterrupted.
		m.mu.Lock()
		alive := m.phase == domain.PhaseAlive && m.lifeNumber == round.LifeNumber
		m.mu.Unlock()
		if alive {
			if _, err := m.store.OpenVoteRound(ctx, round.LifeNumber, time.Now().UTC(), m.cfg.VotingWindow()); err != nil {
				m.log.Error().Err(err).Int64("life_number", round.LifeNumber).Msg("failed to open next vote round")
			}
		}
		m.recordEvent(ctx, round.LifeNumber, domain.ActivityVoteWindowClose, map[string]any{
			"outcome": outcome, "live": round.Live, "die": round.Die,
		})
		return
	}

	m.recordEvent(ctx, round.LifeNumber, domain.ActivityVoteWindowClose, map[string]any{
		"outcome": outcome, "live": round.Live, "die": round.Die,
	})
	if err := m.TriggerDeath(ctx, domain.DeathVoteMajority, ""); err != nil {
		m.log.Error().Err(err).Int64("life_number", round.LifeNumber).Msg("failed to transition to dying after vote majority")
	}
}

// BudgetCheck implements the budget poller's death trigger (§4.4): called
// once per poll with the agent-reported balance.
func (m *Module) BudgetCheck(ctx context.Context, balanceUSD float64) {
	if balanceUSD > domain.BankruptcyThresholdUSD {
		return
	}
	if err := m.TriggerDeath(ctx, domain.DeathBankruptcy, ""); err != nil {
		m.log.Error().Err(err).Msg("failed to transition to dying after bankruptcy")
	}
}
