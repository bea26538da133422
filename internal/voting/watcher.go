package voting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/store"
)

// RoundCloseHandler is notified of a round's adjudicated outcome, so the
// lifecycle module can drive the alive->dying transition on death without
// voting importing lifecycle.
type RoundCloseHandler interface {
	OnRoundClosed(ctx context.Context, round domain.VoteRound, outcome domain.RoundStatus)
}

// tickInterval is the watcher's fixed poll cadence: it checks for rounds
// past close every few seconds regardless of how long the configured
// voting window itself is (§4.3: "ticks every few seconds").
const tickInterval = 5 * time.Second

// Watcher ticks periodically, closing and adjudicating any round whose
// closes_at has passed. Grounded on the teacher's ticker-driven
// healthCheckLoop: a single select over ctx.Done()/ticker.C, wg-tracked
// for graceful shutdown.
type Watcher struct {
	store   *store.Store
	handler RoundCloseHandler
	log     zerolog.Logger
}

func NewWatcher(st *store.Store, handler RoundCloseHandler, log zerolog.Logger) *Watcher {
	return &Watcher{store: st, handler: handler, log: log.With().Str("component", "voting_watcher").Logger()}
}

// Run ticks until ctx is cancelled, calling wg.Done on exit.
func (w *Watcher) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	rounds, err := w.store.RoundsPastClose(ctx, time.Now().UTC())
	if err != nil {
		w.log.Error().Err(err).Msg("failed to query rounds past close")
		return
	}

	for _, round := range rounds {
		outcome := round.Adjudicate()
		if err := w.store.CloseRound(ctx, round.ID, outcome); err != nil {
			w.log.Warn().Err(err).Int64("round_id", round.ID).Msg("failed to close round, likely already closed")
			continue
		}
		w.log.Info().Int64("round_id", round.ID).Str("outcome", string(outcome)).
			Int64("live", round.Live).Int64("die", round.Die).Msg("vote round closed")
		w.handler.OnRoundClosed(ctx, round, outcome)
	}
}
