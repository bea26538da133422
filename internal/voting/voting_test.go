package voting

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/store"
)

// fakeLifeReader is a minimal LifeStateReader for exercising Submit without
// importing internal/lifecycle (which would import this package in turn).
type fakeLifeReader struct {
	alive      bool
	lifeNumber int64
}

func (f *fakeLifeReader) IsAlive() bool          { return f.alive }
func (f *fakeLifeReader) CurrentLifeNumber() int64 { return f.lifeNumber }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedLifeWithOpenRound(t *testing.T, st *store.Store, lifeNumber int64, window time.Duration) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateLife(ctx, domain.Life{
		LifeNumber: lifeNumber, BornAt: time.Now().UTC(), BootstrapMode: domain.BootstrapBlankSlate,
	}))
	_, err := st.OpenVoteRound(ctx, lifeNumber, time.Now().UTC(), window)
	require.NoError(t, err)
}

func TestSubmitRejectsWhenDead(t *testing.T) {
	st := newTestStore(t)
	life := &fakeLifeReader{alive: false, lifeNumber: 1}
	svc := NewService(st, life, zerolog.Nop())

	result, err := svc.Submit(context.Background(), "fingerprint-a", domain.ChoiceDie)
	require.NoError(t, err)
	assert.Equal(t, SubmitDead, result)
}

// §8 invariant 3: no two vote rows share (round_id, fingerprint).
func TestSubmitRejectsDuplicateWithinSameRound(t *testing.T) {
	st := newTestStore(t)
	seedLifeWithOpenRound(t, st, 1, time.Hour)
	life := &fakeLifeReader{alive: true, lifeNumber: 1}
	svc := NewService(st, life, zerolog.Nop())

	first, err := svc.Submit(context.Background(), "fingerprint-a", domain.ChoiceLive)
	require.NoError(t, err)
	assert.Equal(t, SubmitOK, first)

	second, err := svc.Submit(context.Background(), "fingerprint-a", domain.ChoiceDie)
	require.NoError(t, err)
	assert.Equal(t, SubmitDuplicate, second)
}

// §8 invariant 4 / scenario 4: a fingerprint may cast at most one accepted
// vote per hour, even across different rounds.
func TestSubmitEnforcesHourlyCooldownAcrossRounds(t *testing.T) {
	st := newTestStore(t)
	seedLifeWithOpenRound(t, st, 1, time.Millisecond)
	life := &fakeLifeReader{alive: true, lifeNumber: 1}
	svc := NewService(st, life, zerolog.Nop())

	first, err := svc.Submit(context.Background(), "fingerprint-a", domain.ChoiceLive)
	require.NoError(t, err)
	require.Equal(t, SubmitOK, first)

	// Open a fresh round for the same life (simulating the watcher closing
	// the first one) and attempt to vote again immediately.
	_, err = st.OpenVoteRound(context.Background(), 1, time.Now().UTC(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, st.CloseRound(context.Background(), 1, domain.RoundClosedSurvived))

	second, err := svc.Submit(context.Background(), "fingerprint-a", domain.ChoiceLive)
	require.NoError(t, err)
	assert.Equal(t, SubmitCooldown, second)
}

func TestSubmitAcceptsDifferentFingerprints(t *testing.T) {
	st := newTestStore(t)
	seedLifeWithOpenRound(t, st, 1, time.Hour)
	life := &fakeLifeReader{alive: true, lifeNumber: 1}
	svc := NewService(st, life, zerolog.Nop())

	for _, fp := range []string{"a", "b", "c"} {
		result, err := svc.Submit(context.Background(), fp, domain.ChoiceDie)
		require.NoError(t, err)
		assert.Equal(t, SubmitOK, result)
	}

	round, err := svc.OpenRoundCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), round.Die)
	assert.Equal(t, int64(0), round.Live)
}

// fakeRoundCloseHandler records OnRoundClosed invocations for the watcher
// tests, standing in for internal/lifecycle.Module.
type fakeRoundCloseHandler struct {
	closed []domain.RoundStatus
}

func (f *fakeRoundCloseHandler) OnRoundClosed(_ context.Context, _ domain.VoteRound, outcome domain.RoundStatus) {
	f.closed = append(f.closed, outcome)
}

// §8 scenario 2: die x3 from distinct fingerprints closes the round as died.
func TestWatcherClosesExpiredRoundAndAdjudicatesDeath(t *testing.T) {
	st := newTestStore(t)
	seedLifeWithOpenRound(t, st, 1, -time.Second) // already past closes_at
	life := &fakeLifeReader{alive: true, lifeNumber: 1}
	svc := NewService(st, life, zerolog.Nop())

	for _, fp := range []string{"a", "b", "c"} {
		_, err := svc.Submit(context.Background(), fp, domain.ChoiceDie)
		require.NoError(t, err)
	}

	handler := &fakeRoundCloseHandler{}
	w := NewWatcher(st, handler, zerolog.Nop())
	w.tick(context.Background())

	require.Len(t, handler.closed, 1)
	assert.Equal(t, domain.RoundClosedDied, handler.closed[0])

	round, err := st.OpenRoundForLife(context.Background(), 1)
	assert.Error(t, err, "the round should no longer be open once closed")
	assert.Empty(t, round)
}

func TestWatcherSurvivesBelowMinimumTotal(t *testing.T) {
	st := newTestStore(t)
	seedLifeWithOpenRound(t, st, 1, -time.Second)
	life := &fakeLifeReader{alive: true, lifeNumber: 1}
	svc := NewService(st, life, zerolog.Nop())

	_, err := svc.Submit(context.Background(), "a", domain.ChoiceDie)
	require.NoError(t, err)

	handler := &fakeRoundCloseHandler{}
	w := NewWatcher(st, handler, zerolog.Nop())
	w.tick(context.Background())

	require.Len(t, handler.closed, 1)
	assert.Equal(t, domain.RoundClosedSurvived, handler.closed[0])
}

func TestWatcherIgnoresRoundsNotYetPastClose(t *testing.T) {
	st := newTestStore(t)
	seedLifeWithOpenRound(t, st, 1, time.Hour)

	handler := &fakeRoundCloseHandler{}
	w := NewWatcher(st, handler, zerolog.Nop())
	w.tick(context.Background())

	assert.Empty(t, handler.closed)
}
