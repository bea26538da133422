package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalentity/aientity/internal/config"
	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/httpclient"
	"github.com/digitalentity/aientity/internal/store"
)

// fakeBroadcaster and fakeMetrics stand in for internal/activitystream and
// internal/metrics so these tests never touch a shared Prometheus registry.
type fakeBroadcaster struct {
	events []domain.ActivityEvent
}

func (f *fakeBroadcaster) Publish(event domain.ActivityEvent) { f.events = append(f.events, event) }

type fakeMetrics struct {
	transitions []string
}

func (f *fakeMetrics) RecordTransition(from, to domain.Phase, cause string) {
	f.transitions = append(f.transitions, string(from)+"->"+string(to)+":"+cause)
}

// testConfig arms a respawn delay far longer than any test's lifetime, so
// the async respawn timer armed by completeDeath never fires mid-test
// against a nil agentClient.
func testConfig() *config.Config {
	return &config.Config{
		RespawnDelayMinS: 3600,
		RespawnDelayMaxS: 3600,
		VotingWindowS:    3600,
	}
}

func newTestModule(t *testing.T) (*Module, *fakeBroadcaster, *fakeMetrics) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	broadcaster := &fakeBroadcaster{}
	metrics := &fakeMetrics{}
	agentClient := httpclient.New("http://127.0.0.1:0", "X-Internal-Key", "test", time.Second, zerolog.Nop())

	m := New(testConfig(), st, agentClient, nil, broadcaster, metrics, zerolog.Nop())
	return m, broadcaster, metrics
}

func seedAliveLife(t *testing.T, m *Module, lifeNumber int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.store.CreateLife(ctx, domain.Life{
		LifeNumber: lifeNumber, BornAt: time.Now().UTC(), BootstrapMode: domain.BootstrapBlankSlate,
	}))
	_, err := m.store.OpenVoteRound(ctx, lifeNumber, time.Now().UTC(), time.Hour)
	require.NoError(t, err)

	m.mu.Lock()
	m.phase = domain.PhaseAlive
	m.lifeNumber = lifeNumber
	now := time.Now().UTC()
	m.bornAt = &now
	m.mu.Unlock()
}

func TestTriggerDeathTransitionsAliveToDead(t *testing.T) {
	m, broadcaster, metrics := newTestModule(t)
	seedAliveLife(t, m, 1)

	err := m.TriggerDeath(context.Background(), domain.DeathBankruptcy, "")
	require.NoError(t, err)

	assert.False(t, m.IsAlive())
	assert.Contains(t, metrics.transitions, "alive->dying:bankruptcy")
	assert.Contains(t, metrics.transitions, "dying->dead:bankruptcy")

	life, err := m.store.GetLife(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, life.DiedAt)
	require.NotNil(t, life.DeathCause)
	assert.Equal(t, domain.DeathBankruptcy, *life.DeathCause)
	assert.True(t, life.DiedAt.After(life.BornAt) || life.DiedAt.Equal(life.BornAt), "died_at must be >= born_at (§8 invariant 1)")

	var deathEvents int
	for _, e := range broadcaster.events {
		if e.Kind == domain.ActivityDeath {
			deathEvents++
		}
	}
	assert.Equal(t, 1, deathEvents)
}

// TriggerDeath must be idempotent: only the first caller observing
// phase==alive actually transitions (§5: "at most once... check-and-set
// under the lifecycle lock").
func TestTriggerDeathIsIdempotent(t *testing.T) {
	m, _, metrics := newTestModule(t)
	seedAliveLife(t, m, 1)

	require.NoError(t, m.TriggerDeath(context.Background(), domain.DeathBankruptcy, ""))
	require.NoError(t, m.TriggerDeath(context.Background(), domain.DeathVoteMajority, ""))

	deathTransitions := 0
	for _, tr := range metrics.transitions {
		if tr == "alive->dying:bankruptcy" || tr == "alive->dying:vote_majority" {
			deathTransitions++
		}
	}
	assert.Equal(t, 1, deathTransitions, "a second TriggerDeath call after the phase has left alive must no-op")
}

func TestTriggerDeathNoopsWhenNotAlive(t *testing.T) {
	m, broadcaster, metrics := newTestModule(t)
	// phase starts at domain.PhaseDead from New().

	err := m.TriggerDeath(context.Background(), domain.DeathManual, "")
	require.NoError(t, err)
	assert.Empty(t, metrics.transitions)
	assert.Empty(t, broadcaster.events)
}

// §8 boundary: balance exactly $0.01 is bankruptcy; $0.02 is not.
func TestBudgetCheckBoundary(t *testing.T) {
	t.Run("0.02 does not trigger death", func(t *testing.T) {
		m, _, metrics := newTestModule(t)
		seedAliveLife(t, m, 1)

		m.BudgetCheck(context.Background(), 0.02)
		assert.True(t, m.IsAlive())
		assert.Empty(t, metrics.transitions)
	})

	t.Run("0.01 triggers bankruptcy death", func(t *testing.T) {
		m, _, metrics := newTestModule(t)
		seedAliveLife(t, m, 1)

		m.BudgetCheck(context.Background(), 0.01)
		assert.False(t, m.IsAlive())
		assert.Contains(t, metrics.transitions, "alive->dying:bankruptcy")
	})
}

// §8 scenario 2: a round adjudicated to death drives alive->dying with
// cause vote_majority.
func TestOnRoundClosedDeathTransitionsToDying(t *testing.T) {
	m, _, metrics := newTestModule(t)
	seedAliveLife(t, m, 1)

	round := domain.VoteRound{ID: 1, LifeNumber: 1, Live: 1, Die: 2}
	m.OnRoundClosed(context.Background(), round, domain.RoundClosedDied)

	assert.False(t, m.IsAlive())
	assert.Contains(t, metrics.transitions, "alive->dying:vote_majority")
}

func TestOnRoundClosedSurvivalOpensNextRound(t *testing.T) {
	m, _, metrics := newTestModule(t)
	seedAliveLife(t, m, 1)
	// Close the round seedAliveLife opened so a fresh one can be detected.
	require.NoError(t, m.store.CloseRound(context.Background(), 1, domain.RoundClosedSurvived))

	round := domain.VoteRound{ID: 1, LifeNumber: 1, Live: 2, Die: 2}
	m.OnRoundClosed(context.Background(), round, domain.RoundClosedSurvived)

	assert.True(t, m.IsAlive())
	assert.Empty(t, metrics.transitions)

	next, err := m.store.OpenRoundForLife(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundOpen, next.Status)
}

func TestStateProjectsIdentityAndModelSeparately(t *testing.T) {
	m, _, _ := newTestModule(t)
	seedAliveLife(t, m, 1)
	require.NoError(t, m.SetIdentity(context.Background(), domain.Identity{Name: "Nova"}, "model-a"))

	state := m.State()
	identity, model := m.Identity()

	assert.Equal(t, int64(1), state.LifeNumber)
	assert.True(t, state.IsAlive)
	assert.Equal(t, "Nova", identity.Name)
	assert.Equal(t, "model-a", model)
}
