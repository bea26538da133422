// Package lifecycle is the observer's authoritative life-state machine
// (§4.1): dead -> birthing -> alive -> dying -> dead, gated behind a
// single lock, with a single-shot idempotent respawn scheduler. All
// external callers (HTTP handlers, the voting watcher, the budget poller,
// the sync validator) interact only through Module's methods, never by
// touching state directly (§9).
package lifecycle

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/digitalentity/aientity/internal/audit"
	"github.com/digitalentity/aientity/internal/config"
	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/httpclient"
	"github.com/digitalentity/aientity/internal/store"
)

// Broadcaster fans an ActivityEvent out to SSE subscribers. Implemented by
// internal/activitystream.Hub; kept as an interface so lifecycle never
// imports the transport layer.
type Broadcaster interface {
	Publish(event domain.ActivityEvent)
}

// TransitionMetrics records the Prometheus lifecycle-transition counters
// of §4.11. Implemented by internal/metrics.
type TransitionMetrics interface {
	RecordTransition(from, to domain.Phase, cause string)
}

// Module owns the single lifecycle lock and the in-memory projection of
// the current Life.
type Module struct {
	mu sync.Mutex

	phase         domain.Phase
	lifeNumber    int64
	bornAt        *time.Time
	lastSeen      time.Time
	bootstrapMode domain.BootstrapMode
	identity      domain.Identity
	model         string

	respawnGeneration int64
	respawnTimer      *time.Timer

	store       *store.Store
	cfg         *config.Config
	agentClient *httpclient.Client
	auditor     *audit.Logger
	broadcaster Broadcaster
	metrics     TransitionMetrics
	log         zerolog.Logger

	budgetFlight singleflight.Group
}

func New(cfg *config.Config, st *store.Store, agentClient *httpclient.Client, auditor *audit.Logger, broadcaster Broadcaster, metrics TransitionMetrics, log zerolog.Logger) *Module {
	return &Module{
		phase:       domain.PhaseDead,
		store:       st,
		cfg:         cfg,
		agentClient: agentClient,
		auditor:     auditor,
		broadcaster: broadcaster,
		metrics:     metrics,
		log:         log.With().Str("component", "lifecycle").Logger(),
	}
}

// Bootstrap loads the most recent life from the store (if any) to
// initialize in-memory state, then ensures a birth is pending if nothing
// is currently alive. Called once at process start, before the HTTP
// server and background loops start.
func (m *Module) Bootstrap(ctx context.Context) error {
	maxLife, err := m.store.MaxLifeNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to read max life number at bootstrap: %w", err)
	}

	if maxLife == 0 {
		m.scheduleRespawn(0)
		return nil
	}

	life, err := m.store.GetLife(ctx, maxLife)
	if err != nil {
		return fmt.Errorf("failed to load life %d at bootstrap: %w", maxLife, err)
	}

	m.mu.Lock()
	if life.DiedAt == nil {
		m.phase = domain.PhaseAlive
		m.lifeNumber = life.LifeNumber
		m.bornAt = &life.BornAt
		m.lastSeen = time.Now().UTC()
		m.bootstrapMode = life.BootstrapMode
		m.identity = life.Identity
		m.model = life.Model
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	m.scheduleRespawn(0)
	return nil
}

// IsAlive implements voting.LifeStateReader.
func (m *Module) IsAlive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == domain.PhaseAlive
}

// CurrentLifeNumber implements voting.LifeStateReader.
func (m *Module) CurrentLifeNumber() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifeNumber
}

// State returns the public projection served over /api/state.
func (m *Module) State() domain.LifeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.LifeState{
		LifeNumber:    m.lifeNumber,
		IsAlive:       m.phase == domain.PhaseAlive,
		BornAt:        m.bornAt,
		LastSeen:      m.lastSeen,
		BootstrapMode: m.bootstrapMode,
	}
}

// Identity returns the current life's chosen identity and model, used to
// render /api/state's model/identity fields.
func (m *Module) Identity() (domain.Identity, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, m.model
}

// MarkSeen records that the agent was successfully reached, used by the
// sync validator's convergence bookkeeping.
func (m *Module) MarkSeen() {
	m.mu.Lock()
	m.lastSeen = time.Now().UTC()
	m.mu.Unlock()
}

// budgetReport mirrors the agent's GET /budget response; only the balance
// is needed here.
type budgetReport struct {
	BalanceUSD float64 `json:"balance_usd"`
}

// BudgetBalance fetches the agent's current ledger balance for display on
// GET /api/state. Unlike BudgetCheck (the poller's death trigger), a
// failure here is just reported as zero balance to the caller. Concurrent
// callers (an HTTP request racing the budget poller's own tick) collapse
// onto a single loopback call via singleflight, the way the teacher's
// market data cache intends to dedupe concurrent upstream fetches.
func (m *Module) BudgetBalance(ctx context.Context) (float64, error) {
	v, err, _ := m.budgetFlight.Do("budget", func() (any, error) {
		var report budgetReport
		if err := m.agentClient.Do(ctx, "GET", "/budget", nil, &report); err != nil {
			return 0.0, err
		}
		return report.BalanceUSD, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// RecordAgentActivity appends an agent-reported ActivityEvent (think, act,
// error, blocked) and fans it out, and marks the agent as seen since
// receiving it is itself proof of liveness.
func (m *Module) RecordAgentActivity(ctx context.Context, lifeNumber int64, kind domain.ActivityKind, payload any) {
	m.MarkSeen()
	m.recordEvent(ctx, lifeNumber, kind, payload)
}

// RecordOracleDelivered appends an ActivityEvent for an OracleMessage
// delivered to the current life (§4.9/§6 POST /api/god/oracle).
func (m *Module) RecordOracleDelivered(ctx context.Context, text string) {
	m.recordEvent(ctx, m.CurrentLifeNumber(), domain.ActivityOracle, map[string]any{"text": text})
}

// recordEvent appends an ActivityEvent and fans it out, logging failures
// without ever letting a store or broadcast error block a transition.
func (m *Module) recordEvent(ctx context.Context, lifeNumber int64, kind domain.ActivityKind, payload any) {
	event, err := m.store.AppendActivity(ctx, lifeNumber, kind, payload)
	if err != nil {
		m.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to append activity event")
		return
	}
	if m.broadcaster != nil {
		m.broadcaster.Publish(event)
	}
}

// Kill is the admin-triggered alive->dying transition (§6 POST /api/kill).
func (m *Module) Kill(ctx context.Context, actor string) error {
	return m.TriggerDeath(ctx, domain.DeathManual, actor)
}

// TriggerDeath performs the alive->dying->dead sequence for cause,
// idempotently: only the first caller to observe phase==alive actually
// transitions; later callers racing for the same event no-op.
func (m *Module) TriggerDeath(ctx context.Context, cause domain.DeathCause, actor string) error {
	m.mu.Lock()
	if m.phase != domain.PhaseAlive {
		m.mu.Unlock()
		return nil
	}
	m.phase = domain.PhaseDying
	lifeNumber := m.lifeNumber
	m.mu.Unlock()

	now := time.Now().UTC()
	if err := m.store.CloseLife(ctx, lifeNumber, now, cause); err != nil {
		m.log.Error().Err(err).Int64("life_number", lifeNumber).Msg("failed to close life record")
	}
	// Any round still open at this point wasn't closed by vote
	// adjudication (that path already closed it before calling us) — it
	// ends with the life, not by majority, so it closes as survived.
	if round, err := m.store.OpenRoundForLife(ctx, lifeNumber); err == nil {
		_ = m.store.CloseRound(ctx, round.ID, domain.RoundClosedSurvived)
	}

	m.recordEvent(ctx, lifeNumber, domain.ActivityDeath, map[string]any{"cause": cause})
	if m.metrics != nil {
		m.metrics.RecordTransition(domain.PhaseAlive, domain.PhaseDying, string(cause))
	}
	if m.auditor != nil && actor != "" {
		m.auditor.Log(ctx, audit.Entry{Actor: actor, EventType: "lifecycle", Action: "kill", Resource: fmt.Sprintf("life:%d", lifeNumber), Success: true})
	}

	m.completeDeath(ctx, lifeNumber, cause)
	return nil
}

// completeDeath finishes the dying->dead transition and schedules respawn.
func (m *Module) completeDeath(ctx context.Context, lifeNumber int64, cause domain.DeathCause) {
	m.mu.Lock()
	m.phase = domain.PhaseDead
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordTransition(domain.PhaseDying, domain.PhaseDead, string(cause))
	}

	minDelay, maxDelay := m.cfg.RespawnDelayRange()
	delay := randomDuration(minDelay, maxDelay)
	m.log.Info().Int64("life_number", lifeNumber).Dur("respawn_in", delay).Msg("scheduling respawn")
	m.scheduleRespawn(delay)
}

func randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// scheduleRespawn arms a single-shot timer. The generation counter makes
// duplicate fires (e.g. a racing manual /api/respawn and the natural
// timer) idempotent: only the fire that matches the generation captured
// at schedule time proceeds.
func (m *Module) scheduleRespawn(after time.Duration) {
	m.mu.Lock()
	m.respawnGeneration++
	gen := m.respawnGeneration
	if m.respawnTimer != nil {
		m.respawnTimer.Stop()
	}
	m.respawnTimer = time.AfterFunc(after, func() { m.fireRespawn(gen) })
	m.mu.Unlock()
}

func (m *Module) fireRespawn(gen int64) {
	m.mu.Lock()
	if gen != m.respawnGeneration {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.performBirth(ctx); err != nil {
		m.log.Error().Err(err).Msg("birth attempt failed, will retry")
		m.scheduleRespawn(10 * time.Second)
	}
}

// Respawn is the admin-triggered immediate respawn (§6 POST /api/respawn):
// it fires the respawn path immediately regardless of the pending timer.
func (m *Module) Respawn(ctx context.Context, actor string) error {
	m.mu.Lock()
	if m.phase != domain.PhaseDead {
		m.mu.Unlock()
		return domain.Conflict("respawn requires the current life to be dead", nil)
	}
	m.mu.Unlock()

	if m.auditor != nil {
		m.auditor.Log(ctx, audit.Entry{Actor: actor, EventType: "lifecycle", Action: "respawn", Success: true})
	}
	m.scheduleRespawn(0)
	return nil
}

// ForceAlive is the admin escape hatch (§6 POST /api/force-alive): if the
// current life is dying, it reverts the transition back to alive without
// recording a death, for operator-corrected false positives. No-ops if
// already alive or already fully dead.
func (m *Module) ForceAlive(ctx context.Context, actor string) error {
	m.mu.Lock()
	if m.phase != domain.PhaseDying {
		m.mu.Unlock()
		return domain.Conflict("force-alive only applies while a life is dying", nil)
	}
	m.phase = domain.PhaseAlive
	lifeNumber := m.lifeNumber
	m.mu.Unlock()

	if m.auditor != nil {
		m.auditor.Log(ctx, audit.Entry{Actor: actor, EventType: "lifecycle", Action: "force-alive", Resource: fmt.Sprintf("life:%d", lifeNumber), Success: true})
	}
	m.recordEvent(ctx, lifeNumber, domain.ActivityBirth, map[string]any{"forced_alive": true})
	return nil
}
