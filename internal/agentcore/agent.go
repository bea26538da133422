// Package agentcore implements the agent service's think-act loop (§4.5):
// identity bootstrap over the ephemeral workspace, prompt composition from
// identity/fragments/recent thoughts/vote tally/oracle messages, a call
// through the model gateway, content-filtered closed-set action dispatch,
// credit-ledger charging, and activity reporting back to the observer.
// The Run/Step split and ctx/wg cancellation follow the teacher's
// orchestrator Run loop (internal/orchestrator/orchestrator.go).
package agentcore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/digitalentity/aientity/internal/config"
	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/httpclient"
	"github.com/digitalentity/aientity/internal/ledger"
	"github.com/digitalentity/aientity/internal/llmgateway"
	"github.com/digitalentity/aientity/internal/metrics"
	"github.com/digitalentity/aientity/internal/redaction"
)

// costPerThousandTokens is a flat approximation of the model gateway's
// pricing, applied uniformly across models and input/output tokens; the
// gateway's actual billing contract is external (§2), so this is the
// agent's own estimate used to charge the ledger after each call.
const costPerThousandTokens = 0.002

// Agent holds all per-process mutable state for the think-act loop. State
// that must survive a process restart within the same life lives in
// Workspace; state that must survive death lives in the ledger.
type Agent struct {
	cfg       *config.Config
	workspace *Workspace
	ledger    *ledger.Ledger
	gateway   *llmgateway.Client
	observer  *httpclient.Client
	redactor  *redaction.RoundTripper
	metrics   *metrics.Agent
	log       zerolog.Logger

	mu            sync.Mutex
	lifeNumber    int64
	alive         bool
	identity      domain.Identity
	model         string
	bootstrapMode domain.BootstrapMode
	priorCause    *domain.DeathCause
	fragments     []string
	selfThoughts  []string

	wake chan struct{}
}

func New(cfg *config.Config, ws *Workspace, led *ledger.Ledger, gateway *llmgateway.Client, observer *httpclient.Client, redactor *redaction.RoundTripper, m *metrics.Agent, log zerolog.Logger) *Agent {
	a := &Agent{
		cfg:       cfg,
		workspace: ws,
		ledger:    led,
		gateway:   gateway,
		observer:  observer,
		redactor:  redactor,
		metrics:   m,
		log:       log.With().Str("component", "agentcore").Logger(),
		wake:      make(chan struct{}, 1),
	}

	if state, ok, err := ws.Load(); err != nil {
		log.Error().Err(err).Msg("failed to load workspace state, starting unborn")
	} else if ok {
		a.mu.Lock()
		a.lifeNumber = state.LifeNumber
		a.identity = state.Identity
		a.model = state.Model
		a.alive = state.LifeNumber > 0
		a.mu.Unlock()
	}
	return a
}

// State implements GET /state.
type State struct {
	LifeNumber int64  `json:"life_number"`
	IsAlive    bool   `json:"is_alive"`
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	Pronoun    string `json:"pronoun"`
	Model      string `json:"model"`
}

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		LifeNumber: a.lifeNumber,
		IsAlive:    a.alive,
		Name:       a.identity.Name,
		Icon:       a.identity.Icon,
		Pronoun:    a.identity.Pronoun,
		Model:      a.model,
	}
}

// Budget implements GET /budget.
func (a *Agent) Budget() domain.LedgerStatus {
	return a.ledger.Status()
}

// defaultModel picks the first entry of the configured tier as the
// starting model for a new life.
func (a *Agent) defaultModel() string {
	if len(a.cfg.ModelTier) == 0 {
		return ""
	}
	return a.cfg.ModelTier[0]
}

// HandleBirth implements POST /birth (§4.5 step "on /birth"): persist the
// new life's identity and bootstrap material, wipe anything left over
// from the prior life, and wake the think-act loop.
func (a *Agent) HandleBirth(ctx context.Context, payload domain.BirthPayload) error {
	if payload.LifeNumber <= 0 {
		return fmt.Errorf("birth payload has non-positive life_number %d", payload.LifeNumber)
	}

	if err := a.workspace.Wipe(); err != nil {
		a.log.Warn().Err(err).Msg("failed to wipe workspace before birth, continuing")
	}

	identity := domain.Identity{
		Name:    sanitizeName(fmt.Sprintf("Entity-%d", payload.LifeNumber)),
		Icon:    "circle",
		Pronoun: "they",
	}
	model := a.defaultModel()

	a.mu.Lock()
	a.lifeNumber = payload.LifeNumber
	a.alive = true
	a.identity = identity
	a.model = model
	a.bootstrapMode = payload.BootstrapMode
	a.priorCause = payload.PriorDeathCause
	a.fragments = payload.MemoryFragments
	a.selfThoughts = nil
	a.mu.Unlock()

	if err := a.workspace.Save(workspaceState{LifeNumber: payload.LifeNumber, Identity: identity, Model: model}); err != nil {
		return fmt.Errorf("failed to persist workspace after birth: %w", err)
	}

	if err := a.observer.Do(ctx, http.MethodPost, "/internal/identity", identityReport{
		LifeNumber: payload.LifeNumber, Identity: identity, Model: model,
	}, nil); err != nil {
		a.log.Error().Err(err).Msg("failed to report chosen identity to observer")
	}

	a.wakeLoop()
	return nil
}

// HandleForceSync implements POST /force-sync: the observer is
// authoritative, so the agent adopts whatever it is told and restarts its
// loop (§4.2 rule 4: an alive->dead correction must stop the think-act
// loop).
func (a *Agent) HandleForceSync(payload domain.ForceSyncPayload) {
	a.mu.Lock()
	a.lifeNumber = payload.LifeNumber
	if payload.IsAlive != nil {
		a.alive = *payload.IsAlive
	}
	a.mu.Unlock()
	a.wakeLoop()
}

func (a *Agent) wakeLoop() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

type identityReport struct {
	LifeNumber int64           `json:"life_number"`
	Identity   domain.Identity `json:"identity"`
	Model      string          `json:"model"`
}

type voteCounts struct {
	Live int64 `json:"live"`
	Die  int64 `json:"die"`
}

type pendingOracleResponse struct {
	Message *domain.OracleMessage `json:"message"`
}

type activityReport struct {
	LifeNumber int64               `json:"life_number"`
	Kind       domain.ActivityKind `json:"kind"`
	Payload    json.RawMessage     `json:"payload"`
}

// Run drives the think-act loop until ctx is cancelled, sleeping a
// randomized interval between cycles and waking early on birth/force-sync
// (§9 ctx/wg cancellation, the teacher's Orchestrator.Run pattern).
func (a *Agent) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		a.mu.Lock()
		alive := a.alive
		a.mu.Unlock()

		if !alive {
			select {
			case <-ctx.Done():
				return
			case <-a.wake:
				continue
			}
		}

		minD, maxD := a.cfg.ThinkIntervalRange()
		sleep := randomDuration(minD, maxD)

		select {
		case <-ctx.Done():
			return
		case <-a.wake:
			continue
		case <-time.After(sleep):
		}

		a.mu.Lock()
		stillAlive := a.alive
		a.mu.Unlock()
		if !stillAlive {
			continue
		}

		if err := a.Step(ctx); err != nil {
			a.log.Error().Err(err).Msg("think-act cycle failed")
		}
	}
}

func randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
