package lifecycle

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/digitalentity/aientity/internal/domain"
)

type agentState struct {
	LifeNumber int64 `json:"life_number"`
	IsAlive    bool  `json:"is_alive"`
}

// SyncValidator periodically reconciles the agent's self-reported state
// against the observer's authoritative LifeState (§4.2). Network calls
// happen outside the lifecycle lock; only the resulting mutation is
// taken under it.
type SyncValidator struct {
	module   *Module
	interval time.Duration
}

func NewSyncValidator(module *Module, interval time.Duration) *SyncValidator {
	return &SyncValidator{module: module, interval: interval}
}

func (v *SyncValidator) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.tick(ctx)
		}
	}
}

func (v *SyncValidator) tick(ctx context.Context) {
	m := v.module

	var reported agentState
	err := m.agentClient.Do(ctx, http.MethodGet, "/state", nil, &reported)
	if err != nil {
		m.log.Debug().Err(err).Msg("sync validator: agent unreachable, skipping this tick")
		return
	}
	m.MarkSeen()

	observed := m.State()

	switch {
	case reported.LifeNumber == 0:
		v.sendBirthIfAlive(ctx, observed)
	case reported.LifeNumber < observed.LifeNumber:
		v.forceSync(ctx, observed.LifeNumber, &observed.IsAlive)
	case reported.LifeNumber > observed.LifeNumber:
		m.log.Warn().Int64("agent_life", reported.LifeNumber).Int64("observer_life", observed.LifeNumber).
			Msg("sync validator: agent reports a life number ahead of observer, correcting")
		v.forceSync(ctx, observed.LifeNumber, &observed.IsAlive)
	case reported.IsAlive != observed.IsAlive:
		v.forceSync(ctx, observed.LifeNumber, &observed.IsAlive)
	}
}

// sendBirthIfAlive handles a freshly-started agent that hasn't been born
// yet; this is not treated as desync (§4.2 rule 1).
func (v *SyncValidator) sendBirthIfAlive(ctx context.Context, observed domain.LifeState) {
	if !observed.IsAlive {
		return
	}
	m := v.module
	identity, model := m.Identity()

	fragments, err := m.selectMemoryFragments(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("sync validator: failed to select memory fragments for resend")
		fragments = nil
	}

	payload := domain.BirthPayload{
		LifeNumber:      observed.LifeNumber,
		BootstrapMode:   observed.BootstrapMode,
		MemoryFragments: fragments,
	}
	if err := m.agentClient.Do(ctx, http.MethodPost, "/birth", payload, nil); err != nil {
		m.log.Error().Err(err).Msg("sync validator: failed to resend birth to unsynced agent")
		return
	}
	if err := m.SetIdentity(ctx, identity, model); err != nil {
		m.log.Error().Err(err).Msg("sync validator: failed to persist identity after resync birth")
	}
}

func (v *SyncValidator) forceSync(ctx context.Context, lifeNumber int64, isAlive *bool) {
	payload := domain.ForceSyncPayload{LifeNumber: lifeNumber, IsAlive: isAlive}
	if err := v.module.agentClient.Do(ctx, http.MethodPost, "/force-sync", payload, nil); err != nil {
		v.module.log.Error().Err(err).Int64("life_number", lifeNumber).Msg("sync validator: force-sync call failed")
	}
}
