package agentcore

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/metrics"
)

// Step runs one full think-act cycle (§4.5 steps 2-8): compose, call the
// gateway, parse, filter, dispatch, charge, report.
func (a *Agent) Step(ctx context.Context) error {
	start := time.Now()

	pc := a.buildPromptContext(ctx)
	messages := composeMessages(pc)

	a.mu.Lock()
	preferredModel := a.model
	a.mu.Unlock()

	result, err := a.gateway.Complete(ctx, preferredModel, messages)
	if a.metrics != nil {
		a.metrics.ThinkCycleDuration.Observe(time.Since(start).Seconds())
		a.metrics.GatewayCalls.WithLabelValues(preferredModel, metrics.NormalizeErrorOutcome(err)).Inc()
	}
	if err != nil {
		a.reportActivity(ctx, domain.ActivityError, map[string]any{"error": err.Error()})
		return err
	}

	a.rememberThought(result.Output.Thought)

	outcome := a.dispatch(result.Output)

	if outcome.NewModel != "" {
		a.mu.Lock()
		a.model = outcome.NewModel
		lifeNumber := a.lifeNumber
		identity := a.identity
		a.mu.Unlock()
		if err := a.workspace.Save(workspaceState{LifeNumber: lifeNumber, Identity: identity, Model: outcome.NewModel}); err != nil {
			a.log.Error().Err(err).Msg("failed to persist workspace after model switch")
		}
	}

	usd := float64(result.InputTokens+result.OutputTokens) / 1000.0 * costPerThousandTokens
	chargeResult, balance, chargeErr := a.ledger.Charge(ctx, result.Model, result.InputTokens, result.OutputTokens, usd)
	if a.metrics != nil {
		a.metrics.LedgerCharges.WithLabelValues(result.Model, string(chargeResult)).Inc()
	}
	if chargeErr != nil {
		// Ledger.Charge already called log.Fatal on a persist failure; a
		// non-nil error here with no fatal means the process is already
		// exiting, so there is nothing further to do.
		return chargeErr
	}

	payload := outcome.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payload["balance_usd"] = balance
	a.reportActivity(ctx, outcome.Kind, payload)

	return nil
}

func (a *Agent) rememberThought(thought string) {
	if thought == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selfThoughts = append(a.selfThoughts, thought)
	if len(a.selfThoughts) > maxSelfThoughts {
		a.selfThoughts = a.selfThoughts[len(a.selfThoughts)-maxSelfThoughts:]
	}
}

func (a *Agent) buildPromptContext(ctx context.Context) promptContext {
	a.mu.Lock()
	pc := promptContext{
		Identity:      a.identity,
		BootstrapMode: a.bootstrapMode,
		PriorCause:    a.priorCause,
		Fragments:     append([]string(nil), a.fragments...),
		SelfThoughts:  append([]string(nil), a.selfThoughts...),
		// The visitor messaging inbox is an external collaborator out of
		// scope for this module (§2); the unread counter is always
		// reported as zero until that integration exists.
		UnreadMessages: 0,
	}
	a.mu.Unlock()

	var votes voteCounts
	if err := a.observer.Do(ctx, http.MethodGet, "/api/votes", nil, &votes); err != nil {
		a.log.Debug().Err(err).Msg("failed to fetch vote counts for prompt composition")
	}
	pc.VoteLive, pc.VoteDie = votes.Live, votes.Die

	var oracle pendingOracleResponse
	if err := a.observer.Do(ctx, http.MethodGet, "/internal/oracle/pending", nil, &oracle); err != nil {
		a.log.Debug().Err(err).Msg("failed to fetch pending oracle message")
	} else if oracle.Message != nil {
		pc.PendingOracle = oracle.Message
		if ackErr := a.observer.Do(ctx, http.MethodPost, "/internal/oracle/ack", map[string]int64{"id": oracle.Message.ID}, nil); ackErr != nil {
			a.log.Error().Err(ackErr).Int64("oracle_id", oracle.Message.ID).Msg("failed to acknowledge oracle message")
		}
	}

	return pc
}

// reportActivity scrubs the payload through the redaction proxy before it
// ever leaves the process, so a secret-shaped substring surfacing in model
// output cannot reach the public ActivityEvent/SSE stream (§4.8, §8
// invariant 7).
func (a *Agent) reportActivity(ctx context.Context, kind domain.ActivityKind, payload map[string]any) {
	a.mu.Lock()
	lifeNumber := a.lifeNumber
	a.mu.Unlock()

	raw, err := json.Marshal(payload)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to marshal activity payload")
		return
	}

	if a.redactor != nil {
		raw = a.redactor.ScrubBytes(a.cfg.ObserverBaseURL, raw)
	}

	report := activityReport{LifeNumber: lifeNumber, Kind: kind, Payload: raw}
	if err := a.observer.Do(ctx, http.MethodPost, "/internal/activity", report, nil); err != nil {
		a.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to report activity to observer")
	}
}
