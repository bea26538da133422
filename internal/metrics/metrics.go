// Package metrics exposes the Prometheus counters, gauges, and
// histograms named in SPEC_FULL.md §4.11, following the teacher's
// promauto + bounded-cardinality-label idiom (internal/metrics/metrics.go):
// every label is normalized to a small fixed vocabulary so metric series
// cardinality never grows with request content.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/digitalentity/aientity/internal/domain"
)

// Bounded reconciliation-rule labels for the sync validator.
const (
	SyncRuleBirthMissing = "birth_missing"
	SyncRuleAgentBehind   = "agent_behind"
	SyncRuleAgentAhead    = "agent_ahead"
	SyncRuleAliveMismatch = "alive_mismatch"
	SyncRuleNoop          = "noop"
)

// Bounded outcome labels for vote submission.
const (
	VoteOutcomeOK        = "ok"
	VoteOutcomeCooldown  = "cooldown"
	VoteOutcomeDuplicate = "duplicate"
	VoteOutcomeDead      = "dead"
)

// Bounded outcome labels for the budget poller.
const (
	BudgetOutcomeOK          = "ok"
	BudgetOutcomeBankrupt    = "bankrupt"
	BudgetOutcomeUnreachable = "unreachable"
)

// Bounded outcome labels for a model-gateway call.
const (
	GatewayOutcomeSuccess = "success"
	GatewayOutcomeRateLimited = "rate_limited"
	GatewayOutcomeError   = "error"
)

// NormalizeErrorOutcome maps an arbitrary error into one of a small fixed
// set of outcome labels, so a model-gateway error message never leaks
// into a metric label's cardinality.
func NormalizeErrorOutcome(err error) string {
	if err == nil {
		return GatewayOutcomeSuccess
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") {
		return GatewayOutcomeRateLimited
	}
	return GatewayOutcomeError
}

// Observer holds the observer service's Prometheus instruments.
type Observer struct {
	LifecycleTransitions *prometheus.CounterVec
	OpenVoteRounds       prometheus.Gauge
	VoteSubmissions      *prometheus.CounterVec
	SyncReconciliations  *prometheus.CounterVec
	BudgetPollOutcomes   *prometheus.CounterVec
}

func NewObserver() *Observer {
	return &Observer{
		LifecycleTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aientity_lifecycle_transitions_total",
			Help: "Count of lifecycle phase transitions by (from, to, cause).",
		}, []string{"from", "to", "cause"}),
		OpenVoteRounds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "aientity_open_vote_rounds",
			Help: "Number of currently open vote rounds (0 or 1 in the core model).",
		}),
		VoteSubmissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aientity_vote_submissions_total",
			Help: "Count of vote submissions by result.",
		}, []string{"result"}),
		SyncReconciliations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aientity_sync_reconciliations_total",
			Help: "Count of sync validator reconciliation actions by rule.",
		}, []string{"rule"}),
		BudgetPollOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aientity_budget_poll_outcomes_total",
			Help: "Count of budget poll outcomes.",
		}, []string{"outcome"}),
	}
}

// RecordTransition implements lifecycle.TransitionMetrics.
func (o *Observer) RecordTransition(from, to domain.Phase, cause string) {
	o.LifecycleTransitions.WithLabelValues(string(from), string(to), cause).Inc()
}

// Agent holds the agent service's Prometheus instruments.
type Agent struct {
	ThinkCycleDuration  prometheus.Histogram
	GatewayCalls        *prometheus.CounterVec
	LedgerCharges       *prometheus.CounterVec
	ContentFilterBlocks *prometheus.CounterVec
	RedactionMatches    *prometheus.CounterVec
}

func NewAgent() *Agent {
	return &Agent{
		ThinkCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aientity_think_cycle_duration_seconds",
			Help:    "Duration of a full think-act cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		GatewayCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aientity_model_gateway_calls_total",
			Help: "Count of model gateway calls by (model, outcome).",
		}, []string{"model", "outcome"}),
		LedgerCharges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aientity_ledger_charges_total",
			Help: "Count of ledger charges by (model, outcome).",
		}, []string{"model", "outcome"}),
		ContentFilterBlocks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aientity_content_filter_blocks_total",
			Help: "Count of content filter blocks by category.",
		}, []string{"category"}),
		RedactionMatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aientity_redaction_matches_total",
			Help: "Count of redaction proxy matches by pattern name (never the matched value).",
		}, []string{"pattern"}),
	}
}
