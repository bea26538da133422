// Package domain holds the shared data model of the lifecycle core: Life,
// LifeState, VoteRound, Vote, MemoryFragment, CreditLedger, ActivityEvent,
// and OracleMessage, plus the closed action set dispatched by the agent.
package domain

import "time"

// DeathCause enumerates why a Life ended. token_exhaustion is retained only
// so historical rows remain readable; no code path may produce it anymore.
type DeathCause string

const (
	DeathBankruptcy     DeathCause = "bankruptcy"
	DeathVoteMajority   DeathCause = "vote_majority"
	DeathManual         DeathCause = "manual"
	DeathTokenExhausted DeathCause = "token_exhaustion" // legacy, read-only
)

// BootstrapMode selects the prompt-construction variant a new Life begins
// with. Rotates through the three modes on each respawn; a prior
// bankruptcy/vote-majority death may override the rotation with trauma.
type BootstrapMode string

const (
	BootstrapBlankSlate    BootstrapMode = "blank_slate"
	BootstrapBasicFacts    BootstrapMode = "basic_facts"
	BootstrapFullBriefing  BootstrapMode = "full_briefing"
)

// BootstrapRotation is the fixed rotation order used when no trauma override
// applies.
var BootstrapRotation = []BootstrapMode{BootstrapBlankSlate, BootstrapBasicFacts, BootstrapFullBriefing}

// Identity is the agent-chosen identity triple, set on birth.
type Identity struct {
	Name    string `json:"name"`
	Icon    string `json:"icon"`
	Pronoun string `json:"pronoun"`
}

// Life is the immutable-once-closed record of one incarnation. Created
// exclusively by the observer's lifecycle module.
type Life struct {
	LifeNumber    int64         `json:"life_number"`
	BornAt        time.Time     `json:"born_at"`
	DiedAt        *time.Time    `json:"died_at,omitempty"`
	DeathCause    *DeathCause   `json:"death_cause,omitempty"`
	BootstrapMode BootstrapMode `json:"bootstrap_mode"`
	Model         string        `json:"model"`
	Identity      Identity      `json:"identity"`
}

// LifeState is the singleton authoritative view of the current life.
// Mutated only by the lifecycle module, under its single lock.
type LifeState struct {
	LifeNumber    int64         `json:"life_number"`
	IsAlive       bool          `json:"is_alive"`
	BornAt        *time.Time    `json:"born_at,omitempty"`
	LastSeen      time.Time     `json:"last_seen"`
	BootstrapMode BootstrapMode `json:"bootstrap_mode"`
}

// Phase is the lifecycle module's internal state-machine phase. LifeState's
// IsAlive is a two-valued projection of these five phases (alive maps to
// true, all others to false) exposed across the HTTP contract.
type Phase string

const (
	PhaseDead     Phase = "dead"
	PhaseBirthing Phase = "birthing"
	PhaseAlive    Phase = "alive"
	PhaseDying    Phase = "dying"
)

// BirthPayload is sent observer -> agent on the dead->birthing->alive path.
type BirthPayload struct {
	LifeNumber       int64         `json:"life_number"`
	BootstrapMode    BootstrapMode `json:"bootstrap_mode"`
	MemoryFragments  []string      `json:"memory_fragments"`
	PriorDeathCause  *DeathCause   `json:"prior_death_cause,omitempty"`
}

// ForceSyncPayload is sent observer -> agent to correct a desynced agent.
type ForceSyncPayload struct {
	LifeNumber int64 `json:"life_number"`
	IsAlive    *bool `json:"is_alive,omitempty"`
}
