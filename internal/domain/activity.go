package domain

import (
	"encoding/json"
	"time"
)

// ActivityKind is the closed set of ActivityEvent kinds. "blocked" is an
// expansion beyond the base kind list, produced by the content filter.
type ActivityKind string

const (
	ActivityThink           ActivityKind = "think"
	ActivityAct             ActivityKind = "act"
	ActivityError           ActivityKind = "error"
	ActivityOracle          ActivityKind = "oracle"
	ActivityBirth           ActivityKind = "birth"
	ActivityDeath           ActivityKind = "death"
	ActivityVoteWindowClose ActivityKind = "vote_window_close"
	ActivityBlocked         ActivityKind = "blocked"
)

// ActivityEvent is the append-only public timeline record. SeqNum is
// assigned at observer receipt and is what SSE consumers track to
// deduplicate across reconnects (§6).
type ActivityEvent struct {
	SeqNum     int64           `json:"seq"`
	LifeNumber int64           `json:"life_number"`
	Timestamp  time.Time       `json:"ts"`
	Kind       ActivityKind    `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
}

// OracleKind distinguishes the register of an administrative directive.
type OracleKind string

const (
	OracleDirect    OracleKind = "oracle"
	OracleWhisper   OracleKind = "whisper"
	OracleArchitect OracleKind = "architect"
)

// OracleMessage is an administrative directive delivered out-of-band to
// the agent, surfaced in its next prompt composition.
type OracleMessage struct {
	ID            int64      `json:"id"`
	Kind          OracleKind `json:"kind"`
	Text          string     `json:"text"`
	DeliveredAt   time.Time  `json:"delivered_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// MemoryFragment is an observer-generated short text derived from a prior
// Life's activity, stored per-life and presented (1-10 at random) to the
// next incarnation.
type MemoryFragment struct {
	ID         int64  `json:"id"`
	LifeNumber int64  `json:"life_number"`
	Text       string `json:"text"`
}

// AuditRecord is the observer's internal accountability log, distinct from
// the public ActivityEvent stream: who did what admin/vote action, never
// exposed over the public API.
type AuditRecord struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Actor       string    `json:"actor"`
	EventType   string    `json:"event_type"`
	Resource    string    `json:"resource,omitempty"`
	Action      string    `json:"action"`
	Success     bool      `json:"success"`
	ErrorMsg    string    `json:"error_message,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	DurationMs  int64     `json:"duration_ms,omitempty"`
}
