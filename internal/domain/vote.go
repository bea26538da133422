package domain

import "time"

// Choice is a single voter's ballot.
type Choice string

const (
	ChoiceLive Choice = "live"
	ChoiceDie  Choice = "die"
)

// RoundStatus tracks a VoteRound's lifecycle: transitions only open ->
// closed_*, never backwards.
type RoundStatus string

const (
	RoundOpen          RoundStatus = "open"
	RoundClosedSurvived RoundStatus = "closed_survived"
	RoundClosedDied     RoundStatus = "closed_died"
)

// VoteRound is one tally window associated with a single Life.
type VoteRound struct {
	ID        int64       `json:"id"`
	LifeNumber int64      `json:"life_number"`
	OpenedAt  time.Time   `json:"opened_at"`
	ClosesAt  time.Time   `json:"closes_at"`
	Live      int64       `json:"live"`
	Die       int64       `json:"die"`
	Status    RoundStatus `json:"status"`
}

// MinTotalForDeath and the strict-majority rule implement §4.3's
// adjudication: live+die >= 3 AND die > live causes death; an exact tie
// (impossible when total is odd, but checked explicitly for total=4, 6...)
// is survival.
const MinTotalForDeath = 3

// Adjudicate applies the adjudication rule at round close.
func (r VoteRound) Adjudicate() RoundStatus {
	total := r.Live + r.Die
	if total >= MinTotalForDeath && r.Die > r.Live {
		return RoundClosedDied
	}
	return RoundClosedSurvived
}

// Vote is one ballot. Unique on (round_id, voter_fingerprint); the database
// unique constraint is what actually provides the tie-break between
// concurrent submissions for the same fingerprint.
type Vote struct {
	RoundID          int64     `json:"round_id"`
	VoterFingerprint string    `json:"voter_fingerprint"`
	Choice           Choice    `json:"choice"`
	CastAt           time.Time `json:"cast_at"`
}
