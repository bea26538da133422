package domain

import "testing"

// Boundary cases named in §8: total=2 never causes death; total=3 with
// die=2,live=1 causes death; total=4 with die=live=2 is survival (strict >).
func TestVoteRoundAdjudicate(t *testing.T) {
	cases := []struct {
		name string
		live int64
		die  int64
		want RoundStatus
	}{
		{"total below minimum never dies", 1, 1, RoundClosedSurvived},
		{"total=2 never causes death", 2, 0, RoundClosedSurvived},
		{"total=3 strict majority dies", 1, 2, RoundClosedDied},
		{"total=3 die exactly equal to minimum still needs strict majority", 0, 3, RoundClosedDied},
		{"total=4 exact tie is survival", 2, 2, RoundClosedSurvived},
		{"total=4 majority die is death", 1, 3, RoundClosedDied},
		{"no votes at all is survival", 0, 0, RoundClosedSurvived},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := VoteRound{Live: tc.live, Die: tc.die}
			got := r.Adjudicate()
			if got != tc.want {
				t.Errorf("Adjudicate() with live=%d die=%d = %s, want %s", tc.live, tc.die, got, tc.want)
			}
		})
	}
}

func TestErrorKindHTTPStatus(t *testing.T) {
	cases := []struct {
		kind ErrorKind
		want int
	}{
		{ErrValidation, 400},
		{ErrAuth, 401},
		{ErrNotFound, 404},
		{ErrConflict, 409},
		{ErrDeadState, 410},
		{ErrRateLimit, 429},
		{ErrInternal, 500},
		{ErrorKind("unknown"), 500},
	}

	for _, tc := range cases {
		if got := tc.kind.HTTPStatus(); got != tc.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	cause := NewAPIError(ErrInternal, "inner", nil)
	wrapped := NewAPIError(ErrValidation, "outer", cause)

	if wrapped.Unwrap() != error(cause) {
		t.Fatalf("Unwrap() did not return the wrapped cause")
	}
	if wrapped.Error() == "" {
		t.Fatalf("Error() returned empty string")
	}
}
