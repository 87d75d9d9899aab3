package core

import "fmt"

// Validate checks a candidate state transition against the bounds and
// monotonicity invariants. previous may be nil (no prior accepted state).
// Equal turn counts are permitted: an idempotent re-save of the same turn
// is not a regression.
//
// Validate is pure: it never touches disk and never retries.
func Validate(candidate, previous *TurnState) error {
	if candidate == nil {
		return ErrValidation(CodeBoundsViolation, "nil state")
	}
	if candidate.TurnCount < 0 || candidate.TurnCount >= MaxTurnCount {
		return ErrValidation(CodeBoundsViolation,
			fmt.Sprintf("turn_count %d outside [0, %d)", candidate.TurnCount, MaxTurnCount)).
			WithDetail("turn_count", candidate.TurnCount)
	}
	if previous == nil {
		return nil
	}
	if candidate.SessionID != previous.SessionID {
		return ErrValidation(CodeSessionMismatch,
			fmt.Sprintf("state for session %q offered to session %q", candidate.SessionID, previous.SessionID))
	}
	if candidate.TurnCount < previous.TurnCount {
		return ErrValidation(CodeMonotonicityViolation,
			fmt.Sprintf("turn_count %d regresses below %d", candidate.TurnCount, previous.TurnCount)).
			WithDetail("turn_count", candidate.TurnCount).
			WithDetail("previous_turn_count", previous.TurnCount)
	}
	return nil
}
