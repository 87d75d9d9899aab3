package health

import (
	"fmt"

	"github.com/powersteer/steerstate/internal/core"
)

// renderMessage produces the human-facing description of a session's
// condition. occurrence is 1 for the first report of a pattern and grows
// on each repeat while the pattern persists.
func renderMessage(st *core.TurnState, diag core.LoopDiagnostics, occurrence int) string {
	switch diag.Pattern {
	case core.PatternHighFailureRate:
		base := fmt.Sprintf(
			"%d of %d recent state writes failed at turn %d. Persistence is unreliable; check disk space and permissions on the session state directory.",
			diag.WriteFailures, diag.WriteAttempts, st.TurnCount)
		if occurrence > 1 {
			return fmt.Sprintf("%s This is report #%d for this condition; writes have not recovered.", base, occurrence)
		}
		return base

	case core.PatternStall:
		if occurrence > 1 {
			return fmt.Sprintf(
				"Still stalled: turn count remains %d after %d more write attempts (report #%d). The loop is retrying without making progress.",
				st.TurnCount, diag.WriteAttempts, occurrence)
		}
		return fmt.Sprintf(
			"Turn count has not moved from %d across %d write attempts. The loop appears to be retrying without making progress.",
			st.TurnCount, diag.WriteAttempts)

	case core.PatternOscillation:
		base := fmt.Sprintf(
			"Rejected writes are oscillating around turn %d (%d rejections in the window). The invariant validator is blocking alternating up/down candidates from reaching storage.",
			st.TurnCount, diag.Rejections)
		if occurrence > 1 {
			return fmt.Sprintf("%s Seen %d times now.", base, occurrence)
		}
		return base

	default:
		msg := fmt.Sprintf("Session %s is healthy at turn %d.", st.SessionID, st.TurnCount)
		if st.ConsecutiveBlocks > 0 {
			msg += fmt.Sprintf(" %d consecutive steering blocks recorded.", st.ConsecutiveBlocks)
			if ok, reason := st.ShouldAutoApprove(); ok {
				msg += " " + reason + "."
			}
		}
		return msg
	}
}
