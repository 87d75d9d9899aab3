package core

import "time"

// EventType identifies a diagnostic event kind.
type EventType string

// Diagnostic event types emitted by the state store.
const (
	EventWriteAttempt          EventType = "state_write_attempt"
	EventWriteSuccess          EventType = "state_write_success"
	EventWriteFailure          EventType = "state_write_failure"
	EventStateRead             EventType = "state_read"
	EventVerificationFailed    EventType = "verification_failed"
	EventMonotonicityViolation EventType = "monotonicity_violation"
)

// DiagnosticEvent is one append-only journal entry. Events are created on
// every state-store operation and never mutated afterwards.
type DiagnosticEvent struct {
	Type      EventType              `json:"event_type"`
	Time      time.Time              `json:"timestamp"`
	SessionID SessionID              `json:"session_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// NewDiagnosticEvent creates an event stamped with the current time.
func NewDiagnosticEvent(t EventType, session SessionID, payload map[string]interface{}) DiagnosticEvent {
	return DiagnosticEvent{
		Type:      t,
		Time:      time.Now(),
		SessionID: session,
		Payload:   payload,
	}
}

// IsWriteAttempt reports whether the event counts toward the write-attempt
// total used by failure-rate detection.
func (e DiagnosticEvent) IsWriteAttempt() bool {
	return e.Type == EventWriteAttempt
}

// TurnCount extracts the turn count recorded in the payload, if any.
func (e DiagnosticEvent) TurnCount() (int, bool) {
	v, ok := e.Payload["turn_count"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		// JSON round-trips numbers as float64.
		return int(n), true
	default:
		return 0, false
	}
}
