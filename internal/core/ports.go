package core

import "context"

// Store persists turn state for a single session. One store instance owns
// one session's on-disk file; last-known-good tracking is instance state,
// never process-wide.
type Store interface {
	// Load returns the persisted state, or a fresh zero state when no file
	// exists. Corrupt content falls back to the last known-good value and is
	// reported through the diagnostic stream, never as a raw parse error.
	Load(ctx context.Context) (*TurnState, error)

	// Save durably persists state. After Save returns, a subsequent Load
	// observes either the previous value or the new value, never a partial
	// write. Validation rejects and retry-exhausted I/O errors are the only
	// failures surfaced.
	Save(ctx context.Context, state *TurnState) error

	// Exists reports whether a state file has been written for the session.
	Exists() bool
}

// EventSink receives diagnostic events. Implementations must be fail-open:
// Record never returns an error and must not panic, because a diagnostics
// failure may not affect the state operation it describes.
type EventSink interface {
	Record(event DiagnosticEvent)
}

// EventSource supplies recent diagnostic history for loop detection.
type EventSource interface {
	// Tail returns up to n most recent events in chronological order.
	Tail(n int) ([]DiagnosticEvent, error)
}
