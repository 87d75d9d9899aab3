package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/fsutil"
)

const (
	defaultSaveAttempts = 3
	defaultBaseBackoff  = 50 * time.Millisecond
)

// JSONTurnStore implements core.Store with one JSON file per session.
//
// The store owns the file exclusively. The last successfully validated
// state is held in memory so regressions are caught even against a stale
// disk read; that tracking is scoped to this handle, one instance per
// session.
type JSONTurnStore struct {
	path    string
	session core.SessionID
	sink    core.EventSink

	attempts    int
	baseBackoff time.Duration
	sleep       func(time.Duration)

	mu       sync.Mutex
	previous *core.TurnState
}

// JSONTurnStoreOption configures the store.
type JSONTurnStoreOption func(*JSONTurnStore)

// NewJSONTurnStore creates a store for one session, persisting to path.
func NewJSONTurnStore(path string, session core.SessionID, opts ...JSONTurnStoreOption) *JSONTurnStore {
	s := &JSONTurnStore{
		path:        path,
		session:     session,
		attempts:    defaultSaveAttempts,
		baseBackoff: defaultBaseBackoff,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithEventSink sets the diagnostic event sink.
func WithEventSink(sink core.EventSink) JSONTurnStoreOption {
	return func(s *JSONTurnStore) {
		s.sink = sink
	}
}

// WithRetryPolicy sets the total save attempt budget and the base backoff
// delay, which doubles on each subsequent attempt.
func WithRetryPolicy(attempts int, base time.Duration) JSONTurnStoreOption {
	return func(s *JSONTurnStore) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if base > 0 {
			s.baseBackoff = base
		}
	}
}

// stateEnvelope wraps the persisted state with integrity metadata.
type stateEnvelope struct {
	Version   int             `json:"version"`
	Checksum  string          `json:"checksum"`
	UpdatedAt time.Time       `json:"updated_at"`
	State     *core.TurnState `json:"state"`
}

// Load reads the persisted state. A missing file yields a fresh zero state.
// Corrupt or invariant-violating content falls back to the last known-good
// in-memory value, else a zero state; the failure is reported through the
// diagnostic stream, never as a raw parse error.
func (s *JSONTurnStore) Load(_ context.Context) (*core.TurnState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists() {
		s.emit(core.EventStateRead, map[string]interface{}{"result": "fresh"})
		fresh := core.NewTurnState(s.session)
		s.previous = fresh.Clone()
		return fresh, nil
	}

	loaded, err := s.loadFromPath(s.path)
	if err == nil {
		err = core.Validate(loaded, s.previous)
	}
	if err != nil {
		s.emit(core.EventVerificationFailed, map[string]interface{}{
			"error": err.Error(),
			"path":  s.path,
		})
		return s.fallback(), nil
	}

	s.emit(core.EventStateRead, map[string]interface{}{"turn_count": loaded.TurnCount})
	s.previous = loaded.Clone()
	return loaded, nil
}

// fallback returns the last known-good state if one exists, else a fresh
// zero state. Caller holds s.mu.
func (s *JSONTurnStore) fallback() *core.TurnState {
	if s.previous != nil {
		return s.previous.Clone()
	}
	fresh := core.NewTurnState(s.session)
	s.previous = fresh.Clone()
	return fresh
}

func (s *JSONTurnStore) loadFromPath(path string) (*core.TurnState, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var envelope stateEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, core.ErrCorruption(core.CodeStateCorrupted, "unparsable state file").WithCause(err)
	}
	if envelope.State == nil {
		return nil, core.ErrCorruption(core.CodeStateCorrupted, "envelope missing state")
	}

	if checksum(envelope.State) != envelope.Checksum {
		return nil, core.ErrCorruption(core.CodeStateCorrupted, "checksum mismatch")
	}

	return envelope.State, nil
}

// Save durably persists state.
//
//  1. Validate against bounds and monotonicity; reject without writing.
//  2. Write a temp file in the target directory and force it to stable
//     storage (fsync). OS-buffered success is not success: the value must
//     survive power loss, not just a process crash.
//  3. Read the temp file back and compare the decoded turn count.
//  4. Atomically rename over the target, fsync the directory.
//  5. Read the final path back and compare again.
//
// Steps 2-5 retry up to the attempt budget with exponential backoff,
// emitting one state_write_failure event per failed attempt. Exhaustion
// returns a durable error with the previous on-disk value untouched.
func (s *JSONTurnStore) Save(ctx context.Context, state *core.TurnState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := core.Validate(state, s.previous); err != nil {
		s.emitRejection(err, state)
		return err
	}

	state.UpdatedAt = time.Now()

	env := stateEnvelope{
		Version:   1,
		Checksum:  checksum(state),
		UpdatedAt: state.UpdatedAt,
		State:     state,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return core.ErrIO(core.CodeWriteExhausted, "marshaling state").WithCause(err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		s.emit(core.EventWriteAttempt, map[string]interface{}{
			"turn_count": state.TurnCount,
			"attempt":    attempt,
		})

		if err := s.writeVerified(data, state.TurnCount); err != nil {
			lastErr = err
			s.emit(core.EventWriteFailure, map[string]interface{}{
				"turn_count": state.TurnCount,
				"attempt":    attempt,
				"error":      err.Error(),
			})
			if attempt < s.attempts {
				s.sleep(s.baseBackoff << (attempt - 1))
			}
			continue
		}

		s.emit(core.EventWriteSuccess, map[string]interface{}{
			"turn_count": state.TurnCount,
			"attempt":    attempt,
		})
		s.previous = state.Clone()
		return nil
	}

	return core.ErrIO(core.CodeWriteExhausted,
		fmt.Sprintf("state not durable after %d attempts", s.attempts)).WithCause(lastErr)
}

// writeVerified performs one temp-write/fsync/readback/rename/readback cycle.
func (s *JSONTurnStore) writeVerified(data []byte, wantTurn int) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	pending, err := newPendingFile(s.path, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer pending.Cleanup()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := pending.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}

	// Readback before rename: a write the OS acknowledged but mangled must
	// not replace the good value.
	if err := s.verifyPath(pending.Name(), wantTurn); err != nil {
		return err
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("syncing state directory: %w", err)
	}

	// Readback after rename: the rename must not corrupt or partially apply.
	return s.verifyPath(s.path, wantTurn)
}

func (s *JSONTurnStore) verifyPath(path string, wantTurn int) error {
	got, err := s.loadFromPath(path)
	if err != nil {
		return core.ErrIO(core.CodeWriteVerifyFailed, "readback failed").WithCause(err)
	}
	if got.TurnCount != wantTurn {
		return core.ErrIO(core.CodeWriteVerifyFailed,
			fmt.Sprintf("readback turn_count %d, wrote %d", got.TurnCount, wantTurn))
	}
	return nil
}

// Exists checks if the state file exists.
func (s *JSONTurnStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the state file path.
func (s *JSONTurnStore) Path() string {
	return s.path
}

// Close releases the handle. The JSON backend holds no OS resources between
// operations; Close exists for Store symmetry with the SQLite backend.
func (s *JSONTurnStore) Close() error {
	return nil
}

// emitRejection routes a validation reject to the diagnostic stream with
// the offending value attached for forensics.
func (s *JSONTurnStore) emitRejection(err error, state *core.TurnState) {
	payload := map[string]interface{}{
		"error": err.Error(),
	}
	if state != nil {
		payload["rejected_turn_count"] = state.TurnCount
	}
	if s.previous != nil {
		payload["previous_turn_count"] = s.previous.TurnCount
	}

	var domErr *core.DomainError
	if errors.As(err, &domErr) && domErr.Code == core.CodeBoundsViolation {
		payload["violation"] = "bounds"
	} else {
		payload["violation"] = "monotonicity"
	}
	s.emit(core.EventMonotonicityViolation, payload)
}

// emit records a diagnostic event. Sink failures never reach the caller;
// the sink contract is fail-open and emit guards against panics too.
func (s *JSONTurnStore) emit(t core.EventType, payload map[string]interface{}) {
	if s.sink == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.sink.Record(core.NewDiagnosticEvent(t, s.session, payload))
}

// checksum hashes the canonical JSON encoding of the state.
func checksum(state *core.TurnState) string {
	data, err := json.Marshal(state)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify that JSONTurnStore implements core.Store.
var _ core.Store = (*JSONTurnStore)(nil)
