package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/powersteer/steerstate/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_turn_state.sql
var migrationV1 string

// SQLiteTurnStore implements core.Store with SQLite storage. Durability
// comes from WAL mode with synchronous=FULL; the write-then-readback
// verification from the JSON backend is preserved, performed inside the
// upsert transaction and again after commit.
type SQLiteTurnStore struct {
	dbPath  string
	session core.SessionID
	sink    core.EventSink
	db      *sql.DB

	attempts    int
	baseBackoff time.Duration
	sleep       func(time.Duration)

	mu       sync.Mutex
	previous *core.TurnState
}

// SQLiteTurnStoreOption configures the store.
type SQLiteTurnStoreOption func(*SQLiteTurnStore)

// WithSQLiteEventSink sets the diagnostic event sink.
func WithSQLiteEventSink(sink core.EventSink) SQLiteTurnStoreOption {
	return func(s *SQLiteTurnStore) {
		s.sink = sink
	}
}

// WithSQLiteRetryPolicy sets the save attempt budget and base backoff.
func WithSQLiteRetryPolicy(attempts int, base time.Duration) SQLiteTurnStoreOption {
	return func(s *SQLiteTurnStore) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if base > 0 {
			s.baseBackoff = base
		}
	}
}

// NewSQLiteTurnStore creates a SQLite-backed store for one session.
func NewSQLiteTurnStore(dbPath string, session core.SessionID, opts ...SQLiteTurnStoreOption) (*SQLiteTurnStore, error) {
	s := &SQLiteTurnStore{
		dbPath:      dbPath,
		session:     session,
		attempts:    defaultSaveAttempts,
		baseBackoff: defaultBaseBackoff,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// migrate runs pending migrations.
func (s *SQLiteTurnStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet, run initial migration
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteTurnStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load retrieves the session's state, falling back to the last known-good
// value on corruption, in the same contract as the JSON backend.
func (s *SQLiteTurnStore) Load(ctx context.Context) (*core.TurnState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.queryState(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.emit(core.EventStateRead, map[string]interface{}{"result": "fresh"})
			fresh := core.NewTurnState(s.session)
			s.previous = fresh.Clone()
			return fresh, nil
		}
		s.emit(core.EventVerificationFailed, map[string]interface{}{
			"error": err.Error(),
			"path":  s.dbPath,
		})
		return s.fallback(), nil
	}

	if err := core.Validate(loaded, s.previous); err != nil {
		s.emit(core.EventVerificationFailed, map[string]interface{}{
			"error": err.Error(),
			"path":  s.dbPath,
		})
		return s.fallback(), nil
	}

	s.emit(core.EventStateRead, map[string]interface{}{"turn_count": loaded.TurnCount})
	s.previous = loaded.Clone()
	return loaded, nil
}

func (s *SQLiteTurnStore) fallback() *core.TurnState {
	if s.previous != nil {
		return s.previous.Clone()
	}
	fresh := core.NewTurnState(s.session)
	s.previous = fresh.Clone()
	return fresh
}

func (s *SQLiteTurnStore) queryState(ctx context.Context) (*core.TurnState, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT payload, checksum FROM turn_state WHERE session_id = ?", string(s.session))
	return scanState(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner) (*core.TurnState, error) {
	var payload, storedChecksum string
	if err := row.Scan(&payload, &storedChecksum); err != nil {
		return nil, err
	}

	var st core.TurnState
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, core.ErrCorruption(core.CodeStateCorrupted, "unparsable state row").WithCause(err)
	}
	if checksum(&st) != storedChecksum {
		return nil, core.ErrCorruption(core.CodeStateCorrupted, "checksum mismatch")
	}
	return &st, nil
}

// Save persists state with the same validate/write/verify/retry contract
// as the JSON backend.
func (s *SQLiteTurnStore) Save(ctx context.Context, state *core.TurnState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := core.Validate(state, s.previous); err != nil {
		s.emitRejection(err, state)
		return err
	}

	state.UpdatedAt = time.Now()

	payload, err := json.Marshal(state)
	if err != nil {
		return core.ErrIO(core.CodeWriteExhausted, "marshaling state").WithCause(err)
	}
	sum := checksum(state)

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

		if err := s.writeVerified(ctx, state, payload, sum); err != nil {
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

func (s *SQLiteTurnStore) writeVerified(ctx context.Context, state *core.TurnState, payload []byte, sum string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO turn_state (session_id, turn_count, checksum, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			turn_count = excluded.turn_count,
			checksum   = excluded.checksum,
			payload    = excluded.payload,
			updated_at = excluded.updated_at`,
		string(state.SessionID), state.TurnCount, sum, string(payload),
		state.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upserting state: %w", err)
	}

	// Readback inside the transaction: what commits must be what was written.
	row := tx.QueryRowContext(ctx,
		"SELECT payload, checksum FROM turn_state WHERE session_id = ?", string(state.SessionID))
	if err := s.verifyRow(row, state.TurnCount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing state: %w", err)
	}

	// Readback after commit, symmetric with the post-rename verification in
	// the file backend.
	return s.verifyRow(s.db.QueryRowContext(ctx,
		"SELECT payload, checksum FROM turn_state WHERE session_id = ?", string(state.SessionID)),
		state.TurnCount)
}

func (s *SQLiteTurnStore) verifyRow(row rowScanner, wantTurn int) error {
	got, err := scanState(row)
	if err != nil {
		return core.ErrIO(core.CodeWriteVerifyFailed, "readback failed").WithCause(err)
	}
	if got.TurnCount != wantTurn {
		return core.ErrIO(core.CodeWriteVerifyFailed,
			fmt.Sprintf("readback turn_count %d, wrote %d", got.TurnCount, wantTurn))
	}
	return nil
}

// Exists reports whether a row has been written for the session.
func (s *SQLiteTurnStore) Exists() bool {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(1) FROM turn_state WHERE session_id = ?", string(s.session)).Scan(&n)
	return err == nil && n > 0
}

func (s *SQLiteTurnStore) emitRejection(err error, state *core.TurnState) {
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

func (s *SQLiteTurnStore) emit(t core.EventType, payload map[string]interface{}) {
	if s.sink == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.sink.Record(core.NewDiagnosticEvent(t, s.session, payload))
}

// Verify that SQLiteTurnStore implements core.Store.
var _ core.Store = (*SQLiteTurnStore)(nil)
