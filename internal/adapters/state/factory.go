package state

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/powersteer/steerstate/internal/core"
)

// Backend names accepted by the factory.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// StoreOptions configures store creation.
type StoreOptions struct {
	// Backend selects the storage implementation: "json" (default) or
	// "sqlite".
	Backend string

	// Sink receives diagnostic events from the store (optional).
	Sink core.EventSink

	// Attempts is the total save attempt budget. Zero uses the default (3).
	Attempts int

	// BaseBackoff is the first retry delay, doubling per attempt.
	// Zero uses the default.
	BaseBackoff time.Duration
}

// SessionDir returns the directory holding one session's files.
func SessionDir(stateDir string, session core.SessionID) string {
	return filepath.Join(stateDir, string(session))
}

// StatePath returns the state file path for a session under the JSON backend.
func StatePath(stateDir string, session core.SessionID) string {
	return filepath.Join(SessionDir(stateDir, session), "turn_state.json")
}

// NewStore creates a core.Store for one session rooted at stateDir.
func NewStore(stateDir string, session core.SessionID, opts StoreOptions) (core.Store, error) {
	if session == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "empty session id")
	}

	switch opts.Backend {
	case "", BackendJSON:
		var jsonOpts []JSONTurnStoreOption
		if opts.Sink != nil {
			jsonOpts = append(jsonOpts, WithEventSink(opts.Sink))
		}
		if opts.Attempts > 0 || opts.BaseBackoff > 0 {
			jsonOpts = append(jsonOpts, WithRetryPolicy(opts.Attempts, opts.BaseBackoff))
		}
		return NewJSONTurnStore(StatePath(stateDir, session), session, jsonOpts...), nil

	case BackendSQLite:
		var sqliteOpts []SQLiteTurnStoreOption
		if opts.Sink != nil {
			sqliteOpts = append(sqliteOpts, WithSQLiteEventSink(opts.Sink))
		}
		if opts.Attempts > 0 || opts.BaseBackoff > 0 {
			sqliteOpts = append(sqliteOpts, WithSQLiteRetryPolicy(opts.Attempts, opts.BaseBackoff))
		}
		dbPath := filepath.Join(SessionDir(stateDir, session), "turn_state.db")
		return NewSQLiteTurnStore(dbPath, session, sqliteOpts...)

	default:
		return nil, core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("unknown state backend %q", opts.Backend))
	}
}

// Closeable is an optional interface for stores that need cleanup.
type Closeable interface {
	Close() error
}

// CloseStore safely closes a Store if it implements Closeable.
func CloseStore(s core.Store) error {
	if closeable, ok := s.(Closeable); ok {
		return closeable.Close()
	}
	return nil
}
