package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/viper"

	"github.com/powersteer/steerstate/internal/adapters/state"
	"github.com/powersteer/steerstate/internal/config"
	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/health"
	"github.com/powersteer/steerstate/internal/journal"
	"github.com/powersteer/steerstate/internal/logging"
	"github.com/powersteer/steerstate/internal/loopdetect"
)

// loadConfig loads configuration honoring flags, env, and config files.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from configuration.
func newLogger(cfg *config.Config) *logging.Logger {
	level := cfg.Log.Level
	if quiet {
		level = "error"
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// storeOptions translates configuration into backend options, attaching the
// session's journal as the diagnostic sink.
func storeOptions(cfg *config.Config, sink core.EventSink) (state.StoreOptions, error) {
	backoff, err := cfg.State.Backoff()
	if err != nil {
		return state.StoreOptions{}, core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("invalid base_backoff %q", cfg.State.BaseBackoff)).WithCause(err)
	}
	return state.StoreOptions{
		Backend:     cfg.State.Backend,
		Sink:        sink,
		Attempts:    cfg.State.MaxAttempts,
		BaseBackoff: backoff,
	}, nil
}

// openSession opens the store and journal for one session. The returned
// cleanup closes both.
func openSession(cfg *config.Config, logger *logging.Logger, session core.SessionID) (core.Store, *journal.Writer, func(), error) {
	writer := journal.NewWriter(journal.Path(cfg.State.Dir, session), logger.Logger)

	opts, err := storeOptions(cfg, writer)
	if err != nil {
		_ = writer.Close()
		return nil, nil, nil, err
	}

	store, err := state.NewStore(cfg.State.Dir, session, opts)
	if err != nil {
		_ = writer.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := state.CloseStore(store); err != nil {
			logger.Warn("closing store", "error", err.Error())
		}
		if err := writer.Close(); err != nil {
			logger.Warn("closing journal", "error", err.Error())
		}
	}
	return store, writer, cleanup, nil
}

// newDetector builds the loop detector from configuration.
func newDetector(cfg *config.Config) *loopdetect.Detector {
	return loopdetect.New(
		loopdetect.WithWindow(cfg.Detector.Window),
		loopdetect.WithFailureThreshold(cfg.Detector.FailureThreshold),
	)
}

// newSummarizer builds a health summarizer over the configured state root.
func newSummarizer(cfg *config.Config, logger *logging.Logger) (*health.Summarizer, error) {
	opts, err := storeOptions(cfg, nil)
	if err != nil {
		return nil, err
	}
	return health.NewSummarizer(
		func(id core.SessionID) (core.Store, error) {
			return state.NewStore(cfg.State.Dir, id, opts)
		},
		func(id core.SessionID) core.EventSource {
			return journal.NewReader(journal.Path(cfg.State.Dir, id))
		},
		newDetector(cfg),
		logger,
	).WithStoreCloser(state.CloseStore), nil
}

// listSessionIDs returns the session directories under the state root.
func listSessionIDs(stateDir string) ([]string, error) {
	entries, err := os.ReadDir(stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// resolveSession maps a user-supplied session reference to a known session.
// Exact matches win; otherwise a unique fuzzy match (id prefixes, fragments)
// is accepted. Ambiguity lists the candidates rather than guessing.
func resolveSession(stateDir, ref string) (core.SessionID, error) {
	if ref == "" {
		return "", core.ErrValidation(core.CodeInvalidConfig, "session reference required")
	}

	ids, err := listSessionIDs(stateDir)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		if id == ref {
			return core.SessionID(id), nil
		}
	}

	matches := fuzzy.Find(ref, ids)
	switch len(matches) {
	case 0:
		return "", core.ErrNotFound("session", ref)
	case 1:
		return core.SessionID(matches[0].Str), nil
	default:
		candidates := make([]string, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, m.Str)
		}
		return "", core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("session %q is ambiguous", ref)).
			WithDetail("candidates", candidates)
	}
}

// requireSession resolves the single positional session argument.
func requireSession(cfg *config.Config, args []string) (core.SessionID, error) {
	if len(args) != 1 {
		return "", core.ErrValidation(core.CodeInvalidConfig, "expected exactly one session argument")
	}
	return resolveSession(cfg.State.Dir, args[0])
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
