// Package health aggregates store state and loop diagnostics into the
// subsystem's only user-facing output: a health tier and a message.
package health

import (
	"context"
	"sync"

	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/logging"
	"github.com/powersteer/steerstate/internal/loopdetect"
)

// StoreOpener opens a session's state store.
type StoreOpener func(core.SessionID) (core.Store, error)

// SourceOpener opens a session's diagnostic event source.
type SourceOpener func(core.SessionID) core.EventSource

// CloseStore is an optional hook used to release a store after Summarize.
type CloseStore func(core.Store) error

// Summarizer computes health summaries on demand. It keeps a per-session
// count of previously reported patterns so repeated occurrences read
// differently from first ones; nothing here is persisted.
type Summarizer struct {
	stores   StoreOpener
	sources  SourceOpener
	closer   CloseStore
	detector *loopdetect.Detector
	logger   *logging.Logger

	mu   sync.Mutex
	seen map[core.SessionID]map[core.Pattern]int
}

// NewSummarizer creates a summarizer.
func NewSummarizer(stores StoreOpener, sources SourceOpener, detector *loopdetect.Detector, logger *logging.Logger) *Summarizer {
	if detector == nil {
		detector = loopdetect.New()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Summarizer{
		stores:   stores,
		sources:  sources,
		detector: detector,
		logger:   logger,
		seen:     make(map[core.SessionID]map[core.Pattern]int),
	}
}

// WithStoreCloser sets the hook that releases stores after use.
func (s *Summarizer) WithStoreCloser(c CloseStore) *Summarizer {
	s.closer = c
	return s
}

// Summarize loads the session's state, classifies its recent diagnostic
// history, and renders both into a health summary.
func (s *Summarizer) Summarize(ctx context.Context, session core.SessionID) (core.HealthSummary, error) {
	store, err := s.stores(session)
	if err != nil {
		return core.HealthSummary{}, err
	}
	if s.closer != nil {
		defer func() {
			if err := s.closer(store); err != nil {
				s.logger.Debug("closing store after summary", "error", err)
			}
		}()
	}

	st, err := store.Load(ctx)
	if err != nil {
		return core.HealthSummary{}, err
	}

	diag, err := s.detector.DetectSession(s.sources(session))
	if err != nil {
		// Unreadable history degrades to an empty window rather than
		// failing the summary; the state itself is still valid.
		s.logger.Warn("diagnostic history unavailable", "session_id", string(session), "error", err)
		diag = core.LoopDiagnostics{Pattern: core.PatternNone}
	}

	occurrence := s.bump(session, diag.Pattern)

	summary := core.HealthSummary{
		SessionID: session,
		Health:    tierFor(diag.Pattern),
		TurnCount: st.TurnCount,
		Message:   renderMessage(st, diag, occurrence),
		Raw:       diag,
	}
	return summary, nil
}

// tierFor maps detector patterns to health tiers.
func tierFor(p core.Pattern) core.Health {
	switch p {
	case core.PatternHighFailureRate:
		return core.HealthCritical
	case core.PatternStall, core.PatternOscillation:
		return core.HealthDegraded
	default:
		return core.HealthHealthy
	}
}

// bump increments and returns the occurrence count for a detected pattern.
// The healthy pattern resets the memory so a later recurrence reads as
// first-time again.
func (s *Summarizer) bump(session core.SessionID, p core.Pattern) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p == core.PatternNone {
		delete(s.seen, session)
		return 0
	}
	if s.seen[session] == nil {
		s.seen[session] = make(map[core.Pattern]int)
	}
	s.seen[session][p]++
	return s.seen[session][p]
}
