// Package loopdetect classifies recent diagnostic history into loop
// patterns: stalls, oscillating writes, and elevated failure rates.
package loopdetect

import (
	"github.com/powersteer/steerstate/internal/core"
)

const (
	// DefaultWindow is the number of recent events examined.
	DefaultWindow = 20

	// DefaultFailureThreshold is the failures/attempts ratio above which
	// the window classifies as high_failure_rate.
	DefaultFailureThreshold = 0.5

	// minStallAttempts is the minimum number of write attempts before an
	// unchanged turn count counts as a stall rather than an idle session.
	minStallAttempts = 3
)

// Detector classifies a sliding window of diagnostic events.
type Detector struct {
	window           int
	failureThreshold float64
}

// Option configures the detector.
type Option func(*Detector)

// WithWindow sets the sliding window size.
func WithWindow(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.window = n
		}
	}
}

// WithFailureThreshold sets the failure-rate threshold.
func WithFailureThreshold(ratio float64) Option {
	return func(d *Detector) {
		if ratio > 0 {
			d.failureThreshold = ratio
		}
	}
}

// New creates a detector with the given options.
func New(opts ...Option) *Detector {
	d := &Detector{
		window:           DefaultWindow,
		failureThreshold: DefaultFailureThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window returns the configured sliding window size.
func (d *Detector) Window() int {
	return d.window
}

// DetectSession pulls the most recent window from an event source and
// classifies it.
func (d *Detector) DetectSession(src core.EventSource) (core.LoopDiagnostics, error) {
	history, err := src.Tail(d.window)
	if err != nil {
		return core.LoopDiagnostics{Pattern: core.PatternNone}, err
	}
	return d.Detect(history), nil
}

// Detect classifies an ordered window of recent events.
//
// When several patterns match, high_failure_rate wins over stall, which
// wins over oscillation: the ordering reflects the severity of the
// remediation each demands.
func (d *Detector) Detect(history []core.DiagnosticEvent) core.LoopDiagnostics {
	if len(history) > d.window {
		history = history[len(history)-d.window:]
	}

	diag := core.LoopDiagnostics{
		Pattern:    core.PatternNone,
		WindowSize: len(history),
	}

	var attemptCounts []int
	for _, e := range history {
		switch e.Type {
		case core.EventWriteAttempt:
			diag.WriteAttempts++
			if n, ok := e.TurnCount(); ok {
				attemptCounts = append(attemptCounts, n)
			}
		case core.EventWriteFailure:
			diag.WriteFailures++
		case core.EventMonotonicityViolation:
			diag.Rejections++
		}
	}

	if rate, ok := d.failureRate(diag); ok {
		diag.Pattern = core.PatternHighFailureRate
		diag.Confidence = rate
		return diag
	}

	if stalled(attemptCounts) {
		diag.Pattern = core.PatternStall
		diag.Confidence = float64(len(attemptCounts)) / float64(d.window)
		if diag.Confidence > 1 {
			diag.Confidence = 1
		}
		return diag
	}

	if conf, ok := oscillating(history); ok {
		diag.Pattern = core.PatternOscillation
		diag.Confidence = conf
		return diag
	}

	return diag
}

func (d *Detector) failureRate(diag core.LoopDiagnostics) (float64, bool) {
	if diag.WriteAttempts == 0 {
		return 0, false
	}
	rate := float64(diag.WriteFailures) / float64(diag.WriteAttempts)
	return rate, rate > d.failureThreshold
}

// stalled reports whether the turn count never moved across the window
// despite repeated write attempts.
func stalled(attemptCounts []int) bool {
	if len(attemptCounts) < minStallAttempts {
		return false
	}
	first := attemptCounts[0]
	for _, n := range attemptCounts[1:] {
		if n != first {
			return false
		}
	}
	return true
}

// oscillating inspects rejected writes only. Accepted state can never
// oscillate downward because the validator blocks regressions before they
// reach storage, so the pattern is observable solely in the rejection log.
func oscillating(history []core.DiagnosticEvent) (float64, bool) {
	var candidates []int
	for _, e := range history {
		if e.Type != core.EventMonotonicityViolation {
			continue
		}
		if v, ok := e.Payload["rejected_turn_count"]; ok {
			if len(candidates) == 0 {
				// Seed with the accepted value the first reject regressed
				// from, so the initial direction is visible.
				if p, ok := intPayload(e.Payload["previous_turn_count"]); ok {
					candidates = append(candidates, p)
				}
			}
			if n, ok := intPayload(v); ok {
				candidates = append(candidates, n)
			}
		}
	}
	if len(candidates) < 3 {
		return 0, false
	}

	var ups, downs int
	for i := 1; i < len(candidates); i++ {
		switch {
		case candidates[i] > candidates[i-1]:
			ups++
		case candidates[i] < candidates[i-1]:
			downs++
		}
	}
	if ups == 0 || downs == 0 {
		return 0, false
	}
	changes := float64(ups + downs)
	return float64(min(ups, downs)*2) / changes, true
}

func intPayload(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
