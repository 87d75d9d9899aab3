package core

// Pattern classifies the behavior observed in a window of recent
// diagnostic events.
type Pattern string

const (
	PatternNone            Pattern = "none"
	PatternStall           Pattern = "stall"
	PatternOscillation     Pattern = "oscillation"
	PatternHighFailureRate Pattern = "high_failure_rate"
)

// Health is the coarse tier reported to the orchestrator.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthCritical Health = "critical"
)

// LoopDiagnostics is the derived classification over a sliding window of
// diagnostic events. It is recomputed on demand and never persisted.
type LoopDiagnostics struct {
	Pattern       Pattern `json:"pattern"`
	Confidence    float64 `json:"confidence"`
	WindowSize    int     `json:"window_size"`
	WriteAttempts int     `json:"write_attempts"`
	WriteFailures int     `json:"write_failures"`
	Rejections    int     `json:"rejections"`
}

// HealthSummary is the facade's aggregate of store state and loop
// diagnostics, the only user-facing output of the subsystem.
type HealthSummary struct {
	SessionID SessionID       `json:"session_id"`
	Health    Health          `json:"health"`
	TurnCount int             `json:"turn_count"`
	Message   string          `json:"message"`
	Raw       LoopDiagnostics `json:"raw"`
}
