package events

import "github.com/powersteer/steerstate/internal/core"

// Fanout delivers each event to every sink in order. Sinks are fail-open
// individually, so a broken journal never starves bus subscribers.
type Fanout []core.EventSink

// Record implements core.EventSink.
func (f Fanout) Record(event core.DiagnosticEvent) {
	for _, sink := range f {
		if sink != nil {
			sink.Record(event)
		}
	}
}

var _ core.EventSink = (Fanout)(nil)
