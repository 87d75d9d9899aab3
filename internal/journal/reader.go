package journal

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/fsutil"
)

// Reader parses a session journal. Each line is independently parseable,
// so a partial final line from a crash mid-append never hides earlier
// entries.
type Reader struct {
	path string
}

// NewReader creates a reader for a session journal file.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// All returns every well-formed event in the journal, in append order.
// A missing journal yields an empty history, not an error.
func (r *Reader) All() ([]core.DiagnosticEvent, error) {
	data, err := fsutil.ReadFileScoped(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var events []core.DiagnosticEvent
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e core.DiagnosticEvent
		if err := json.Unmarshal(line, &e); err != nil {
			// Torn line from an interrupted append; skip it.
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// Tail returns up to n most recent events in chronological order.
// Implements core.EventSource.
func (r *Reader) Tail(n int) ([]core.DiagnosticEvent, error) {
	events, err := r.All()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

var _ core.EventSource = (*Reader)(nil)
