// Package journal persists diagnostic events as an append-only,
// line-delimited JSON file per session. Appends are fail-open: a journal
// failure must never affect the state operation it describes.
package journal

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/powersteer/steerstate/internal/core"
)

// Path returns the journal file path for a session.
func Path(stateDir string, session core.SessionID) string {
	return filepath.Join(stateDir, string(session), "journal.ndjson")
}

// Writer appends diagnostic events to a session journal. One appending
// writer per session; entries are never mutated or deleted here (rotation
// is an external concern).
type Writer struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	dropped atomic.Int64
}

// NewWriter creates a journal writer. The file is opened lazily on the
// first append.
func NewWriter(path string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{path: path, logger: logger}
}

// Record appends one event as a single JSON line. Failures are counted and
// logged at debug level, never surfaced. Implements core.EventSink.
func (w *Writer) Record(event core.DiagnosticEvent) {
	line, err := json.Marshal(event)
	if err != nil {
		w.drop("marshaling event", err)
		return
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
			w.drop("creating journal directory", err)
			return
		}
		f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			w.drop("opening journal", err)
			return
		}
		w.file = f
	}

	if _, err := w.file.Write(line); err != nil {
		w.drop("appending event", err)
	}
}

// Dropped returns the number of events lost to append failures.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Close closes the journal file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *Writer) drop(msg string, err error) {
	w.dropped.Add(1)
	w.logger.Debug("journal append dropped", "reason", msg, "error", err)
}

var _ core.EventSink = (*Writer)(nil)
