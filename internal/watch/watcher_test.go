package watch

import (
	"context"
	"testing"
	"time"

	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/events"
	"github.com/powersteer/steerstate/internal/journal"
	"github.com/powersteer/steerstate/internal/logging"
)

func collect(t *testing.T, ch <-chan core.DiagnosticEvent, n int) []core.DiagnosticEvent {
	t.Helper()
	var got []core.DiagnosticEvent
	deadline := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case evt := <-ch:
			got = append(got, evt)
		case <-deadline:
			t.Fatalf("timed out with %d/%d events", len(got), n)
		}
	}
	return got
}

func TestWatcher_ReplaysExistingJournal(t *testing.T) {
	stateDir := t.TempDir()
	path := journal.Path(stateDir, "sess-1")

	writer := journal.NewWriter(path, logging.NewNop().Logger)
	writer.Record(core.NewDiagnosticEvent(core.EventWriteAttempt, "sess-1", map[string]interface{}{"turn_count": 1}))
	writer.Record(core.NewDiagnosticEvent(core.EventWriteSuccess, "sess-1", map[string]interface{}{"turn_count": 1}))
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	bus := events.New(16)
	defer bus.Close()
	ch := bus.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	w := New(stateDir, "sess-1", bus, logging.NewNop(), WithPollInterval(50*time.Millisecond))
	go func() { done <- w.Run(ctx) }()

	got := collect(t, ch, 2)
	if got[0].Type != core.EventWriteAttempt || got[1].Type != core.EventWriteSuccess {
		t.Errorf("events = %s, %s", got[0].Type, got[1].Type)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestWatcher_FollowsAppends(t *testing.T) {
	stateDir := t.TempDir()
	path := journal.Path(stateDir, "sess-1")

	bus := events.New(16)
	defer bus.Close()
	ch := bus.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(stateDir, "sess-1", bus, logging.NewNop(),
		WithDebounce(10*time.Millisecond),
		WithPollInterval(50*time.Millisecond))
	go func() { _ = w.Run(ctx) }()

	// Give the watcher a moment to install before writing.
	time.Sleep(100 * time.Millisecond)

	writer := journal.NewWriter(path, logging.NewNop().Logger)
	defer writer.Close()
	writer.Record(core.NewDiagnosticEvent(core.EventStateRead, "sess-1", nil))

	got := collect(t, ch, 1)
	if got[0].Type != core.EventStateRead {
		t.Errorf("event = %s, want state_read", got[0].Type)
	}

	writer.Record(core.NewDiagnosticEvent(core.EventWriteAttempt, "sess-1", nil))
	got = collect(t, ch, 1)
	if got[0].Type != core.EventWriteAttempt {
		t.Errorf("event = %s, want state_write_attempt", got[0].Type)
	}
}

func TestWatcher_NoDuplicatesAcrossPolls(t *testing.T) {
	stateDir := t.TempDir()
	path := journal.Path(stateDir, "sess-1")

	writer := journal.NewWriter(path, logging.NewNop().Logger)
	writer.Record(core.NewDiagnosticEvent(core.EventStateRead, "sess-1", nil))
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	bus := events.New(16)
	defer bus.Close()
	ch := bus.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(stateDir, "sess-1", bus, logging.NewNop(), WithPollInterval(20*time.Millisecond))
	go func() { _ = w.Run(ctx) }()

	collect(t, ch, 1)

	// Several poll cycles pass; the same event must not be republished.
	select {
	case evt := <-ch:
		t.Fatalf("duplicate event published: %s", evt.Type)
	case <-time.After(200 * time.Millisecond):
	}
}
