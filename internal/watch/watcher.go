// Package watch follows a session's diagnostic journal on disk and
// republishes appended events onto the in-process bus. It backs the live
// `watch` command and the HTTP event stream.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/events"
	"github.com/powersteer/steerstate/internal/journal"
	"github.com/powersteer/steerstate/internal/logging"
)

const (
	defaultDebounce     = 100 * time.Millisecond
	defaultPollInterval = 2 * time.Second
)

// Watcher tails one session's journal. Filesystem notifications drive the
// fast path; a slow poll catches anything fsnotify misses, such as writes
// over NFS.
type Watcher struct {
	stateDir string
	session  core.SessionID
	bus      *events.Bus
	logger   *logging.Logger

	debounce     time.Duration
	pollInterval time.Duration

	mu   sync.Mutex
	seen int
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the delay between a filesystem notification and the
// journal read, coalescing rapid appends.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithPollInterval sets the fallback poll period.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// New creates a watcher publishing to bus.
func New(stateDir string, session core.SessionID, bus *events.Bus, logger *logging.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Watcher{
		stateDir:     stateDir,
		session:      session,
		bus:          bus,
		logger:       logger.WithComponent("watch").WithSession(string(session)),
		debounce:     defaultDebounce,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run replays the journal's existing events, then follows appends until
// ctx is cancelled. Cancellation is the normal exit and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	sessionDir := filepath.Dir(w.journalPath())
	if err := os.MkdirAll(sessionDir, 0o750); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()

	// Watch the directory rather than the file: the journal may not exist
	// yet, and appends via a fresh handle still land as directory events.
	if err := fsw.Add(sessionDir); err != nil {
		return fmt.Errorf("watching %s: %w", sessionDir, err)
	}

	w.flush()

	g, ctx := errgroup.WithContext(ctx)
	notify := make(chan struct{}, 1)

	g.Go(func() error {
		return w.watchLoop(ctx, fsw, notify)
	})
	g.Go(func() error {
		return w.publishLoop(ctx, notify)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (w *Watcher) journalPath() string {
	return journal.Path(w.stateDir, w.session)
}

// watchLoop converts filesystem events on the journal into notify ticks.
func (w *Watcher) watchLoop(ctx context.Context, fsw *fsnotify.Watcher, notify chan<- struct{}) error {
	journalFile := filepath.Base(w.journalPath())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != journalFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case notify <- struct{}{}:
			default:
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err.Error())
		}
	}
}

// publishLoop debounces notifications and runs the fallback poll.
func (w *Watcher) publishLoop(ctx context.Context, notify <-chan struct{}) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-notify:
			timer := time.NewTimer(w.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			w.flush()
		case <-ticker.C:
			w.flush()
		}
	}
}

// flush reads the journal and publishes events not yet seen. Read errors
// are logged and retried on the next tick.
func (w *Watcher) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := journal.NewReader(w.journalPath()).All()
	if err != nil {
		w.logger.Warn("reading journal", "error", err.Error())
		return
	}
	if len(all) <= w.seen {
		return
	}

	for _, evt := range all[w.seen:] {
		w.bus.Publish(evt)
	}
	w.seen = len(all)
}
