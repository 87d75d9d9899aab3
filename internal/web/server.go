// Package web exposes the diagnostics surface over HTTP: session listing,
// persisted turn state, health summaries, and the raw event journal. The
// server is read-only; state mutations go through the CLI.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/powersteer/steerstate/internal/adapters/state"
	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/events"
	"github.com/powersteer/steerstate/internal/health"
	"github.com/powersteer/steerstate/internal/journal"
	"github.com/powersteer/steerstate/internal/logging"
	"github.com/powersteer/steerstate/internal/loopdetect"
)

// Config holds the server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	EnableCORS      bool
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8643,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		EnableCORS:      false,
	}
}

// Server serves the diagnostics API for one state directory.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	config     Config
	logger     *logging.Logger

	stateDir   string
	storeOpts  state.StoreOptions
	detector   *loopdetect.Detector
	summarizer *health.Summarizer
	bus        *events.Bus
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithEventBus sets the bus used for live event streaming.
func WithEventBus(bus *events.Bus) ServerOption {
	return func(s *Server) {
		s.bus = bus
	}
}

// WithDetector overrides the default loop detector.
func WithDetector(d *loopdetect.Detector) ServerOption {
	return func(s *Server) {
		s.detector = d
	}
}

// WithStoreOptions sets the backend options used when opening session stores.
func WithStoreOptions(opts state.StoreOptions) ServerOption {
	return func(s *Server) {
		s.storeOpts = opts
	}
}

// New creates a server rooted at stateDir.
func New(cfg Config, stateDir string, logger *logging.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		config:   cfg,
		logger:   logger.WithComponent("web"),
		stateDir: stateDir,
		detector: loopdetect.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.summarizer = health.NewSummarizer(
		func(session core.SessionID) (core.Store, error) {
			return state.NewStore(s.stateDir, session, s.storeOpts)
		},
		func(session core.SessionID) core.EventSource {
			return journal.NewReader(journal.Path(s.stateDir, session))
		},
		s.detector,
		s.logger,
	).WithStoreCloser(state.CloseStore)

	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins: s.config.CORSOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		})
		r.Use(corsMiddleware.Handler)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleAPIRoot)
		r.Get("/sessions", s.handleListSessions)
		r.Route("/sessions/{session}", func(r chi.Router) {
			r.Get("/state", s.handleSessionState)
			r.Get("/health", s.handleSessionHealth)
			r.Get("/events", s.handleSessionEvents)
		})
		if s.bus != nil {
			r.Get("/events/stream", s.handleEventStream)
		}
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleAPIRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"name":    "steerstate-api",
		"version": "v1",
	})
}

// sessionInfo is one row of the session listing.
type sessionInfo struct {
	SessionID string    `json:"session_id"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	TurnCount int       `json:"turn_count"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := ListSessions(s.stateDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	infos := make([]sessionInfo, 0, len(ids))
	for _, id := range ids {
		info := sessionInfo{SessionID: string(id)}
		if st, err := s.loadState(r.Context(), id); err == nil {
			info.TurnCount = st.TurnCount
			info.UpdatedAt = st.UpdatedAt
		}
		infos = append(infos, info)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": infos})
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	session := core.SessionID(chi.URLParam(r, "session"))
	if !s.sessionExists(session) {
		s.writeError(w, http.StatusNotFound,
			core.ErrNotFound("session", string(session)))
		return
	}

	st, err := s.loadState(r.Context(), session)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSessionHealth(w http.ResponseWriter, r *http.Request) {
	session := core.SessionID(chi.URLParam(r, "session"))
	if !s.sessionExists(session) {
		s.writeError(w, http.StatusNotFound,
			core.ErrNotFound("session", string(session)))
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), session)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	session := core.SessionID(chi.URLParam(r, "session"))
	if !s.sessionExists(session) {
		s.writeError(w, http.StatusNotFound,
			core.ErrNotFound("session", string(session)))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest,
				core.ErrValidation(core.CodeInvalidConfig, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	reader := journal.NewReader(journal.Path(s.stateDir, session))
	evts, err := reader.Tail(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if evts == nil {
		evts = []core.DiagnosticEvent{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": evts})
}

// handleEventStream streams bus events as server-sent events until the
// client disconnects.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError,
			errors.New("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		}
	}
}

// loadState opens the session store for one read. Reads performed through
// the API leave the same diagnostic trail as CLI reads: the event lands in
// the session journal and, when streaming is enabled, on the bus.
func (s *Server) loadState(ctx context.Context, session core.SessionID) (*core.TurnState, error) {
	writer := journal.NewWriter(journal.Path(s.stateDir, session), s.logger.Logger)
	defer func() { _ = writer.Close() }()

	opts := s.storeOpts
	sinks := events.Fanout{writer}
	if s.bus != nil {
		sinks = append(sinks, s.bus)
	}
	opts.Sink = sinks

	store, err := state.NewStore(s.stateDir, session, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = state.CloseStore(store) }()
	return store.Load(ctx)
}

func (s *Server) sessionExists(session core.SessionID) bool {
	if session == "" {
		return false
	}
	_, err := os.Stat(state.SessionDir(s.stateDir, session))
	return err == nil
}

// ListSessions returns the session IDs present under stateDir, sorted.
func ListSessions(stateDir string) ([]core.SessionID, error) {
	entries, err := os.ReadDir(stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state directory: %w", err)
	}

	var ids []core.SessionID
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, core.SessionID(e.Name()))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	payload := map[string]interface{}{"error": err.Error()}
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		payload["code"] = domErr.Code
		payload["category"] = domErr.Category
	}
	s.writeJSON(w, status, payload)
}

// Start starts the HTTP server without blocking.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.httpServer.Addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err.Error())
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the underlying chi router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
