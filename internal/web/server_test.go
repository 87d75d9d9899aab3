package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/powersteer/steerstate/internal/adapters/state"
	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/journal"
	"github.com/powersteer/steerstate/internal/logging"
)

// seedSession writes a state file and a few journal events for one session.
func seedSession(t *testing.T, stateDir string, session core.SessionID, turn int) {
	t.Helper()

	writer := journal.NewWriter(journal.Path(stateDir, session), logging.NewNop().Logger)
	defer writer.Close()

	store, err := state.NewStore(stateDir, session, state.StoreOptions{Sink: writer})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = state.CloseStore(store) }()

	st, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	st.TurnCount = turn
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	stateDir := t.TempDir()
	srv := New(DefaultConfig(), stateDir, logging.NewNop())
	return srv, stateDir
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "healthy" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestHandleListSessions(t *testing.T) {
	srv, stateDir := newTestServer(t)
	seedSession(t, stateDir, "alpha", 3)
	seedSession(t, stateDir, "beta", 7)

	rec := get(t, srv, "/api/v1/sessions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Sessions []sessionInfo `json:"sessions"`
	}
	decode(t, rec, &body)
	if len(body.Sessions) != 2 {
		t.Fatalf("sessions = %+v, want 2", body.Sessions)
	}
	if body.Sessions[0].SessionID != "alpha" || body.Sessions[0].TurnCount != 3 {
		t.Errorf("first session = %+v", body.Sessions[0])
	}
	if body.Sessions[1].SessionID != "beta" || body.Sessions[1].TurnCount != 7 {
		t.Errorf("second session = %+v", body.Sessions[1])
	}
}

func TestHandleListSessions_EmptyDir(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/api/v1/sessions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleSessionState(t *testing.T) {
	srv, stateDir := newTestServer(t)
	seedSession(t, stateDir, "alpha", 5)

	rec := get(t, srv, "/api/v1/sessions/alpha/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var st core.TurnState
	decode(t, rec, &st)
	if st.TurnCount != 5 {
		t.Errorf("TurnCount = %d, want 5", st.TurnCount)
	}
	if st.SessionID != "alpha" {
		t.Errorf("SessionID = %s", st.SessionID)
	}
}

func TestHandleSessionState_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/api/v1/sessions/ghost/state")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var body map[string]interface{}
	decode(t, rec, &body)
	if body["code"] != "NOT_FOUND" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestHandleSessionHealth(t *testing.T) {
	srv, stateDir := newTestServer(t)
	seedSession(t, stateDir, "alpha", 2)

	rec := get(t, srv, "/api/v1/sessions/alpha/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var summary core.HealthSummary
	decode(t, rec, &summary)
	if summary.Health != core.HealthHealthy {
		t.Errorf("Health = %s, want healthy", summary.Health)
	}
	if summary.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2", summary.TurnCount)
	}
}

func TestHandleSessionEvents(t *testing.T) {
	srv, stateDir := newTestServer(t)
	seedSession(t, stateDir, "alpha", 1)

	rec := get(t, srv, "/api/v1/sessions/alpha/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Events []core.DiagnosticEvent `json:"events"`
	}
	decode(t, rec, &body)
	// One save produces at least an attempt and a success.
	if len(body.Events) < 2 {
		t.Errorf("events = %d, want at least 2", len(body.Events))
	}
}

func TestHandleSessionEvents_Limit(t *testing.T) {
	srv, stateDir := newTestServer(t)
	seedSession(t, stateDir, "alpha", 1)

	rec := get(t, srv, "/api/v1/sessions/alpha/events?limit=1")
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Code)
	}

	var body struct {
		Events []core.DiagnosticEvent `json:"events"`
	}
	decode(t, rec, &body)
	if len(body.Events) != 1 {
		t.Errorf("events = %d, want 1", len(body.Events))
	}
}

func TestHandleSessionEvents_BadLimit(t *testing.T) {
	srv, stateDir := newTestServer(t)
	seedSession(t, stateDir, "alpha", 1)

	for _, limit := range []string{"0", "-3", "abc"} {
		rec := get(t, srv, "/api/v1/sessions/alpha/events?limit="+limit)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", limit, rec.Code)
		}
	}
}

func TestHandleSessionEvents_UnknownSession(t *testing.T) {
	srv, stateDir := newTestServer(t)
	seedSession(t, stateDir, "alpha", 1)

	rec := get(t, srv, "/api/v1/sessions/ghost/events")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var body map[string]interface{}
	decode(t, rec, &body)
	if body["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", body["code"])
	}
}

func TestHandleSessionEvents_MissingJournal(t *testing.T) {
	srv, stateDir := newTestServer(t)

	// Session directory exists but no journal was written yet.
	store, err := state.NewStore(stateDir, "bare", state.StoreOptions{})
	if err != nil {
		t.Fatal(err)
	}
	st, _ := store.Load(context.Background())
	st.TurnCount = 1
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv, "/api/v1/sessions/bare/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Events []core.DiagnosticEvent `json:"events"`
	}
	decode(t, rec, &body)
	if body.Events == nil {
		t.Error("events field absent, want empty array")
	}
}

func TestListSessions_MissingDir(t *testing.T) {
	ids, err := ListSessions("/nonexistent/steerstate")
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if ids != nil {
		t.Errorf("ids = %v, want nil", ids)
	}
}

func TestServerAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 9999
	srv := New(cfg, t.TempDir(), logging.NewNop())
	if srv.Addr() != "127.0.0.1:9999" {
		t.Errorf("Addr() = %s", srv.Addr())
	}
}
