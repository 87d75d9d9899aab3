package state

import (
	"path/filepath"
	"testing"

	"github.com/powersteer/steerstate/internal/core"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		session core.SessionID
		wantErr bool
	}{
		{name: "default backend", backend: "", session: "s1"},
		{name: "json backend", backend: BackendJSON, session: "s1"},
		{name: "sqlite backend", backend: BackendSQLite, session: "s1"},
		{name: "unknown backend", backend: "postgres", session: "s1", wantErr: true},
		{name: "empty session", backend: BackendJSON, session: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(t.TempDir(), tt.session, StoreOptions{Backend: tt.backend})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !core.IsCategory(err, core.ErrCatValidation) {
					t.Errorf("category = %s, want validation", core.GetCategory(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStore() error = %v", err)
			}
			defer func() { _ = CloseStore(store) }()

			if store.Exists() {
				t.Error("fresh store reports Exists()")
			}
		})
	}
}

func TestSessionPaths(t *testing.T) {
	dir := "/var/lib/steerstate"
	if got := SessionDir(dir, "abc"); got != filepath.Join(dir, "abc") {
		t.Errorf("SessionDir() = %s", got)
	}
	if got := StatePath(dir, "abc"); got != filepath.Join(dir, "abc", "turn_state.json") {
		t.Errorf("StatePath() = %s", got)
	}
}

func TestCloseStoreJSON(t *testing.T) {
	store := NewJSONTurnStore(StatePath(t.TempDir(), "s"), "s")
	if err := CloseStore(store); err != nil {
		t.Errorf("CloseStore(json) error = %v", err)
	}
}
