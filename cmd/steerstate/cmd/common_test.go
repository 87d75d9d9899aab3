package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powersteer/steerstate/internal/config"
	"github.com/powersteer/steerstate/internal/core"
)

func makeSessionDirs(t *testing.T, ids ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, id), 0o750))
	}
	return dir
}

func TestResolveSession_Exact(t *testing.T) {
	dir := makeSessionDirs(t, "alpha-1234", "beta-5678")

	got, err := resolveSession(dir, "alpha-1234")
	require.NoError(t, err)
	assert.Equal(t, core.SessionID("alpha-1234"), got)
}

func TestResolveSession_FuzzyUnique(t *testing.T) {
	dir := makeSessionDirs(t, "alpha-1234", "beta-5678")

	got, err := resolveSession(dir, "alph")
	require.NoError(t, err)
	assert.Equal(t, core.SessionID("alpha-1234"), got)
}

func TestResolveSession_Ambiguous(t *testing.T) {
	dir := makeSessionDirs(t, "alpha-1234", "alpha-9999")

	_, err := resolveSession(dir, "alpha")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
}

func TestResolveSession_NotFound(t *testing.T) {
	dir := makeSessionDirs(t, "alpha-1234")

	_, err := resolveSession(dir, "zzz")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestResolveSession_EmptyRef(t *testing.T) {
	_, err := resolveSession(t.TempDir(), "")
	require.Error(t, err)
}

func TestListSessionIDs_MissingDir(t *testing.T) {
	ids, err := listSessionIDs(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestListSessionIDs_IgnoresFiles(t *testing.T) {
	dir := makeSessionDirs(t, "alpha")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644))

	ids, err := listSessionIDs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, ids)
}

func TestStoreOptions(t *testing.T) {
	cfg := &config.Config{}
	cfg.State.Backend = "sqlite"
	cfg.State.MaxAttempts = 5
	cfg.State.BaseBackoff = "20ms"

	opts, err := storeOptions(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", opts.Backend)
	assert.Equal(t, 5, opts.Attempts)
	assert.Equal(t, 20*time.Millisecond, opts.BaseBackoff)
}

func TestStoreOptions_BadBackoff(t *testing.T) {
	cfg := &config.Config{}
	cfg.State.BaseBackoff = "soon"

	_, err := storeOptions(cfg, nil)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))
	assert.NotEqual(t, "-", formatTime(time.Now()))
}
