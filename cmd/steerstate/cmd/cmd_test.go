package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd_Structure(t *testing.T) {
	assert.Equal(t, "steerstate", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{
		"begin", "status", "bump", "block", "approve",
		"diagnose", "doctor", "watch", "serve", "init", "version",
	}

	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range want {
		assert.True(t, registered[name], "command %s not registered", name)
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level", "log-format", "no-color", "quiet", "state-dir", "backend"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "flag --%s missing", name)
	}
}

func TestBlockFlags(t *testing.T) {
	assert.NotNil(t, blockCmd.Flags().Lookup("addressed"), "flag --addressed missing")
}

func TestVersionInjection(t *testing.T) {
	SetVersion("1.2.3", "abc", "today")
	assert.Equal(t, "1.2.3", appVersion)
	assert.Equal(t, "abc", appCommit)
	assert.Equal(t, "today", appDate)
}
