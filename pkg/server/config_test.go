package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := writeConfigFile(t, `
addr: ":6000"
accounts_db: "/tmp/acc.db"
log_level: debug
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.Addr)
	assert.Equal(t, "/tmp/acc.db", cfg.AccountsDB)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConfig().MessagesDB, cfg.MessagesDB)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `addr: ":6000"`)
	t.Setenv("CHAT_ADDR", ":7000")
	t.Setenv("CHAT_LOG_FORMAT", "json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfigFile(t, "addr: [:::")
	_, err := LoadConfig(path)
	require.Error(t, err)
}
