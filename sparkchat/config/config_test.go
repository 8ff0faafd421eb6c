package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err) // explicit path must exist

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "claude-haiku", cfg.Chat.DefaultModel)
	assert.Equal(t, 5, cfg.Chat.MaxToolRounds)
	assert.Equal(t, 30*time.Second, cfg.Chat.ToolTimeout)
	assert.Equal(t, int64(50), cfg.Sparks.DailyGrant)
	assert.Equal(t, int64(200), cfg.Sparks.VerifiedDailyGrant)
	assert.Equal(t, "UTC", cfg.Sparks.ClaimTimezone)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
chat:
  max_tool_rounds: 2
  model_timeout: 45s
sparks:
  daily_grant: 75
  claim_timezone: "America/New_York"
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Chat.MaxToolRounds)
	assert.Equal(t, 45*time.Second, cfg.Chat.ModelTimeout)
	assert.Equal(t, int64(75), cfg.Sparks.DailyGrant)
	assert.Equal(t, "America/New_York", cfg.Sparks.ClaimTimezone)
	// unset keys keep their defaults
	assert.Equal(t, 4, cfg.Chat.ToolConcurrency)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SPARKCHAT_SPARKS_INITIAL_BALANCE", "250")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, int64(250), cfg.Sparks.InitialBalance)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	writeConfig := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	_, err := LoadConfig(writeConfig(t, "chat:\n  max_tool_rounds: 0\n"))
	assert.ErrorContains(t, err, "max_tool_rounds")

	_, err = LoadConfig(writeConfig(t, "sparks:\n  claim_timezone: \"Mars/Olympus\"\n"))
	assert.ErrorContains(t, err, "claim_timezone")

	_, err = LoadConfig(writeConfig(t, "sparks:\n  daily_grant: -5\n"))
	assert.ErrorContains(t, err, "non-negative")
}
