package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shelfwise/shelfwise/internal/policy"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "shelfwise.db", cfg.Store.Path)
	assert.Equal(t, 100, cfg.DocStore.PageSize)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Models.AnalysisModel)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Models.ConfirmationModel)
	assert.Equal(t, 3, cfg.Loop.MaxRetries)
	assert.Equal(t, policy.ModeTiered, cfg.Policy.Tag.Mode)
	assert.True(t, cfg.Policy.Tag.ReviewTier)
	assert.Equal(t, policy.ModeConfirmAll, cfg.Policy.Correspondent.Mode)
	assert.Equal(t, policy.ModeConfirmAll, cfg.Policy.DocumentType.Mode)
	assert.InDelta(t, 0.85, cfg.Policy.Tag.HighThreshold, 0.001)
	assert.Equal(t, 100, cfg.Scan.MinContentLength)
	assert.InDelta(t, 0.6, cfg.Scan.ConfidenceThreshold, 0.001)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/shelfwise
docstore:
  base_url: http://paperless.local:8000
  token: abc123
loop:
  max_retries: 5
policy:
  tag:
    high_threshold: 0.9
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(".", "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/shelfwise", cfg.Store.DatabaseURL)
	assert.Equal(t, "http://paperless.local:8000", cfg.DocStore.BaseURL)
	assert.Equal(t, "abc123", cfg.DocStore.Token)
	assert.Equal(t, 5, cfg.Loop.MaxRetries)
	assert.InDelta(t, 0.9, cfg.Policy.Tag.HighThreshold, 0.001)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, policy.ModeTiered, cfg.Policy.Tag.Mode)
	assert.Equal(t, 100, cfg.Scan.MinContentLength)
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	chtemp(t)

	yaml := `
policy:
  tag:
    mode: tiered
    high_threshold: 0.3
    low_threshold: 0.8
`
	require.NoError(t, os.WriteFile(filepath.Join(".", "config.yaml"), []byte(yaml), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	chtemp(t)
	t.Setenv("SHELFWISE_SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "verbose", Format: "json"}))
}
