// internal/config/config_test.go
package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 100*time.Millisecond, cfg.Executor.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Executor.CandidateTimeout)
	assert.Equal(t, 12, cfg.Executor.MaxRecoveryCandidates)
	assert.Equal(t, "gemini", cfg.Planner.Provider)
	assert.NotEmpty(t, cfg.Storage.ArtifactsDir)

	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesOverrides(t *testing.T) {
	v := viper.New()
	v.Set("logger.level", "debug")
	v.Set("logger.format", "json")
	v.Set("browser.headless", false)
	v.Set("executor.candidate_timeout", "2s")
	v.Set("storage.artifacts_dir", t.TempDir())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 2*time.Second, cfg.Executor.CandidateTimeout)
	// Untouched values keep their defaults.
	assert.Equal(t, 100*time.Millisecond, cfg.Executor.PollInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Logger.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Executor.PollInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Storage.ArtifactsDir = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateNormalizes(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Executor.MaxRecoveryCandidates = -1
	cfg.Browser.MaxSessions = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 12, cfg.Executor.MaxRecoveryCandidates)
	assert.Equal(t, 1, cfg.Browser.MaxSessions)
}

func TestValidateExpandsHomeInArtifactsDir(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.ArtifactsDir = "~/.waypoint/runs"
	require.NoError(t, cfg.Validate())
	assert.NotContains(t, cfg.Storage.ArtifactsDir, "~")
	assert.True(t, filepath.IsAbs(cfg.Storage.ArtifactsDir))
}
