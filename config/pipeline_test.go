package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPipelineConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadPipelineConfig("")
	require.NoError(t, err)
	assert.Equal(t, "best-effort", cfg.DefaultStrategy)
	assert.Equal(t, 70.0, cfg.SuccessThreshold)
	assert.Equal(t, 300*time.Second, cfg.RunBudget)
	assert.Equal(t, "@every 15m", cfg.ReplaySchedule)
	assert.Len(t, cfg.VisionModels, 2)
}

func TestLoadPipelineConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
allowExternalCalls: false
defaultStrategy: cost-optimized
strandTimeout: 15s
weights:
  title: 0.5
visionModels:
  - id: llava:13b
    provider: ollama
    baseRate: 0
    tier: local
`), 0o600))

	cfg, err := LoadPipelineConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.AllowExternalCalls)
	assert.Equal(t, "cost-optimized", cfg.DefaultStrategy)
	assert.Equal(t, 15*time.Second, cfg.StrandTimeout)
	assert.Equal(t, 70.0, cfg.VisionFallbackThreshold)
	assert.Equal(t, 0.5, cfg.Weights["title"])
	require.Len(t, cfg.VisionModels, 1)
	assert.Equal(t, "ollama", cfg.VisionModels[0].Provider)
}

func TestPipelineConfig_EnvOverrides(t *testing.T) {
	t.Setenv("EXTRACTION_STRATEGY", "accuracy-first")
	t.Setenv("RUN_BUDGET", "2m")
	t.Setenv("ALLOW_EXTERNAL_CALLS", "false")

	cfg := DefaultPipelineConfig()
	cfg.applyEnv()
	assert.Equal(t, "accuracy-first", cfg.DefaultStrategy)
	assert.Equal(t, 2*time.Minute, cfg.RunBudget)
	assert.False(t, cfg.AllowExternalCalls)
}

func TestLoadPipelineConfig_MissingFile(t *testing.T) {
	_, err := LoadPipelineConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
