package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, workspace, name, content string) {
	t.Helper()
	dir := filepath.Join(workspace, ".agentgate", "config")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 85.0, cfg.Thresholds.AutoInvoke)
	assert.Equal(t, 60.0, cfg.Thresholds.PromptUser)
	assert.Equal(t, 0.25, cfg.Weights.Keyword)
	assert.Equal(t, 0.35, cfg.Weights.Category)
	assert.Equal(t, 0.40, cfg.Weights.Intent)
	assert.True(t, cfg.Disambiguation.Enabled)
	assert.Equal(t, 15.0, cfg.Disambiguation.ScoreGapThreshold)
	assert.Equal(t, 3, cfg.Disambiguation.MaxOptions)
	assert.Equal(t, 20.0, cfg.Disambiguation.MinScoreForOption)
	assert.Equal(t, 20.0, cfg.MemoryLearning.MaxBoost)
	assert.Equal(t, 25.0, cfg.MemoryLearning.MaxPenalty)
	assert.Equal(t, 1, cfg.Exemptions.MaxFiles)
	assert.NotEmpty(t, cfg.Exemptions.PromptPatterns)
}

func TestLoadMissingConfigUsesDefaults(t *testing.T) {
	cfg := Load(t.TempDir())
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadJSONOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "invoke-config.json", `{
		"thresholds": {"auto_invoke": 90, "prompt_user": 50},
		"categories": {"security": {"keywords": ["auth", "token"]}}
	}`)

	cfg := Load(dir)
	assert.Equal(t, 90.0, cfg.Thresholds.AutoInvoke)
	assert.Equal(t, 50.0, cfg.Thresholds.PromptUser)
	require.Contains(t, cfg.Categories, "security")
	assert.Equal(t, []string{"auth", "token"}, cfg.Categories["security"].Keywords)

	// Sections absent from the document keep their defaults.
	assert.Equal(t, 0.25, cfg.Weights.Keyword)
	assert.True(t, cfg.Disambiguation.Enabled)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "invoke-config.yaml", `
thresholds:
  auto_invoke: 75
weights:
  keyword: 0.5
  category: 0.3
  intent: 0.2
`)

	cfg := Load(dir)
	assert.Equal(t, 75.0, cfg.Thresholds.AutoInvoke)
	assert.Equal(t, 0.5, cfg.Weights.Keyword)
	// Untouched default survives.
	assert.Equal(t, 60.0, cfg.Thresholds.PromptUser)
}

func TestLoadPrefersJSONOverYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "invoke-config.json", `{"thresholds": {"auto_invoke": 91}}`)
	writeConfig(t, dir, "invoke-config.yaml", `{"thresholds": {"auto_invoke": 42}}`)

	cfg := Load(dir)
	assert.Equal(t, 91.0, cfg.Thresholds.AutoInvoke)
}

func TestLoadMalformedFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "invoke-config.json", `{"thresholds": {`)

	cfg := Load(dir)
	assert.Equal(t, DefaultConfig(), cfg)
}
