// Package config loads the agentgate invocation configuration.
//
// Configuration is deliberately forgiving: a missing or malformed document
// degrades to built-in defaults rather than surfacing an error, because the
// engine must never block the surrounding workflow due to its own
// misconfiguration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"agentgate/internal/logging"
)

// Config holds all agentgate decision-engine configuration.
type Config struct {
	// Confidence thresholds for action classification
	Thresholds ThresholdsConfig `json:"thresholds" yaml:"thresholds"`

	// Layer fusion weights. Must sum to 1.0 by configuration contract;
	// the scorer does not normalize if they don't.
	Weights WeightsConfig `json:"weights" yaml:"weights"`

	// Disambiguation between closely scored agents
	Disambiguation DisambiguationConfig `json:"disambiguation" yaml:"disambiguation"`

	// Memory-based score adjustment limits
	MemoryLearning MemoryLearningConfig `json:"memory_learning" yaml:"memory_learning"`

	// Banner / breakdown display
	Visibility VisibilityConfig `json:"visibility" yaml:"visibility"`

	// Named prompt categories for layer-2 classification
	Categories map[string]CategoryDef `json:"categories" yaml:"categories"`

	// Enforcement exemptions
	Exemptions ExemptionsConfig `json:"exemptions" yaml:"exemptions"`

	// Scorer execution settings
	Scoring ScoringConfig `json:"scoring" yaml:"scoring"`
}

// ThresholdsConfig maps the top confidence score to an action.
type ThresholdsConfig struct {
	AutoInvoke float64 `json:"auto_invoke" yaml:"auto_invoke"`
	PromptUser float64 `json:"prompt_user" yaml:"prompt_user"`
}

// WeightsConfig weights the three scoring layers.
type WeightsConfig struct {
	Keyword  float64 `json:"keyword" yaml:"keyword"`
	Category float64 `json:"category" yaml:"category"`
	Intent   float64 `json:"intent" yaml:"intent"`
}

// DisambiguationConfig controls the multiple-choice fallback when several
// agents score closely below the auto-invoke threshold.
type DisambiguationConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	ScoreGapThreshold float64 `json:"score_gap_threshold" yaml:"score_gap_threshold"`
	MaxOptions        int     `json:"max_options" yaml:"max_options"`
	MinScoreForOption float64 `json:"min_score_for_option" yaml:"min_score_for_option"`
}

// MemoryLearningConfig bounds the pluggable memory adjustment.
type MemoryLearningConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	MaxBoost   float64 `json:"max_boost" yaml:"max_boost"`
	MaxPenalty float64 `json:"max_penalty" yaml:"max_penalty"`
}

// VisibilityConfig controls terminal banner output.
type VisibilityConfig struct {
	ShowBanners             bool `json:"show_banners" yaml:"show_banners"`
	ShowConfidenceBreakdown bool `json:"show_confidence_breakdown" yaml:"show_confidence_breakdown"`
}

// CategoryDef declares the keyword list for a prompt category.
type CategoryDef struct {
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// ExemptionsConfig exempts trivial or informational sessions from enforcement.
type ExemptionsConfig struct {
	// Sessions touching at most MaxFiles files are never enforced.
	MaxFiles int `json:"max_files" yaml:"max_files"`

	// Prompts matching any of these regexes mark the session informational.
	PromptPatterns []string `json:"prompt_patterns" yaml:"prompt_patterns"`
}

// ScoringConfig controls scorer execution.
type ScoringConfig struct {
	// Parallel evaluates the three layers concurrently. The outcome is
	// identical either way; this only matters for very large registries.
	Parallel bool `json:"parallel" yaml:"parallel"`
}

// DefaultConfig returns the built-in defaults used when no configuration
// document exists or individual sections are missing.
func DefaultConfig() *Config {
	return &Config{
		Thresholds: ThresholdsConfig{
			AutoInvoke: 85,
			PromptUser: 60,
		},
		Weights: WeightsConfig{
			Keyword:  0.25,
			Category: 0.35,
			Intent:   0.40,
		},
		Disambiguation: DisambiguationConfig{
			Enabled:           true,
			ScoreGapThreshold: 15,
			MaxOptions:        3,
			MinScoreForOption: 20,
		},
		MemoryLearning: MemoryLearningConfig{
			Enabled:    true,
			MaxBoost:   20,
			MaxPenalty: 25,
		},
		Visibility: VisibilityConfig{
			ShowBanners:             true,
			ShowConfidenceBreakdown: true,
		},
		Exemptions: ExemptionsConfig{
			MaxFiles: 1,
			PromptPatterns: []string{
				`^(what|how|why|when|where|who|explain|describe|tell me)\b`,
			},
		},
		Scoring: ScoringConfig{
			Parallel: false,
		},
	}
}

// configSearchNames lists the accepted config file names, in priority order.
var configSearchNames = []string{
	"invoke-config.json",
	"invoke-config.yaml",
	"invoke-config.yml",
}

// Load reads the invoke configuration from <workspace>/.agentgate/config/.
// Missing or malformed documents fall back to DefaultConfig; individual
// missing fields inherit their default values.
func Load(workspace string) *Config {
	cfg := DefaultConfig()

	dir := filepath.Join(workspace, ".agentgate", "config")
	for _, name := range configSearchNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		// Unmarshal over defaults so absent fields keep their default values.
		if err := unmarshalByExt(path, data, cfg); err != nil {
			logging.Get(logging.CategoryBoot).Error("Malformed config %s: %v (using defaults)", path, err)
			return DefaultConfig()
		}

		logging.Get(logging.CategoryBoot).Debug("Loaded config from %s", path)
		return cfg
	}

	logging.Get(logging.CategoryBoot).Debug("No invoke-config found under %s, using defaults", dir)
	return cfg
}

func unmarshalByExt(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}
