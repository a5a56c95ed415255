// Package scoring implements the 3-layer agent confidence scorer.
//
// Layer 1 matches exact keywords (with negation short-circuit), layer 2
// classifies the prompt into categories and intersects them with each
// agent's declared categories, layer 3 is the pluggable intent layer
// (regex phrase matching by default). The three layer scores are fused
// with configured weights, adjusted by the optional memory hook, clamped
// to [0, 100], and ranked.
package scoring

import (
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"agentgate/internal/config"
	"agentgate/internal/logging"
	"agentgate/internal/registry"
)

// Breakdown records the per-layer contributions behind one agent's score.
type Breakdown struct {
	KeywordScore     float64              `json:"keyword_score"`
	CategoryScore    float64              `json:"category_score"`
	IntentScore      float64              `json:"intent_score"`
	MemoryAdjustment float64              `json:"memory_adj"`
	Weights          config.WeightsConfig `json:"weights"`
	FinalScore       float64              `json:"final_score"`
}

// Result is one agent's fused score.
type Result struct {
	Agent     string    `json:"agent"`
	Breakdown Breakdown `json:"breakdown"`
}

// Scorer fuses the three layers over a registry.
type Scorer struct {
	registry *registry.Registry
	cfg      *config.Config
	intent   IntentScorer
	memory   MemoryAdjuster
}

// NewScorer creates a scorer with the default layer bindings
// (PhraseScorer intent, NullAdjuster memory).
func NewScorer(reg *registry.Registry, cfg *config.Config) *Scorer {
	return &Scorer{
		registry: reg,
		cfg:      cfg,
		intent:   PhraseScorer{},
		memory:   NullAdjuster{},
	}
}

// WithIntentScorer swaps the intent layer. Returns the scorer for chaining.
func (s *Scorer) WithIntentScorer(is IntentScorer) *Scorer {
	if is != nil {
		s.intent = is
	}
	return s
}

// WithMemoryAdjuster swaps the memory hook. Returns the scorer for chaining.
func (s *Scorer) WithMemoryAdjuster(m MemoryAdjuster) *Scorer {
	if m != nil {
		s.memory = m
	}
	return s
}

// Score runs all three layers over every registered agent and returns
// results ranked descending by final score. Ties keep registry document
// order (stable sort).
func (s *Scorer) Score(prompt string) []Result {
	timer := logging.StartTimer(logging.CategoryScoring, "Scorer.Score")
	defer timer.Stop()

	names := s.registry.AgentNames()
	if len(names) == 0 {
		return nil
	}

	promptLower := strings.ToLower(prompt)
	matchedCategories := s.ClassifyCategories(prompt)

	var layer1, layer2, layer3 map[string]float64
	if s.cfg.Scoring.Parallel {
		var g errgroup.Group
		g.Go(func() error {
			layer1 = s.layerKeyword(promptLower, names)
			return nil
		})
		g.Go(func() error {
			layer2 = s.layerCategory(matchedCategories, names)
			return nil
		})
		g.Go(func() error {
			layer3 = s.layerIntent(promptLower, names)
			return nil
		})
		_ = g.Wait() // layer funcs never error
	} else {
		layer1 = s.layerKeyword(promptLower, names)
		layer2 = s.layerCategory(matchedCategories, names)
		layer3 = s.layerIntent(promptLower, names)
	}

	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, s.fuse(name, prompt, layer1[name], layer2[name], layer3[name]))
	}

	// Rank descending; stable so ties keep registry order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Breakdown.FinalScore > results[j].Breakdown.FinalScore
	})

	if len(results) > 0 {
		logging.ScoringDebug("Scored %d agents, top=%s (%.1f)",
			len(results), results[0].Agent, results[0].Breakdown.FinalScore)
	}
	return results
}

// ClassifyCategories matches the prompt against every configured category
// keyword list. A category either matches or not; the first keyword hit
// wins per category. Returned names are sorted for determinism.
func (s *Scorer) ClassifyCategories(prompt string) []string {
	promptLower := strings.ToLower(prompt)

	var matched []string
	for name, def := range s.cfg.Categories {
		for _, kw := range def.Keywords {
			if strings.Contains(promptLower, strings.ToLower(kw)) {
				matched = append(matched, name)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}

// layerKeyword scores exact keyword substring matches. Any negation
// pattern match forces the score to 0 regardless of positive matches:
// negation always wins, as a short-circuit rather than a weighted
// adjustment.
func (s *Scorer) layerKeyword(promptLower string, names []string) map[string]float64 {
	scores := make(map[string]float64, len(names))
	for _, name := range names {
		agent := s.registry.Agent(name)
		if agent == nil {
			scores[name] = 0
			continue
		}

		negated := false
		for _, re := range agent.NegationRegexps {
			if re.MatchString(promptLower) {
				negated = true
				break
			}
		}
		if negated {
			scores[name] = 0
			continue
		}

		matches := 0
		for _, kw := range agent.Triggers.ExactKeywords {
			if strings.Contains(promptLower, strings.ToLower(kw)) {
				matches++
			}
		}
		scores[name] = keywordStep(matches)
	}
	return scores
}

// layerCategory scores the overlap between matched prompt categories and
// each agent's declared categories. With zero matched categories every
// agent scores 0 on this layer.
func (s *Scorer) layerCategory(matchedCategories []string, names []string) map[string]float64 {
	scores := make(map[string]float64, len(names))
	if len(matchedCategories) == 0 {
		for _, name := range names {
			scores[name] = 0
		}
		return scores
	}

	matched := make(map[string]bool, len(matchedCategories))
	for _, c := range matchedCategories {
		matched[c] = true
	}

	for _, name := range names {
		agent := s.registry.Agent(name)
		if agent == nil {
			scores[name] = 0
			continue
		}
		overlap := 0
		for _, c := range agent.Categories {
			if matched[c] {
				overlap++
			}
		}
		scores[name] = categoryStep(overlap)
	}
	return scores
}

// layerIntent delegates to the bound IntentScorer per agent.
func (s *Scorer) layerIntent(promptLower string, names []string) map[string]float64 {
	scores := make(map[string]float64, len(names))
	for _, name := range names {
		scores[name] = s.intent.Score(promptLower, s.registry.Agent(name))
	}
	return scores
}

// fuse combines the layer scores with configured weights plus the bounded
// memory adjustment, clamped to [0, 100]. Weights are applied as-is: if
// they do not sum to 1.0 the out-of-range product is silently truncated
// by the clamp, which is the documented behavior for misconfiguration.
func (s *Scorer) fuse(name, prompt string, l1, l2, l3 float64) Result {
	w := s.cfg.Weights
	sum := l1*w.Keyword + l2*w.Category + l3*w.Intent

	var memAdj float64
	if s.cfg.MemoryLearning.Enabled {
		memAdj = s.memory.Adjust(name, prompt)
		if memAdj > s.cfg.MemoryLearning.MaxBoost {
			memAdj = s.cfg.MemoryLearning.MaxBoost
		}
		if memAdj < -s.cfg.MemoryLearning.MaxPenalty {
			memAdj = -s.cfg.MemoryLearning.MaxPenalty
		}
	}

	final := clamp(sum+memAdj, 0, 100)

	return Result{
		Agent: name,
		Breakdown: Breakdown{
			KeywordScore:     l1,
			CategoryScore:    l2,
			IntentScore:      l3,
			MemoryAdjustment: memAdj,
			Weights:          w,
			FinalScore:       final,
		},
	}
}

// keywordStep maps a keyword match count to a 0-100 score. Diminishing
// returns beyond 3 matches keep keyword-stuffed agent definitions from
// running away with every prompt.
func keywordStep(matches int) float64 {
	switch {
	case matches >= 3:
		return 100
	case matches == 2:
		return 80
	case matches == 1:
		return 60
	default:
		return 0
	}
}

// categoryStep maps a category overlap count to a 0-100 score.
func categoryStep(overlap int) float64 {
	switch {
	case overlap >= 3:
		return 100
	case overlap == 2:
		return 85
	case overlap == 1:
		return 70
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
