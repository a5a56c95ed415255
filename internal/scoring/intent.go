package scoring

import (
	"agentgate/internal/registry"
)

// IntentScorer is the pluggable third scoring layer. The production
// deployment may bind a remote semantic service here; the default binding
// is the deterministic PhraseScorer below. Implementations must return a
// score in [0, 100] where higher means more confident.
type IntentScorer interface {
	Score(text string, agent *registry.AgentDefinition) float64
}

// PhraseScorer is the regex fallback intent layer. It counts how many of
// the agent's phrase patterns match the request and maps the count through
// a step function.
type PhraseScorer struct{}

// Score implements IntentScorer.
func (PhraseScorer) Score(text string, agent *registry.AgentDefinition) float64 {
	if agent == nil || len(agent.PhraseRegexps) == 0 {
		return 0
	}

	matches := 0
	for _, re := range agent.PhraseRegexps {
		if re.MatchString(text) {
			matches++
		}
	}

	return phraseStep(matches)
}

// phraseStep maps a phrase match count to a 0-100 score.
// The breakpoints are preserved from long-standing tuning; treat them as
// behavioral contract, not derivation.
func phraseStep(matches int) float64 {
	switch {
	case matches >= 3:
		return 100
	case matches == 2:
		return 85
	case matches == 1:
		return 70
	default:
		return 0
	}
}
