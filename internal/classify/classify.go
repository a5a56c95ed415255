// Package classify turns ranked confidence scores into an action.
//
// The classifier applies, in order: the command-mapping override (an
// unconditional escape hatch for literal shorthand commands), the
// disambiguation check (when several agents score closely below the
// auto-invoke threshold), and finally the plain threshold ladder
// auto / ask / suggest / none.
package classify

import (
	"strings"

	"agentgate/internal/config"
	"agentgate/internal/logging"
	"agentgate/internal/registry"
	"agentgate/internal/scoring"
)

// Action is the classifier's decision.
type Action string

const (
	ActionAuto    Action = "auto"
	ActionAsk     Action = "ask"
	ActionSuggest Action = "suggest"
	ActionNone    Action = "none"
)

// Option is one disambiguation choice.
type Option struct {
	Agent       string  `json:"agent"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// Decision is the scoring call's outcome.
type Decision struct {
	Action         Action             `json:"action"`
	Agent          string             `json:"agent,omitempty"`
	Score          float64            `json:"score"`
	Breakdown      *scoring.Breakdown `json:"breakdown,omitempty"`
	Disambiguation []Option           `json:"disambiguation,omitempty"`

	// CommandMapped is set when the command-mapping override fired and
	// the three scoring layers were bypassed.
	CommandMapped bool `json:"command_mapped,omitempty"`
}

// CheckCommandMapping reports the mapped agents if the trimmed prompt
// starts with a registered literal command prefix. Mappings are checked in
// registry document order; the first prefix hit wins.
func CheckCommandMapping(prompt string, reg *registry.Registry) ([]string, bool) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return nil, false
	}

	for _, command := range reg.CommandOrder {
		if strings.HasPrefix(trimmed, command) {
			agents := reg.CommandMappings[command]
			if len(agents) > 0 {
				return agents, true
			}
		}
	}
	// Defensive fallback when the order scan produced nothing.
	if len(reg.CommandOrder) == 0 {
		for command, agents := range reg.CommandMappings {
			if strings.HasPrefix(trimmed, command) && len(agents) > 0 {
				return agents, true
			}
		}
	}
	return nil, false
}

// Classify produces the decision for an already-ranked score list.
// The command-mapping override must be evaluated by the caller BEFORE
// scoring (see CommandDecision); this function handles the scored path.
func Classify(ranked []scoring.Result, reg *registry.Registry, cfg *config.Config) Decision {
	if len(ranked) == 0 {
		return Decision{Action: ActionNone}
	}

	top := ranked[0]
	topScore := top.Breakdown.FinalScore
	auto := cfg.Thresholds.AutoInvoke
	ask := cfg.Thresholds.PromptUser

	// Disambiguation applies only below the auto-invoke threshold: a
	// clear winner is never second-guessed.
	if topScore < auto {
		if options := disambiguate(ranked, reg, cfg); len(options) >= 2 {
			logging.ClassifyDebug("Disambiguation: %d close agents (top=%.1f)", len(options), topScore)
			bd := top.Breakdown
			return Decision{
				Action:         ActionAsk,
				Agent:          top.Agent,
				Score:          topScore,
				Breakdown:      &bd,
				Disambiguation: options,
			}
		}
	}

	bd := top.Breakdown
	switch {
	case topScore >= auto:
		logging.ClassifyDebug("Auto-invoke %s (%.1f >= %.1f)", top.Agent, topScore, auto)
		return Decision{Action: ActionAuto, Agent: top.Agent, Score: topScore, Breakdown: &bd}
	case topScore >= ask:
		logging.ClassifyDebug("Ask for %s (%.1f >= %.1f)", top.Agent, topScore, ask)
		return Decision{Action: ActionAsk, Agent: top.Agent, Score: topScore, Breakdown: &bd}
	case topScore > 0:
		logging.ClassifyDebug("Suggest %s (%.1f)", top.Agent, topScore)
		return Decision{Action: ActionSuggest, Agent: top.Agent, Score: topScore, Breakdown: &bd}
	default:
		return Decision{Action: ActionNone}
	}
}

// CommandDecision builds the fixed decision for a command-mapping hit:
// action auto, score 100, scorer output irrelevant.
func CommandDecision(agents []string) Decision {
	return Decision{
		Action:        ActionAuto,
		Agent:         agents[0],
		Score:         100,
		CommandMapped: true,
	}
}

// disambiguate collects agents scoring at or above the configured minimum
// that lie within the gap threshold of the top score. Fewer than two close
// agents means no disambiguation.
func disambiguate(ranked []scoring.Result, reg *registry.Registry, cfg *config.Config) []Option {
	dc := cfg.Disambiguation
	if !dc.Enabled {
		return nil
	}

	var eligible []scoring.Result
	for _, r := range ranked {
		if r.Breakdown.FinalScore >= dc.MinScoreForOption {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) < 2 {
		return nil
	}

	topScore := eligible[0].Breakdown.FinalScore
	var close []scoring.Result
	for _, r := range eligible {
		if topScore-r.Breakdown.FinalScore <= dc.ScoreGapThreshold {
			close = append(close, r)
		}
	}
	if len(close) < 2 {
		return nil
	}

	maxOptions := dc.MaxOptions
	if maxOptions <= 0 {
		maxOptions = 3
	}
	if len(close) > maxOptions {
		close = close[:maxOptions]
	}

	options := make([]Option, 0, len(close))
	for _, r := range close {
		options = append(options, Option{
			Agent:       r.Agent,
			Score:       r.Breakdown.FinalScore,
			Description: reg.Description(r.Agent),
		})
	}
	return options
}
