// Package rules loads the enforcement rule set.
//
// Each rule maps trigger conditions (prompt patterns, file patterns, file
// count thresholds) to required agents or required categories with a
// strictness level. Rules are static configuration, loaded read-only per
// invocation; absence degrades to an empty, disabled rule set.
package rules

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"agentgate/internal/logging"
)

// Strictness decides whether an unsatisfied rule blocks completion.
type Strictness string

const (
	StrictnessBlock Strictness = "block"
	StrictnessWarn  Strictness = "warn"
)

// Trigger describes when a rule becomes relevant.
type Trigger struct {
	PromptPatterns     []string `json:"prompt_patterns"`
	FilePatterns       []string `json:"file_patterns"`
	FileCountThreshold int      `json:"file_count_threshold"`

	// Compiled at load time; bad patterns are skipped.
	PromptRegexps []*regexp.Regexp `json:"-"`
}

// Rule is one enforcement rule.
type Rule struct {
	Enabled            *bool      `json:"enabled"` // nil means enabled
	Trigger            Trigger    `json:"trigger"`
	RequiredAgents     []string   `json:"required_agents"`
	RequiredCategories []string   `json:"required_categories"`
	Strictness         Strictness `json:"strictness"`
	Message            string     `json:"message"`
}

// IsEnabled reports whether the rule participates in enforcement.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Exemptions configure when enforcement is skipped entirely.
type Exemptions struct {
	MaxFiles       *int     `json:"max_files"` // nil means default (1)
	PromptPatterns []string `json:"prompt_patterns"`
}

// MaxFilesOrDefault returns the exemption threshold, defaulting to 1 so
// zero/single-file sessions are never enforced.
func (e Exemptions) MaxFilesOrDefault() int {
	if e.MaxFiles != nil {
		return *e.MaxFiles
	}
	return 1
}

// RuleSet is the full enforcement configuration.
type RuleSet struct {
	Enabled    *bool            `json:"enabled"` // nil means enabled
	Rules      map[string]*Rule `json:"rules"`
	Exemptions Exemptions       `json:"exemptions"`

	// Document key order, for deterministic evaluation.
	RuleOrder []string `json:"-"`
}

// IsEnabled reports whether enforcement is globally enabled.
func (rs *RuleSet) IsEnabled() bool {
	return rs.Enabled == nil || *rs.Enabled
}

// Empty returns a rule set with no rules.
func Empty() *RuleSet {
	return &RuleSet{Rules: map[string]*Rule{}}
}

// Load reads enforcement-rules.json from <workspace>/.agentgate/config/.
// Absence or corruption degrades to an empty rule set, never an error.
func Load(workspace string) *RuleSet {
	path := filepath.Join(workspace, ".agentgate", "config", "enforcement-rules.json")
	data, err := os.ReadFile(path)
	if err != nil {
		logging.RulesDebug("No rule set at %s: %v", path, err)
		return Empty()
	}
	return Parse(data)
}

// Parse decodes and validates a rule set document.
func Parse(data []byte) *RuleSet {
	rs := Empty()
	if err := json.Unmarshal(data, rs); err != nil {
		logging.Get(logging.CategoryRules).Error("Malformed rule set document: %v", err)
		return Empty()
	}
	if rs.Rules == nil {
		rs.Rules = map[string]*Rule{}
	}
	rs.RuleOrder = ruleKeyOrder(data)

	for _, name := range rs.RuleOrder {
		rule := rs.Rules[name]
		if rule == nil {
			continue
		}

		// A rule with no required agents and no required categories can
		// never be satisfied. That is a configuration error, not a silent
		// pass: disable the rule loudly.
		if len(rule.RequiredAgents) == 0 && len(rule.RequiredCategories) == 0 {
			logging.Get(logging.CategoryRules).Error(
				"Rule %q has no required agents or categories; disabling (unsatisfiable)", name)
			disabled := false
			rule.Enabled = &disabled
			continue
		}

		if rule.Strictness != StrictnessBlock && rule.Strictness != StrictnessWarn {
			if rule.Strictness != "" {
				logging.Get(logging.CategoryRules).Warn(
					"Rule %q has unknown strictness %q, treating as warn", name, rule.Strictness)
			}
			rule.Strictness = StrictnessWarn
		}

		rule.Trigger.PromptRegexps = compilePromptPatterns(name, rule.Trigger.PromptPatterns)
	}

	logging.RulesDebug("Rule set loaded: %d rules (enabled=%v)", len(rs.Rules), rs.IsEnabled())
	return rs
}

func compilePromptPatterns(rule string, patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			logging.Get(logging.CategoryRules).Warn("Skipping bad prompt pattern for rule %s: %q (%v)", rule, p, err)
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// RuleNames returns rule names in document order, appending any stragglers
// the order scan missed.
func (rs *RuleSet) RuleNames() []string {
	names := make([]string, 0, len(rs.Rules))
	seen := make(map[string]bool, len(rs.Rules))
	for _, name := range rs.RuleOrder {
		if _, ok := rs.Rules[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	for name := range rs.Rules {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names
}

// Rule returns the named rule, or nil.
func (rs *RuleSet) Rule(name string) *Rule {
	return rs.Rules[name]
}

// ruleKeyOrder extracts the "rules" object key order from the raw document.
func ruleKeyOrder(data []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, _ := keyTok.(string)
		if key != "rules" {
			if err := skipValue(dec); err != nil {
				return nil
			}
			continue
		}

		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil
		}

		var keys []string
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return keys
			}
			k, ok := keyTok.(string)
			if !ok {
				return keys
			}
			keys = append(keys, k)
			if err := skipValue(dec); err != nil {
				return keys
			}
		}
		return keys
	}
	return nil
}

// skipValue consumes exactly one JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	switch d {
	case '{', '[':
		depth := 1
		for depth > 0 {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if dd, ok := tok.(json.Delim); ok {
				switch dd {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}
	return nil
}
