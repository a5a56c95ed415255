// Package enforce evaluates enforcement rules against final session state.
//
// The evaluator is a pure function over (rule set, tracker snapshot, files
// touched): it never mutates the tracker. Requirements recorded at prompt
// time are re-derived from the full rule set rather than trusted from the
// possibly-partial snapshot, and rules can late-trigger purely from the
// files edited even when no prompt pattern ever matched.
package enforce

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"agentgate/internal/logging"
	"agentgate/internal/registry"
	"agentgate/internal/rules"
	"agentgate/internal/session"
)

// Violation is one unsatisfied enforcement requirement.
type Violation struct {
	Rule          string           `json:"rule"`
	RequiredAgent string           `json:"requiredAgent"`
	Strictness    rules.Strictness `json:"strictness"`
	Message       string           `json:"message"`
}

// Outcome is the enforcement decision for a session.
type Outcome struct {
	Exempt       bool        `json:"exempt,omitempty"`
	ExemptReason string      `json:"exemptReason,omitempty"`
	Blocked      bool        `json:"blocked"`
	Violations   []Violation `json:"violations"`
}

// Evaluate runs all enforcement checks. It returns an empty, non-blocking
// outcome when enforcement is disabled or the session is exempt.
func Evaluate(ruleSet *rules.RuleSet, reg *registry.Registry, tracker *session.Tracker, filesTouched []string) Outcome {
	timer := logging.StartTimer(logging.CategoryEnforce, "Evaluate")
	defer timer.Stop()

	out := Outcome{Violations: []Violation{}}

	if ruleSet == nil || !ruleSet.IsEnabled() {
		logging.EnforceDebug("Enforcement disabled")
		return out
	}

	if exempt, reason := checkExemptions(ruleSet, tracker, filesTouched); exempt {
		logging.EnforceDebug("Session exempt: %s", reason)
		out.Exempt = true
		out.ExemptReason = reason
		return out
	}

	invokedAgents := tracker.InvokedAgentNames()
	invokedCategories := categoriesOf(invokedAgents, reg)

	seenRules := make(map[string]bool)

	// Requirements pre-recorded by prompt analysis. The full requirement
	// set is re-derived from the rule set; the snapshot only tells us
	// which rules fired.
	for _, req := range tracker.Enforcement.PendingRequirements {
		rule := ruleSet.Rule(req.Rule)

		requiredAgents := []string{}
		requiredCategories := []string{}
		strictness := req.Strictness
		message := req.Message
		if rule != nil {
			requiredAgents = rule.RequiredAgents
			requiredCategories = rule.RequiredCategories
			if rule.Strictness != "" {
				strictness = rule.Strictness
			}
			if rule.Message != "" {
				message = rule.Message
			}
		} else if req.Agent != "" {
			requiredAgents = []string{req.Agent}
		}

		if satisfied(requiredAgents, requiredCategories, invokedAgents, invokedCategories) {
			continue
		}

		required := req.Agent
		if required == "" {
			required = describeRequirement(requiredAgents, requiredCategories)
		}
		if message == "" {
			message = fmt.Sprintf("Required agent %s was not invoked", required)
		}
		out.Violations = append(out.Violations, Violation{
			Rule:          req.Rule,
			RequiredAgent: required,
			Strictness:    strictness,
			Message:       message,
		})
		seenRules[req.Rule] = true
	}

	// Rules that trigger purely from files touched, deduplicated by rule
	// name against the prompt-triggered violations above.
	for _, name := range ruleSet.RuleNames() {
		rule := ruleSet.Rule(name)
		if rule == nil || !rule.IsEnabled() || seenRules[name] {
			continue
		}

		if !fileTriggered(rule, filesTouched) {
			continue
		}
		if satisfied(rule.RequiredAgents, rule.RequiredCategories, invokedAgents, invokedCategories) {
			continue
		}

		message := rule.Message
		if message == "" {
			message = fmt.Sprintf("Rule %q requires %s", name,
				describeRequirement(rule.RequiredAgents, rule.RequiredCategories))
		}
		out.Violations = append(out.Violations, Violation{
			Rule:          name,
			RequiredAgent: describeRequirement(rule.RequiredAgents, rule.RequiredCategories),
			Strictness:    rule.Strictness,
			Message:       message,
		})
		seenRules[name] = true
	}

	for _, v := range out.Violations {
		if v.Strictness == rules.StrictnessBlock {
			out.Blocked = true
			break
		}
	}

	logging.Enforce("Evaluated %d rules: %d violations (blocked=%v)",
		len(ruleSet.Rules), len(out.Violations), out.Blocked)
	return out
}

// checkExemptions short-circuits enforcement for trivial or informational
// sessions. Trivial means at most maxFiles files touched; informational
// means the recorded prompt matched an exemption pattern.
func checkExemptions(ruleSet *rules.RuleSet, tracker *session.Tracker, filesTouched []string) (bool, string) {
	maxFiles := ruleSet.Exemptions.MaxFilesOrDefault()
	if len(filesTouched) <= maxFiles {
		return true, fmt.Sprintf("only %d file(s) modified (threshold: %d)", len(filesTouched), maxFiles)
	}

	prompt := ""
	if tracker != nil && tracker.DetectedContext.PromptAnalysis != nil {
		prompt = tracker.DetectedContext.PromptAnalysis.PromptSnippet
	}
	if prompt == "" {
		return false, ""
	}

	for _, p := range ruleSet.Exemptions.PromptPatterns {
		// Anchored at the start: exemption patterns describe how the
		// prompt begins, not substrings anywhere inside it.
		re, err := regexp.Compile("(?i)^(?:" + p + ")")
		if err != nil {
			logging.Get(logging.CategoryEnforce).Warn("Skipping bad exemption pattern %q: %v", p, err)
			continue
		}
		if re.MatchString(prompt) {
			return true, "informational query detected"
		}
	}

	return false, ""
}

// satisfied reports whether a requirement is met: any required agent was
// invoked, or any invoked agent carries a required category.
func satisfied(requiredAgents, requiredCategories, invokedAgents []string, invokedCategories map[string]bool) bool {
	for _, agent := range requiredAgents {
		for _, invoked := range invokedAgents {
			if agent == invoked {
				return true
			}
		}
	}
	for _, cat := range requiredCategories {
		if invokedCategories[cat] {
			return true
		}
	}
	return false
}

// fileTriggered reports whether the rule's file-based triggers fire for
// the touched file list.
func fileTriggered(rule *rules.Rule, filesTouched []string) bool {
	if len(filesTouched) == 0 {
		return false
	}

	if len(rule.Trigger.FilePatterns) > 0 && matchAnyFile(filesTouched, rule.Trigger.FilePatterns) {
		return true
	}

	threshold := rule.Trigger.FileCountThreshold
	if threshold > 0 && len(filesTouched) >= threshold {
		return true
	}

	return false
}

// matchAnyFile tests every (file, pattern) pair with doublestar globs.
// Paths are slash-normalized. Slash-free patterns like "*.py" are also
// tested against the basename so they match nested files.
func matchAnyFile(files, patterns []string) bool {
	for _, file := range files {
		normalized := strings.ReplaceAll(file, "\\", "/")
		base := path.Base(normalized)
		for _, pattern := range patterns {
			if ok, err := doublestar.Match(pattern, normalized); err == nil && ok {
				return true
			}
			if strings.Contains(pattern, "/") {
				continue
			}
			if ok, err := doublestar.Match(pattern, base); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// categoriesOf collects every category declared by the invoked agents.
func categoriesOf(invokedAgents []string, reg *registry.Registry) map[string]bool {
	cats := make(map[string]bool)
	if reg == nil {
		return cats
	}
	for _, agent := range invokedAgents {
		for _, c := range reg.AgentCategories(agent) {
			cats[c] = true
		}
	}
	return cats
}

// describeRequirement names what a rule needs, for violation messages.
func describeRequirement(requiredAgents, requiredCategories []string) string {
	if len(requiredAgents) > 0 {
		return requiredAgents[0]
	}
	if len(requiredCategories) > 0 {
		return "[" + requiredCategories[0] + "]"
	}
	return "agent in category"
}
