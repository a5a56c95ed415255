// Package session persists per-session decision and enforcement state.
//
// The tracker is the only long-lived mutable document in the engine. Every
// scoring pass writes its outcome here, every agent invocation is appended
// here, and the enforcement evaluator reads the final state at session
// completion. Independent process invocations share the document through a
// Store; the default file store accepts last-writer-wins across processes.
package session

import (
	"time"

	"agentgate/internal/logging"
	"agentgate/internal/rules"
)

// promptSnippetLimit caps how much of the prompt is retained in snapshots.
const promptSnippetLimit = 200

// maxSuggestions caps the suggested-agents snapshot.
const maxSuggestions = 5

// Suggestion is one (agent, score) pair from a scoring pass.
type Suggestion struct {
	Agent string  `json:"agent"`
	Score float64 `json:"score"`
}

// PromptAnalysis is the snapshot of the most recent scoring pass. Only the
// last prompt is retained; history is not kept.
type PromptAnalysis struct {
	Timestamp         time.Time  `json:"timestamp"`
	PromptSnippet     string     `json:"prompt_snippet"`
	MatchedCategories []string   `json:"matched_categories"`
	TopSuggestion     Suggestion `json:"top_suggestion"`
}

// DetectedContext aggregates what prompt analysis has learned this session.
type DetectedContext struct {
	PromptAnalysis  *PromptAnalysis `json:"prompt_analysis"`
	SuggestedAgents []Suggestion    `json:"suggested_agents"`
}

// Invocation records one actual agent invocation.
type Invocation struct {
	Agent         string    `json:"agent"`
	Mode          string    `json:"mode,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	PromptSnippet string    `json:"prompt_snippet,omitempty"`
}

// PendingRequirement is an enforcement obligation not yet satisfied.
type PendingRequirement struct {
	Agent      string           `json:"agent"`
	Rule       string           `json:"rule"`
	Strictness rules.Strictness `json:"strictness"`
	Message    string           `json:"message"`
}

// EnforcementState accumulates rule-trigger bookkeeping.
//
// Invariant: AgentsSatisfied is always a subset of AgentsRequired, and
// every entry removed from PendingRequirements corresponds to an agent
// moved into AgentsSatisfied.
type EnforcementState struct {
	RulesTriggered      []string             `json:"rules_triggered"`
	AgentsRequired      []string             `json:"agents_required"`
	AgentsSatisfied     []string             `json:"agents_satisfied"`
	PendingRequirements []PendingRequirement `json:"pending_requirements"`
}

// Tracker is the per-session document.
type Tracker struct {
	SessionID       string           `json:"session_id,omitempty"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	LastUpdated     *time.Time       `json:"last_updated,omitempty"`
	DetectedContext DetectedContext  `json:"detected_context"`
	InvokedAgents   []Invocation     `json:"invoked_agents"`
	Enforcement     EnforcementState `json:"enforcement"`

	// FilesTouched is maintained by the record hook so enforcement can
	// run without an externally supplied file list. An explicit list
	// passed to the enforcement call still takes precedence.
	FilesTouched []string `json:"files_touched,omitempty"`
}

// NewTracker returns a default-initialized tracker.
func NewTracker(sessionID string) *Tracker {
	return &Tracker{
		SessionID:     sessionID,
		InvokedAgents: []Invocation{},
		Enforcement: EnforcementState{
			RulesTriggered:      []string{},
			AgentsRequired:      []string{},
			AgentsSatisfied:     []string{},
			PendingRequirements: []PendingRequirement{},
		},
	}
}

// touch stamps the update time, setting the start time on first write.
func (t *Tracker) touch(now time.Time) {
	if t.StartedAt == nil {
		started := now
		t.StartedAt = &started
	}
	updated := now
	t.LastUpdated = &updated
}

// RecordScoring overwrites the last-prompt analysis snapshot and evaluates
// the rule set's prompt-pattern triggers against the prompt. Newly
// triggered rules have their required agents merged into the enforcement
// state and appended as pending requirements.
//
// suggestions must be ranked descending; the first entry is the top
// suggestion and only positive-score entries are retained (capped at 5).
func (t *Tracker) RecordScoring(prompt string, matchedCategories []string, suggestions []Suggestion, ruleSet *rules.RuleSet, now time.Time) {
	t.touch(now)

	var top Suggestion
	if len(suggestions) > 0 {
		top = suggestions[0]
	}

	t.DetectedContext.PromptAnalysis = &PromptAnalysis{
		Timestamp:         now,
		PromptSnippet:     snippet(prompt),
		MatchedCategories: matchedCategories,
		TopSuggestion:     top,
	}

	kept := make([]Suggestion, 0, maxSuggestions)
	for _, s := range suggestions {
		if s.Score > 0 {
			kept = append(kept, s)
		}
		if len(kept) >= maxSuggestions {
			break
		}
	}
	t.DetectedContext.SuggestedAgents = kept

	t.applyPromptTriggers(prompt, ruleSet)

	logging.SessionDebug("Recorded scoring: top=%s (%.1f), %d suggestions, %d pending requirements",
		top.Agent, top.Score, len(kept), len(t.Enforcement.PendingRequirements))
}

// applyPromptTriggers pre-populates enforcement requirements from rules
// whose prompt patterns match the current prompt.
func (t *Tracker) applyPromptTriggers(prompt string, ruleSet *rules.RuleSet) {
	if ruleSet == nil || !ruleSet.IsEnabled() {
		return
	}

	for _, name := range ruleSet.RuleNames() {
		rule := ruleSet.Rule(name)
		if rule == nil || !rule.IsEnabled() {
			continue
		}

		triggered := false
		for _, re := range rule.Trigger.PromptRegexps {
			if re.MatchString(prompt) {
				triggered = true
				break
			}
		}
		if !triggered {
			continue
		}

		if !contains(t.Enforcement.RulesTriggered, name) {
			t.Enforcement.RulesTriggered = append(t.Enforcement.RulesTriggered, name)
		}

		for _, agent := range rule.RequiredAgents {
			if !contains(t.Enforcement.AgentsRequired, agent) {
				t.Enforcement.AgentsRequired = append(t.Enforcement.AgentsRequired, agent)
			}
			if !t.hasPending(agent, name) {
				t.Enforcement.PendingRequirements = append(t.Enforcement.PendingRequirements, PendingRequirement{
					Agent:      agent,
					Rule:       name,
					Strictness: rule.Strictness,
					Message:    rule.Message,
				})
			}
		}
	}
}

// RecordInvocation appends the invocation unconditionally, then reconciles
// enforcement state: a required, not-yet-satisfied agent moves into
// AgentsSatisfied and every pending requirement naming it is dropped,
// regardless of which rule added it. Append-then-reconcile is deliberately
// non-transactional; a crash in between leaves the requirement pending
// until the same agent is invoked again.
func (t *Tracker) RecordInvocation(agent, mode, prompt string, now time.Time) {
	t.touch(now)

	t.InvokedAgents = append(t.InvokedAgents, Invocation{
		Agent:         agent,
		Mode:          mode,
		Timestamp:     now,
		PromptSnippet: snippet(prompt),
	})

	if contains(t.Enforcement.AgentsRequired, agent) && !contains(t.Enforcement.AgentsSatisfied, agent) {
		t.Enforcement.AgentsSatisfied = append(t.Enforcement.AgentsSatisfied, agent)

		remaining := t.Enforcement.PendingRequirements[:0]
		for _, p := range t.Enforcement.PendingRequirements {
			if p.Agent != agent {
				remaining = append(remaining, p)
			}
		}
		t.Enforcement.PendingRequirements = remaining
	}

	logging.SessionDebug("Recorded invocation: %s (mode=%s), %d total, %d pending",
		agent, mode, len(t.InvokedAgents), len(t.Enforcement.PendingRequirements))
}

// RecordFileTouched appends a touched file path if not already recorded.
func (t *Tracker) RecordFileTouched(path string, now time.Time) {
	if path == "" || contains(t.FilesTouched, path) {
		return
	}
	t.touch(now)
	t.FilesTouched = append(t.FilesTouched, path)
}

// InvokedAgentNames returns the distinct invoked agent names in first-seen
// order.
func (t *Tracker) InvokedAgentNames() []string {
	names := make([]string, 0, len(t.InvokedAgents))
	seen := make(map[string]bool, len(t.InvokedAgents))
	for _, inv := range t.InvokedAgents {
		if inv.Agent == "" || seen[inv.Agent] {
			continue
		}
		names = append(names, inv.Agent)
		seen[inv.Agent] = true
	}
	return names
}

func (t *Tracker) hasPending(agent, rule string) bool {
	for _, p := range t.Enforcement.PendingRequirements {
		if p.Agent == agent && p.Rule == rule {
			return true
		}
	}
	return false
}

func snippet(prompt string) string {
	if len(prompt) > promptSnippetLimit {
		return prompt[:promptSnippetLimit] + "..."
	}
	return prompt
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
