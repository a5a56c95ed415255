// Package hook wires the decision engine into the host's two JSON
// exchanges: the scoring call on every prompt and the enforcement call at
// session completion, plus the invocation-recording call in between.
//
// Every entry point degrades rather than fails: a broken registry, rule
// set, or tracker must never abort the caller's workflow.
package hook

import (
	"time"

	"agentgate/internal/classify"
	"agentgate/internal/config"
	"agentgate/internal/enforce"
	"agentgate/internal/logging"
	"agentgate/internal/registry"
	"agentgate/internal/rules"
	"agentgate/internal/scoring"
	"agentgate/internal/session"
)

// Engine holds the per-invocation collaborators. Configuration documents
// are loaded fresh on construction; hook processes are short-lived, so
// there is no caching or reload concern.
type Engine struct {
	Workspace string
	Config    *config.Config
	Registry  *registry.Registry
	Rules     *rules.RuleSet
	Store     session.Store

	now func() time.Time
}

// NewEngine loads all static configuration for one invocation. A nil
// store defaults to the file store under the workspace.
func NewEngine(workspace string, store session.Store) *Engine {
	if store == nil {
		store = session.NewFileStore(workspace)
	}
	e := &Engine{
		Workspace: workspace,
		Config:    config.Load(workspace),
		Registry:  registry.Load(workspace),
		Rules:     rules.Load(workspace),
		Store:     store,
		now:       time.Now,
	}

	// The rule set may omit its exemptions section; the invoke config
	// carries the workspace-wide defaults for it.
	if e.Rules.Exemptions.MaxFiles == nil {
		maxFiles := e.Config.Exemptions.MaxFiles
		e.Rules.Exemptions.MaxFiles = &maxFiles
	}
	if len(e.Rules.Exemptions.PromptPatterns) == 0 {
		e.Rules.Exemptions.PromptPatterns = e.Config.Exemptions.PromptPatterns
	}
	return e
}

// Score runs the scoring call for one prompt: command-mapping override
// first, then the 3-layer scorer, recording the outcome into the session
// tracker before classification is returned.
func (e *Engine) Score(sessionID, prompt string) classify.Decision {
	timer := logging.StartTimer(logging.CategoryHook, "Engine.Score")
	defer timer.Stop()

	if prompt == "" || len(e.Registry.Agents) == 0 {
		logging.HookDebug("Nothing to score (prompt empty or no agents)")
		return classify.Decision{Action: classify.ActionNone}
	}

	// Command mappings bypass scoring entirely; they are an explicit
	// escape hatch, checked before the layers ever run.
	if agents, ok := classify.CheckCommandMapping(prompt, e.Registry); ok {
		logging.Hook("Command mapping hit -> %s", agents[0])
		return classify.CommandDecision(agents)
	}

	scorer := scoring.NewScorer(e.Registry, e.Config)
	ranked := scorer.Score(prompt)
	matchedCategories := scorer.ClassifyCategories(prompt)

	e.recordScoring(sessionID, prompt, matchedCategories, ranked)

	return classify.Classify(ranked, e.Registry, e.Config)
}

// recordScoring persists the scoring outcome. Tracker failures are logged
// and swallowed: losing a snapshot is preferable to failing the prompt.
func (e *Engine) recordScoring(sessionID, prompt string, matchedCategories []string, ranked []scoring.Result) {
	tracker, err := e.Store.Load(sessionID)
	if err != nil {
		logging.Get(logging.CategoryHook).Warn("Tracker load failed: %v", err)
		return
	}

	suggestions := make([]session.Suggestion, 0, len(ranked))
	for _, r := range ranked {
		suggestions = append(suggestions, session.Suggestion{
			Agent: r.Agent,
			Score: r.Breakdown.FinalScore,
		})
	}

	tracker.RecordScoring(prompt, matchedCategories, suggestions, e.Rules, e.now())

	if err := e.Store.Save(sessionID, tracker); err != nil {
		logging.Get(logging.CategoryHook).Warn("Tracker save failed: %v", err)
	}
}

// RecordInvocation appends an actual agent invocation to the tracker and
// reconciles any pending requirement it satisfies. Touched files may be
// recorded alongside.
func (e *Engine) RecordInvocation(sessionID, agent, mode, prompt string, filesTouched []string) {
	timer := logging.StartTimer(logging.CategoryHook, "Engine.RecordInvocation")
	defer timer.Stop()

	tracker, err := e.Store.Load(sessionID)
	if err != nil {
		logging.Get(logging.CategoryHook).Warn("Tracker load failed: %v", err)
		return
	}

	if agent != "" {
		tracker.RecordInvocation(agent, mode, prompt, e.now())
	}
	for _, f := range filesTouched {
		tracker.RecordFileTouched(f, e.now())
	}

	if err := e.Store.Save(sessionID, tracker); err != nil {
		logging.Get(logging.CategoryHook).Warn("Tracker save failed: %v", err)
	}
}

// Enforce runs the session-completion enforcement check. When the caller
// supplies no file list, the tracker's own touched-file record is used.
// The tracker is read, never mutated.
func (e *Engine) Enforce(sessionID string, filesTouched []string) enforce.Outcome {
	timer := logging.StartTimer(logging.CategoryHook, "Engine.Enforce")
	defer timer.Stop()

	tracker, err := e.Store.Load(sessionID)
	if err != nil {
		logging.Get(logging.CategoryHook).Warn("Tracker load failed: %v (no violations)", err)
		return enforce.Outcome{Violations: []enforce.Violation{}}
	}

	if filesTouched == nil {
		filesTouched = tracker.FilesTouched
	}

	return enforce.Evaluate(e.Rules, e.Registry, tracker, filesTouched)
}
