package session

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"agentgate/internal/rules"
)

var testTime = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func testRuleSet(t *testing.T) *rules.RuleSet {
	t.Helper()
	doc := `{
		"rules": {
			"security-on-auth": {
				"trigger": {"prompt_patterns": ["auth", "login", "password"]},
				"required_agents": ["security-scanner"],
				"strictness": "block",
				"message": "Auth changes require a security review"
			},
			"tests-on-deploy": {
				"trigger": {"prompt_patterns": ["deploy"]},
				"required_agents": ["test-writer"],
				"strictness": "warn"
			}
		}
	}`
	return rules.Parse([]byte(doc))
}

func TestRecordScoringSnapshot(t *testing.T) {
	tr := NewTracker("s1")

	suggestions := []Suggestion{
		{Agent: "security-scanner", Score: 72.5},
		{Agent: "test-writer", Score: 40},
		{Agent: "doc-writer", Score: 0},
	}
	tr.RecordScoring("fix the login flow", []string{"security"}, suggestions, testRuleSet(t), testTime)

	pa := tr.DetectedContext.PromptAnalysis
	if pa == nil {
		t.Fatal("prompt analysis not recorded")
	}
	if pa.TopSuggestion.Agent != "security-scanner" {
		t.Errorf("top suggestion = %s", pa.TopSuggestion.Agent)
	}
	if !reflect.DeepEqual(pa.MatchedCategories, []string{"security"}) {
		t.Errorf("matched categories = %v", pa.MatchedCategories)
	}

	// Zero-score suggestions are dropped from the retained list.
	if len(tr.DetectedContext.SuggestedAgents) != 2 {
		t.Errorf("retained %d suggestions, want 2", len(tr.DetectedContext.SuggestedAgents))
	}
}

func TestRecordScoringOverwritesPreviousAnalysis(t *testing.T) {
	tr := NewTracker("s1")
	rs := testRuleSet(t)

	tr.RecordScoring("first prompt", nil, []Suggestion{{Agent: "a", Score: 50}}, rs, testTime)
	tr.RecordScoring("second prompt", nil, []Suggestion{{Agent: "b", Score: 60}}, rs, testTime.Add(time.Minute))

	pa := tr.DetectedContext.PromptAnalysis
	if pa.PromptSnippet != "second prompt" {
		t.Errorf("snapshot = %q, want the most recent prompt only", pa.PromptSnippet)
	}
	if pa.TopSuggestion.Agent != "b" {
		t.Errorf("top suggestion = %s, want b", pa.TopSuggestion.Agent)
	}
}

func TestRecordScoringCapsSuggestionsAtFive(t *testing.T) {
	tr := NewTracker("s1")

	var suggestions []Suggestion
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		suggestions = append(suggestions, Suggestion{Agent: name, Score: 50})
	}
	tr.RecordScoring("prompt", nil, suggestions, nil, testTime)

	if got := len(tr.DetectedContext.SuggestedAgents); got != 5 {
		t.Errorf("retained %d suggestions, want 5", got)
	}
}

func TestSnippetCap(t *testing.T) {
	long := strings.Repeat("x", 500)
	tr := NewTracker("s1")
	tr.RecordScoring(long, nil, nil, nil, testTime)

	got := tr.DetectedContext.PromptAnalysis.PromptSnippet
	if len(got) != promptSnippetLimit+3 {
		t.Errorf("snippet length = %d, want %d", len(got), promptSnippetLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated snippet missing ellipsis")
	}
}

func TestPromptTriggersPopulateEnforcement(t *testing.T) {
	tr := NewTracker("s1")
	tr.RecordScoring("update the login and password handling", nil, nil, testRuleSet(t), testTime)

	if !reflect.DeepEqual(tr.Enforcement.RulesTriggered, []string{"security-on-auth"}) {
		t.Errorf("rules triggered = %v", tr.Enforcement.RulesTriggered)
	}
	if !reflect.DeepEqual(tr.Enforcement.AgentsRequired, []string{"security-scanner"}) {
		t.Errorf("agents required = %v", tr.Enforcement.AgentsRequired)
	}
	if len(tr.Enforcement.PendingRequirements) != 1 {
		t.Fatalf("pending = %d, want 1", len(tr.Enforcement.PendingRequirements))
	}
	p := tr.Enforcement.PendingRequirements[0]
	if p.Agent != "security-scanner" || p.Rule != "security-on-auth" || p.Strictness != rules.StrictnessBlock {
		t.Errorf("pending requirement = %+v", p)
	}
}

func TestPromptTriggersDoNotDuplicate(t *testing.T) {
	tr := NewTracker("s1")
	rs := testRuleSet(t)

	tr.RecordScoring("fix auth", nil, nil, rs, testTime)
	tr.RecordScoring("fix auth again", nil, nil, rs, testTime.Add(time.Minute))

	if len(tr.Enforcement.AgentsRequired) != 1 {
		t.Errorf("agents required duplicated: %v", tr.Enforcement.AgentsRequired)
	}
	if len(tr.Enforcement.PendingRequirements) != 1 {
		t.Errorf("pending requirements duplicated: %v", tr.Enforcement.PendingRequirements)
	}
}

func TestRecordInvocationReconciles(t *testing.T) {
	tr := NewTracker("s1")
	tr.RecordScoring("fix auth before deploy", nil, nil, testRuleSet(t), testTime)

	// Both rules fired: two required agents, two pending entries.
	if len(tr.Enforcement.PendingRequirements) != 2 {
		t.Fatalf("pending = %d, want 2", len(tr.Enforcement.PendingRequirements))
	}

	tr.RecordInvocation("security-scanner", "execute", "scan the auth module", testTime.Add(time.Minute))

	if len(tr.InvokedAgents) != 1 {
		t.Fatalf("invocations = %d, want 1", len(tr.InvokedAgents))
	}
	if !reflect.DeepEqual(tr.Enforcement.AgentsSatisfied, []string{"security-scanner"}) {
		t.Errorf("satisfied = %v", tr.Enforcement.AgentsSatisfied)
	}
	if len(tr.Enforcement.PendingRequirements) != 1 {
		t.Fatalf("pending = %d after reconcile, want 1", len(tr.Enforcement.PendingRequirements))
	}
	if tr.Enforcement.PendingRequirements[0].Agent != "test-writer" {
		t.Errorf("remaining pending = %+v", tr.Enforcement.PendingRequirements[0])
	}
}

func TestRecordInvocationRemovesAllPendingForAgent(t *testing.T) {
	// Two different rules both requiring the same agent: one invocation
	// clears every pending entry naming it.
	doc := `{
		"rules": {
			"rule-one": {"trigger": {"prompt_patterns": ["alpha"]}, "required_agents": ["shared-agent"], "strictness": "block"},
			"rule-two": {"trigger": {"prompt_patterns": ["beta"]}, "required_agents": ["shared-agent"], "strictness": "warn"}
		}
	}`
	rs := rules.Parse([]byte(doc))

	tr := NewTracker("s1")
	tr.RecordScoring("alpha and beta changes", nil, nil, rs, testTime)
	if len(tr.Enforcement.PendingRequirements) != 2 {
		t.Fatalf("pending = %d, want 2", len(tr.Enforcement.PendingRequirements))
	}

	tr.RecordInvocation("shared-agent", "", "", testTime.Add(time.Minute))
	if len(tr.Enforcement.PendingRequirements) != 0 {
		t.Errorf("pending = %v after reconcile, want empty", tr.Enforcement.PendingRequirements)
	}
}

func TestSatisfiedSubsetOfRequired(t *testing.T) {
	tr := NewTracker("s1")
	tr.RecordScoring("fix auth", nil, nil, testRuleSet(t), testTime)

	// An invocation of an agent nobody required must not enter
	// AgentsSatisfied.
	tr.RecordInvocation("doc-writer", "", "", testTime.Add(time.Minute))
	tr.RecordInvocation("security-scanner", "", "", testTime.Add(2*time.Minute))

	required := make(map[string]bool)
	for _, a := range tr.Enforcement.AgentsRequired {
		required[a] = true
	}
	for _, a := range tr.Enforcement.AgentsSatisfied {
		if !required[a] {
			t.Errorf("satisfied agent %q not in required set %v", a, tr.Enforcement.AgentsRequired)
		}
	}
}

func TestInvokedAgentNamesDistinct(t *testing.T) {
	tr := NewTracker("s1")
	tr.RecordInvocation("a", "", "", testTime)
	tr.RecordInvocation("b", "", "", testTime)
	tr.RecordInvocation("a", "", "", testTime)

	if got, want := tr.InvokedAgentNames(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("InvokedAgentNames = %v, want %v", got, want)
	}
}

func TestRecordFileTouchedDedupes(t *testing.T) {
	tr := NewTracker("s1")
	tr.RecordFileTouched("src/auth/login.go", testTime)
	tr.RecordFileTouched("src/auth/login.go", testTime)
	tr.RecordFileTouched("", testTime)
	tr.RecordFileTouched("src/main.go", testTime)

	if got, want := tr.FilesTouched, []string{"src/auth/login.go", "src/main.go"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FilesTouched = %v, want %v", got, want)
	}
}

func TestTouchSetsStartedOnce(t *testing.T) {
	tr := NewTracker("s1")
	tr.RecordInvocation("a", "", "", testTime)
	tr.RecordInvocation("b", "", "", testTime.Add(time.Hour))

	if tr.StartedAt == nil || !tr.StartedAt.Equal(testTime) {
		t.Errorf("StartedAt = %v, want %v", tr.StartedAt, testTime)
	}
	if tr.LastUpdated == nil || !tr.LastUpdated.Equal(testTime.Add(time.Hour)) {
		t.Errorf("LastUpdated = %v", tr.LastUpdated)
	}
}
