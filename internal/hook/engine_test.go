package hook

import (
	"os"
	"path/filepath"
	"testing"

	"agentgate/internal/classify"
	"agentgate/internal/session"
)

// newWorkspace lays out a minimal .agentgate tree: registry, rules, and
// invoke config, the way a real deployment carries them.
func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	write(".agentgate/agents/agent-registry.json", `{
		"agents": {
			"security-scanner": {
				"description": "Scans code for vulnerabilities",
				"categories": ["security"],
				"triggers": {
					"exact_keywords": ["vulnerability", "security", "exploit"],
					"phrase_patterns": ["scan\\s+.*\\s+for"]
				}
			},
			"test-writer": {
				"description": "Writes unit tests",
				"categories": ["testing"],
				"triggers": {"exact_keywords": ["test", "coverage"]}
			}
		},
		"command_mappings": {
			"/scan": ["security-scanner"]
		}
	}`)

	write(".agentgate/config/enforcement-rules.json", `{
		"rules": {
			"security-on-auth": {
				"trigger": {"prompt_patterns": ["auth", "login"], "file_patterns": ["**/auth/**"]},
				"required_agents": ["security-scanner"],
				"strictness": "block",
				"message": "Auth changes require a security review"
			}
		}
	}`)

	write(".agentgate/config/invoke-config.json", `{
		"categories": {
			"security": {"keywords": ["security", "vulnerability", "auth"]},
			"testing": {"keywords": ["test", "coverage"]}
		},
		"visibility": {"show_banners": false, "show_confidence_breakdown": false}
	}`)

	return dir
}

func TestEngineScoreRecordsTracker(t *testing.T) {
	ws := newWorkspace(t)
	engine := NewEngine(ws, nil)

	d := engine.Score("", "scan the auth module for security vulnerability issues")
	if d.Action == classify.ActionNone {
		t.Fatalf("decision = %+v, want a positive action", d)
	}
	if d.Agent != "security-scanner" {
		t.Errorf("agent = %s, want security-scanner", d.Agent)
	}

	tracker, err := engine.Store.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if tracker.DetectedContext.PromptAnalysis == nil {
		t.Fatal("scoring pass not recorded in tracker")
	}
	if got := tracker.DetectedContext.PromptAnalysis.TopSuggestion.Agent; got != "security-scanner" {
		t.Errorf("recorded top suggestion = %s", got)
	}
	// "auth" in the prompt fires the enforcement rule at prompt time.
	if len(tracker.Enforcement.PendingRequirements) != 1 {
		t.Errorf("pending requirements = %+v", tracker.Enforcement.PendingRequirements)
	}
}

func TestEngineCommandMappingSkipsRecording(t *testing.T) {
	ws := newWorkspace(t)
	engine := NewEngine(ws, nil)

	d := engine.Score("", "/scan everything")
	if !d.CommandMapped || d.Action != classify.ActionAuto || d.Score != 100 {
		t.Fatalf("decision = %+v, want command-mapped auto at 100", d)
	}

	tracker, err := engine.Store.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if tracker.DetectedContext.PromptAnalysis != nil {
		t.Error("command-mapped prompt must not be recorded as a scoring pass")
	}
}

func TestEngineEmptyPrompt(t *testing.T) {
	engine := NewEngine(newWorkspace(t), nil)
	if d := engine.Score("", ""); d.Action != classify.ActionNone {
		t.Errorf("empty prompt decision = %+v", d)
	}
}

func TestEngineEmptyWorkspace(t *testing.T) {
	// No .agentgate tree at all: everything degrades, nothing panics.
	engine := NewEngine(t.TempDir(), nil)
	if d := engine.Score("", "scan for security issues"); d.Action != classify.ActionNone {
		t.Errorf("no-registry decision = %+v, want none", d)
	}
	out := engine.Enforce("", nil)
	if out.Blocked || len(out.Violations) != 0 {
		t.Errorf("no-rules enforcement = %+v", out)
	}
}

func TestEngineRecordThenEnforce(t *testing.T) {
	ws := newWorkspace(t)
	engine := NewEngine(ws, nil)

	engine.Score("", "rework the auth login flow")

	files := []string{"src/auth/a.go", "src/auth/b.go", "src/main.go"}
	out := engine.Enforce("", files)
	if !out.Blocked {
		t.Fatalf("outcome = %+v, want blocked", out)
	}

	engine.RecordInvocation("", "security-scanner", "execute", "scan the auth module", nil)

	out = engine.Enforce("", files)
	if out.Blocked || len(out.Violations) != 0 {
		t.Errorf("outcome after invocation = %+v, want clean", out)
	}
}

func TestEngineEnforceUsesTrackedFiles(t *testing.T) {
	ws := newWorkspace(t)
	engine := NewEngine(ws, nil)

	// Files recorded through the record hook, none passed to enforce.
	engine.RecordInvocation("", "", "", "", []string{"src/auth/a.go", "src/auth/b.go", "lib/x.go"})

	out := engine.Enforce("", nil)
	if !out.Blocked {
		t.Errorf("outcome = %+v, want blocked from tracked files", out)
	}
}

func TestEngineMergesConfigExemptions(t *testing.T) {
	// The rule set document carries no exemptions section; the invoke
	// config defaults must flow into the evaluated rule set.
	engine := NewEngine(newWorkspace(t), nil)

	if engine.Rules.Exemptions.MaxFiles == nil {
		t.Fatal("exemption max files not merged from config")
	}
	if got := *engine.Rules.Exemptions.MaxFiles; got != 1 {
		t.Errorf("max files = %d, want 1", got)
	}
	if len(engine.Rules.Exemptions.PromptPatterns) == 0 {
		t.Error("exemption prompt patterns not merged from config")
	}
}

func TestEngineSeparateSessions(t *testing.T) {
	ws := newWorkspace(t)
	engine := NewEngine(ws, nil)

	engine.RecordInvocation("session-a", "security-scanner", "", "", nil)
	engine.RecordInvocation("session-b", "test-writer", "", "", nil)

	a, _ := engine.Store.Load("session-a")
	b, _ := engine.Store.Load("session-b")
	if len(a.InvokedAgents) != 1 || a.InvokedAgents[0].Agent != "security-scanner" {
		t.Errorf("session-a = %+v", a.InvokedAgents)
	}
	if len(b.InvokedAgents) != 1 || b.InvokedAgents[0].Agent != "test-writer" {
		t.Errorf("session-b = %+v", b.InvokedAgents)
	}
}

var _ session.Store = (*session.FileStore)(nil)
