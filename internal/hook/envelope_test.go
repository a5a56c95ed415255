package hook

import (
	"strings"
	"testing"

	"agentgate/internal/classify"
	"agentgate/internal/enforce"
	"agentgate/internal/rules"
)

func TestPromptEnvelopeAuto(t *testing.T) {
	env := PromptEnvelope(classify.Decision{
		Action: classify.ActionAuto,
		Agent:  "security-scanner",
		Score:  92.5,
	}, "")

	if env.HookSpecificOutput == nil {
		t.Fatal("no hook output")
	}
	ctx := env.HookSpecificOutput.AdditionalContext
	if !strings.HasPrefix(ctx, "AGENT INVOKE:") {
		t.Errorf("context = %q", ctx)
	}
	if !strings.Contains(ctx, "'security-scanner'") || !strings.Contains(ctx, "92.5%") {
		t.Errorf("context = %q", ctx)
	}
	if env.HookSpecificOutput.HookEventName != "UserPromptSubmit" {
		t.Errorf("event = %q", env.HookSpecificOutput.HookEventName)
	}
}

func TestPromptEnvelopeCommandMapped(t *testing.T) {
	env := PromptEnvelope(classify.Decision{
		Action:        classify.ActionAuto,
		Agent:         "security-scanner",
		Score:         100,
		CommandMapped: true,
	}, "")

	ctx := env.HookSpecificOutput.AdditionalContext
	if !strings.Contains(ctx, "command mapping") {
		t.Errorf("context = %q, want command mapping attribution", ctx)
	}
}

func TestPromptEnvelopeAsk(t *testing.T) {
	env := PromptEnvelope(classify.Decision{
		Action: classify.ActionAsk,
		Agent:  "test-writer",
		Score:  72,
	}, "Writes unit tests")

	out := env.HookSpecificOutput
	if out.PermissionDecision != "ask" {
		t.Errorf("permission decision = %q", out.PermissionDecision)
	}
	if !strings.Contains(out.PermissionDecisionReason, "72%") ||
		!strings.Contains(out.PermissionDecisionReason, "Writes unit tests") {
		t.Errorf("reason = %q", out.PermissionDecisionReason)
	}
}

func TestPromptEnvelopeDisambiguation(t *testing.T) {
	env := PromptEnvelope(classify.Decision{
		Action: classify.ActionAsk,
		Agent:  "security-scanner",
		Score:  70,
		Disambiguation: []classify.Option{
			{Agent: "security-scanner", Score: 70},
			{Agent: "test-writer", Score: 62},
		},
	}, "")

	ctx := env.HookSpecificOutput.AdditionalContext
	if !strings.HasPrefix(ctx, "AGENT CHOICE:") {
		t.Errorf("context = %q", ctx)
	}
	if !strings.Contains(ctx, "[1] security-scanner (70%)") || !strings.Contains(ctx, "[2] test-writer (62%)") {
		t.Errorf("context = %q", ctx)
	}
}

func TestPromptEnvelopeSuggestAndNone(t *testing.T) {
	env := PromptEnvelope(classify.Decision{
		Action: classify.ActionSuggest,
		Agent:  "doc-writer",
		Score:  30,
	}, "")
	if !strings.HasPrefix(env.HookSpecificOutput.AdditionalContext, "AGENT TIP:") {
		t.Errorf("context = %q", env.HookSpecificOutput.AdditionalContext)
	}

	env = PromptEnvelope(classify.Decision{Action: classify.ActionNone}, "")
	if env.HookSpecificOutput != nil || env.Decision != "" {
		t.Errorf("none decision produced %+v, want empty envelope", env)
	}
}

func TestStopEnvelopeBlocks(t *testing.T) {
	env := StopEnvelope(enforce.Outcome{
		Blocked: true,
		Violations: []enforce.Violation{
			{Rule: "r1", RequiredAgent: "security-scanner", Strictness: rules.StrictnessBlock},
			{Rule: "r2", RequiredAgent: "security-scanner", Strictness: rules.StrictnessBlock},
			{Rule: "r3", RequiredAgent: "test-writer", Strictness: rules.StrictnessWarn},
		},
	})

	if env.Decision != "block" {
		t.Fatalf("decision = %q, want block", env.Decision)
	}
	if !strings.Contains(env.Reason, "2 required agent(s)") {
		t.Errorf("reason = %q, want blocking count only", env.Reason)
	}
	// Duplicate agents collapse in the invoke list; warn-only agents are
	// excluded from it.
	if strings.Count(env.Reason, "security-scanner") != 1 {
		t.Errorf("reason = %q", env.Reason)
	}
	if strings.Contains(env.Reason, "test-writer") {
		t.Errorf("reason = %q, warn agent should not appear", env.Reason)
	}
}

func TestStopEnvelopeWarns(t *testing.T) {
	env := StopEnvelope(enforce.Outcome{
		Violations: []enforce.Violation{
			{Rule: "r", RequiredAgent: "test-writer", Strictness: rules.StrictnessWarn},
		},
	})

	if env.Decision != "" {
		t.Errorf("warn outcome set decision %q", env.Decision)
	}
	ctx := env.HookSpecificOutput.AdditionalContext
	if !strings.HasPrefix(ctx, "AGENT WARNINGS:") || !strings.Contains(ctx, "test-writer") {
		t.Errorf("context = %q", ctx)
	}
	if env.HookSpecificOutput.HookEventName != "Stop" {
		t.Errorf("event = %q", env.HookSpecificOutput.HookEventName)
	}
}

func TestStopEnvelopeClean(t *testing.T) {
	env := StopEnvelope(enforce.Outcome{})
	if env.HookSpecificOutput != nil || env.Decision != "" {
		t.Errorf("clean outcome produced %+v", env)
	}
}
