package hook

import (
	"fmt"
	"strings"

	"agentgate/internal/classify"
	"agentgate/internal/enforce"
	"agentgate/internal/rules"
)

// HookSpecificOutput is the host's per-event output block.
type HookSpecificOutput struct {
	HookEventName            string `json:"hookEventName,omitempty"`
	AdditionalContext        string `json:"additionalContext,omitempty"`
	PermissionDecision       string `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// Envelope is the host's hook response document. An empty envelope means
// "nothing to say", which the host treats as pass-through.
type Envelope struct {
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
	Decision           string              `json:"decision,omitempty"`
	Reason             string              `json:"reason,omitempty"`
}

const promptEventName = "UserPromptSubmit"

// PromptEnvelope renders a scoring decision as the host's UserPromptSubmit
// hook output.
func PromptEnvelope(d classify.Decision, description string) *Envelope {
	switch {
	case len(d.Disambiguation) >= 2:
		var opts []string
		for i, opt := range d.Disambiguation {
			opts = append(opts, fmt.Sprintf("[%d] %s (%.0f%%)", i+1, opt.Agent, opt.Score))
		}
		return &Envelope{HookSpecificOutput: &HookSpecificOutput{
			HookEventName: promptEventName,
			AdditionalContext: fmt.Sprintf(
				"AGENT CHOICE: Multiple agents match this request. Options: %s. Ask the user which agent they prefer, or use your judgment if the context makes one clearly better.",
				strings.Join(opts, ", ")),
		}}

	case d.Action == classify.ActionAuto && d.CommandMapped:
		return &Envelope{HookSpecificOutput: &HookSpecificOutput{
			HookEventName: promptEventName,
			AdditionalContext: fmt.Sprintf(
				"AGENT INVOKE: Use the Task tool to invoke the '%s' agent. This was triggered by command mapping.", d.Agent),
		}}

	case d.Action == classify.ActionAuto:
		return &Envelope{HookSpecificOutput: &HookSpecificOutput{
			HookEventName: promptEventName,
			AdditionalContext: fmt.Sprintf(
				"AGENT INVOKE: Use the Task tool to invoke the '%s' agent with confidence %.1f%%. This was auto-selected based on keyword, category, and intent analysis.",
				d.Agent, d.Score),
		}}

	case d.Action == classify.ActionAsk:
		reason := description
		if reason == "" {
			reason = "Matched based on prompt analysis"
		}
		return &Envelope{HookSpecificOutput: &HookSpecificOutput{
			HookEventName:      promptEventName,
			PermissionDecision: "ask",
			PermissionDecisionReason: fmt.Sprintf(
				"Agent '%s' suggested with %.0f%% confidence. %s", d.Agent, d.Score, reason),
		}}

	case d.Action == classify.ActionSuggest:
		return &Envelope{HookSpecificOutput: &HookSpecificOutput{
			HookEventName: promptEventName,
			AdditionalContext: fmt.Sprintf(
				"AGENT TIP: The '%s' agent might be helpful (%.0f%% confidence). Consider using it if relevant.",
				d.Agent, d.Score),
		}}

	default:
		return &Envelope{}
	}
}

// StopEnvelope renders an enforcement outcome as the host's Stop hook
// output: a block decision, a warning context, or nothing.
func StopEnvelope(out enforce.Outcome) *Envelope {
	if len(out.Violations) == 0 {
		return &Envelope{}
	}

	if out.Blocked {
		var required []string
		seen := map[string]bool{}
		blocking := 0
		for _, v := range out.Violations {
			if v.Strictness != rules.StrictnessBlock {
				continue
			}
			blocking++
			if !seen[v.RequiredAgent] {
				required = append(required, v.RequiredAgent)
				seen[v.RequiredAgent] = true
			}
		}
		return &Envelope{
			Decision: "block",
			Reason: fmt.Sprintf(
				"Agent enforcement failed: %d required agent(s) not invoked. Use the Task tool to invoke: %s",
				blocking, strings.Join(required, ", ")),
		}
	}

	var recommended []string
	seen := map[string]bool{}
	for _, v := range out.Violations {
		if !seen[v.RequiredAgent] {
			recommended = append(recommended, v.RequiredAgent)
			seen[v.RequiredAgent] = true
		}
	}
	return &Envelope{HookSpecificOutput: &HookSpecificOutput{
		HookEventName: "Stop",
		AdditionalContext: fmt.Sprintf(
			"AGENT WARNINGS: %d recommended agent(s) were not used. Consider using: %s",
			len(out.Violations), strings.Join(recommended, ", ")),
	}}
}
