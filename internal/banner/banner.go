// Package banner renders terminal banners for scoring decisions and agent
// invocations. Banners always go to stderr: stdout is reserved for the
// hook response document. Output can be suppressed via the visibility
// config or the AGENTGATE_QUIET environment variable.
package banner

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agentgate/internal/classify"
	"agentgate/internal/enforce"
	"agentgate/internal/rules"
	"agentgate/internal/scoring"
)

const bannerWidth = 58

var (
	autoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("28")).
			Width(bannerWidth).
			Align(lipgloss.Center)

	askStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("214")).
			Width(bannerWidth).
			Align(lipgloss.Center)

	suggestStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	blockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("124")).
			Width(bannerWidth).
			Align(lipgloss.Center)

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Suppressed reports whether banner output is disabled by environment.
func Suppressed() bool {
	return os.Getenv("AGENTGATE_QUIET") != ""
}

// Print writes a banner to stderr unless suppressed.
func Print(banner string) {
	if Suppressed() || banner == "" {
		return
	}
	fmt.Fprintln(os.Stderr, banner)
}

// displayName renders an agent name for banner headings.
func displayName(agent string) string {
	return strings.ToUpper(strings.ReplaceAll(agent, "-", " "))
}

// AutoInvoke renders the banner for an auto-selected agent.
func AutoInvoke(agent string, score float64, breakdown *scoring.Breakdown, showBreakdown bool) string {
	lines := []string{
		autoStyle.Render("AGENT AUTO-INVOKE"),
		autoStyle.Render(fmt.Sprintf("%s  (%.0f%%)", displayName(agent), score)),
	}
	body := strings.Join(lines, "\n")
	if showBreakdown && breakdown != nil {
		body += "\n" + LayerBreakdown(breakdown)
	}
	return body
}

// Prompt renders the confirmation banner for an ask decision.
func Prompt(agent string, score float64, reason string, breakdown *scoring.Breakdown, showBreakdown bool) string {
	lines := []string{
		askStyle.Render("AGENT SUGGESTED - CONFIRM"),
		askStyle.Render(fmt.Sprintf("%s  (%.0f%%)", displayName(agent), score)),
	}
	body := strings.Join(lines, "\n")
	if reason != "" {
		body += "\n" + dimStyle.Render(reason)
	}
	if showBreakdown && breakdown != nil {
		body += "\n" + LayerBreakdown(breakdown)
	}
	return body
}

// Suggest renders the non-blocking tip line.
func Suggest(agent string, score float64, reason string) string {
	tip := fmt.Sprintf("tip: the '%s' agent might help here (%.0f%% confidence)", agent, score)
	if reason != "" {
		tip += " - " + reason
	}
	return suggestStyle.Render(tip)
}

// Disambiguation renders the multiple-choice banner.
func Disambiguation(options []classify.Option) string {
	var b strings.Builder
	b.WriteString("MULTIPLE AGENTS MATCH\n")
	for i, opt := range options {
		line := fmt.Sprintf("[%d] %-24s %3.0f%%", i+1, opt.Agent, opt.Score)
		if opt.Description != "" {
			line += "  " + opt.Description
		}
		b.WriteString(line)
		if i < len(options)-1 {
			b.WriteString("\n")
		}
	}
	return borderStyle.Render(b.String())
}

// Announce renders the invocation banner shown when an agent actually runs.
func Announce(agent, mode string) string {
	heading := displayName(agent)
	if mode != "" {
		heading += "  [" + mode + "]"
	}
	return autoStyle.Render(heading)
}

// LayerBreakdown renders the per-layer confidence contributions.
func LayerBreakdown(bd *scoring.Breakdown) string {
	var b strings.Builder
	fmt.Fprintf(&b, "keyword  %5.1f x %.2f\n", bd.KeywordScore, bd.Weights.Keyword)
	fmt.Fprintf(&b, "category %5.1f x %.2f\n", bd.CategoryScore, bd.Weights.Category)
	fmt.Fprintf(&b, "intent   %5.1f x %.2f\n", bd.IntentScore, bd.Weights.Intent)
	if bd.MemoryAdjustment != 0 {
		fmt.Fprintf(&b, "memory   %+5.1f\n", bd.MemoryAdjustment)
	}
	fmt.Fprintf(&b, "final    %5.1f", bd.FinalScore)
	return dimStyle.Render(b.String())
}

// Violations renders the enforcement outcome for stderr display.
func Violations(out enforce.Outcome) string {
	if len(out.Violations) == 0 {
		return ""
	}

	var blocking, warnings []enforce.Violation
	for _, v := range out.Violations {
		if v.Strictness == rules.StrictnessBlock {
			blocking = append(blocking, v)
		} else {
			warnings = append(warnings, v)
		}
	}

	var b strings.Builder
	b.WriteString(blockOrWarnHeading(len(blocking) > 0))
	b.WriteString("\n")
	if len(blocking) > 0 {
		b.WriteString("BLOCKING:\n")
		for _, v := range blocking {
			fmt.Fprintf(&b, "  [%s] %s\n    required: %s\n", v.Rule, v.Message, v.RequiredAgent)
		}
	}
	if len(warnings) > 0 {
		b.WriteString(warnStyle.Render("WARNINGS:") + "\n")
		for _, v := range warnings {
			fmt.Fprintf(&b, "  [%s] %s\n    recommended: %s\n", v.Rule, v.Message, v.RequiredAgent)
		}
	}
	if len(blocking) > 0 {
		b.WriteString("To proceed: invoke the required agent(s)")
	}
	return strings.TrimRight(b.String(), "\n")
}

func blockOrWarnHeading(blocked bool) string {
	if blocked {
		return blockStyle.Render("AGENT ENFORCEMENT VIOLATIONS")
	}
	return warnStyle.Render("AGENT ENFORCEMENT WARNINGS")
}
