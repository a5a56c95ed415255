package main

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentgate/internal/banner"
	"agentgate/internal/hook"
)

var recordFiles []string

// recordInput is the PreToolUse hook document. Only Task invocations
// carry an agent; anything else is ignored.
type recordInput struct {
	ToolName  string `json:"tool_name"`
	SessionID string `json:"session_id,omitempty"`
	ToolInput struct {
		SubagentType string `json:"subagent_type"`
		Prompt       string `json:"prompt"`
	} `json:"tool_input"`
}

var executionModeRe = regexp.MustCompile(`(?i)execution[_ ]mode:\s*(plan|execute)`)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record an agent invocation from a PreToolUse hook call",
	Long: `Reads the host's PreToolUse JSON from stdin. When the tool is Task,
the subagent_type is recorded as an invocation in the session tracker and
any pending enforcement requirement it satisfies is cleared. Non-Task
calls pass through untouched.

Always writes {"continue": true} to stdout; recording never blocks a
tool call.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer func() {
			_ = emitJSON(cmd.OutOrStdout(), map[string]bool{"continue": true})
		}()

		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil
		}
		var input recordInput
		if err := json.Unmarshal(data, &input); err != nil {
			logger.Debug("record: unparseable input", zap.Error(err))
			return nil
		}

		agent := ""
		if input.ToolName == "Task" {
			agent = input.ToolInput.SubagentType
		}
		if agent == "" && len(recordFiles) == 0 {
			return nil
		}
		mode := extractExecutionMode(input.ToolInput.Prompt)

		sid := sessionID
		if sid == "" {
			sid = input.SessionID
		}

		store, cleanup := trackerStore()
		defer cleanup()

		engine := hook.NewEngine(workspace, store)
		engine.RecordInvocation(sid, agent, mode, input.ToolInput.Prompt, recordFiles)

		if agent != "" && engine.Config.Visibility.ShowBanners {
			banner.Print(banner.Announce(agent, mode))
		}

		logger.Debug("recorded invocation",
			zap.String("agent", agent),
			zap.String("mode", mode),
			zap.Int("files", len(recordFiles)))
		return nil
	},
}

func init() {
	recordCmd.Flags().StringArrayVar(&recordFiles, "file", nil, "record a touched file (repeatable)")
}

// extractExecutionMode pulls the "execution_mode: plan|execute" marker
// out of a delegated prompt, if present.
func extractExecutionMode(prompt string) string {
	m := executionModeRe.FindStringSubmatch(prompt)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
