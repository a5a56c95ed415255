package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentgate/internal/banner"
	"agentgate/internal/hook"
)

var enforceEnvelope bool

// enforceInput is the Stop hook's stdin document. filesTouched is
// optional; when absent the tracker's own record is used.
type enforceInput struct {
	SessionID    string   `json:"sessionId,omitempty"`
	FilesTouched []string `json:"filesTouched,omitempty"`
}

var enforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Check required-agent rules at session completion",
	Long: `Reads {"filesTouched": [...], "sessionId": "..."} from stdin, evaluates
the enforcement rule set against the session tracker, and writes

  {"blocked": bool, "violations": [...]}

to stdout. With --envelope the host's Stop hook document is emitted
instead, blocking completion when a block-strictness rule is violated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input := readEnforceInput(cmd.InOrStdin())

		sid := sessionID
		if sid == "" {
			sid = input.SessionID
		}

		store, cleanup := trackerStore()
		defer cleanup()

		engine := hook.NewEngine(workspace, store)
		outcome := engine.Enforce(sid, input.FilesTouched)

		logger.Debug("enforcement outcome",
			zap.Bool("blocked", outcome.Blocked),
			zap.Bool("exempt", outcome.Exempt),
			zap.Int("violations", len(outcome.Violations)))

		if engine.Config.Visibility.ShowBanners {
			banner.Print(banner.Violations(outcome))
		}

		if enforceEnvelope {
			return emitJSON(cmd.OutOrStdout(), hook.StopEnvelope(outcome))
		}
		return emitJSON(cmd.OutOrStdout(), outcome)
	},
}

func init() {
	enforceCmd.Flags().BoolVar(&enforceEnvelope, "envelope", false, "emit the host hook envelope instead of the outcome document")
}

func readEnforceInput(r io.Reader) enforceInput {
	var input enforceInput
	data, err := io.ReadAll(r)
	if err != nil {
		return input
	}
	// Malformed input means "no file information", not an error.
	_ = json.Unmarshal(data, &input)
	return input
}
