package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentgate/internal/banner"
	"agentgate/internal/classify"
	"agentgate/internal/hook"
)

var scoreEnvelope bool

// scoreInput is the scoring call's stdin document.
type scoreInput struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"sessionId,omitempty"`
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a prompt and decide which agent should act",
	Long: `Reads {"prompt": "..."} from stdin, runs the command-mapping check and
the 3-layer scorer, records the outcome in the session tracker, and writes
the decision document to stdout:

  {"action": "auto"|"ask"|"suggest"|"none", "agent": ..., "score": ...,
   "breakdown": {...}, "disambiguation": [...]}

With --envelope the host's UserPromptSubmit hook document is emitted
instead. Exits 0 in every case: a broken engine must not break the host.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readScoreInput(cmd.InOrStdin())
		if err != nil || input.Prompt == "" {
			// No usable input is a pass-through, not a failure.
			return emitJSON(cmd.OutOrStdout(), emptyScoreOutput())
		}

		sid := sessionID
		if sid == "" {
			sid = input.SessionID
		}

		store, cleanup := trackerStore()
		defer cleanup()

		engine := hook.NewEngine(workspace, store)
		decision := engine.Score(sid, input.Prompt)

		logger.Debug("score decision",
			zap.String("action", string(decision.Action)),
			zap.String("agent", decision.Agent),
			zap.Float64("score", decision.Score))

		printScoreBanner(engine, decision)

		if scoreEnvelope {
			return emitJSON(cmd.OutOrStdout(),
				hook.PromptEnvelope(decision, engine.Registry.Description(decision.Agent)))
		}
		return emitJSON(cmd.OutOrStdout(), decision)
	},
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreEnvelope, "envelope", false, "emit the host hook envelope instead of the decision document")
}

func readScoreInput(r io.Reader) (*scoreInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var input scoreInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	return &input, nil
}

func emptyScoreOutput() interface{} {
	if scoreEnvelope {
		return &hook.Envelope{}
	}
	return classify.Decision{Action: classify.ActionNone}
}

// printScoreBanner shows the decision on stderr per visibility config.
func printScoreBanner(engine *hook.Engine, d classify.Decision) {
	vis := engine.Config.Visibility
	if !vis.ShowBanners || banner.Suppressed() {
		return
	}

	switch {
	case len(d.Disambiguation) >= 2:
		banner.Print(banner.Disambiguation(d.Disambiguation))
	case d.Action == classify.ActionAuto:
		banner.Print(banner.AutoInvoke(d.Agent, d.Score, d.Breakdown, vis.ShowConfidenceBreakdown))
	case d.Action == classify.ActionAsk:
		banner.Print(banner.Prompt(d.Agent, d.Score, engine.Registry.Description(d.Agent), d.Breakdown, vis.ShowConfidenceBreakdown))
	case d.Action == classify.ActionSuggest:
		banner.Print(banner.Suggest(d.Agent, d.Score, engine.Registry.Description(d.Agent)))
	}
}

func emitJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "agentgate: failed to encode output:", err)
	}
	return nil
}
