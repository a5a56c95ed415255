// agentgate - agent selection and enforcement decision engine.
//
// agentgate runs as a set of short-lived hook invocations inside a
// developer-tooling session: `score` on each user prompt, `record` on
// each agent invocation, and `enforce` at session completion.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agentgate/internal/logging"
	"agentgate/internal/session"
)

var (
	// Global flags
	verbose   bool
	workspace string
	sessionID string
	dbPath    string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agentgate",
	Short: "agentgate - agent selection & enforcement decision engine",
	Long: `agentgate decides which specialized agent should handle a request,
with what confidence, and whether mandatory agents were used before a
session may complete.

It is designed to be wired into a host's hook points:

  score    UserPromptSubmit  - classify the prompt, pick an agent
  record   PreToolUse(Task)  - record an actual agent invocation
  enforce  Stop              - gate session completion on required agents

All subcommands read a JSON document from stdin and write a JSON document
to stdout; banners and diagnostics go to stderr.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace = projectDir()
		}
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("category logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// projectDir resolves the workspace from the environment or cwd.
func projectDir() string {
	if dir := os.Getenv("AGENTGATE_PROJECT_DIR"); dir != "" {
		return dir
	}
	if dir, err := os.Getwd(); err == nil {
		return dir
	}
	return "."
}

// trackerStore picks the session store backend: SQLite when --db is set,
// the per-session JSON file store otherwise.
func trackerStore() (session.Store, func()) {
	if dbPath != "" {
		store, err := session.NewSQLiteStore(dbPath)
		if err != nil {
			logger.Warn("sqlite store unavailable, falling back to file store",
				zap.String("path", dbPath), zap.Error(err))
			return session.NewFileStore(workspace), func() {}
		}
		return store, func() { _ = store.Close() }
	}
	return session.NewFileStore(workspace), func() {}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: $AGENTGATE_PROJECT_DIR or cwd)")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "session id (default: the shared session document)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "use a SQLite tracker store at this path instead of JSON files")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(enforceCmd)
	rootCmd.AddCommand(sessionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
