package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"agentgate/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage session tracker documents",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the session tracker document",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup := trackerStore()
		defer cleanup()

		tracker, err := store.Load(sessionID)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		return emitJSON(cmd.OutOrStdout(), tracker)
	},
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a fresh session with a generated id",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup := trackerStore()
		defer cleanup()

		id := "session-" + uuid.NewString()
		tracker := session.NewTracker(id)
		if err := store.Save(id, tracker); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the session tracker to an empty document",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup := trackerStore()
		defer cleanup()

		id := sessionID
		if id == "" {
			id = session.DefaultSessionID
		}
		if err := store.Save(id, session.NewTracker(id)); err != nil {
			return fmt.Errorf("reset session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %q reset\n", id)
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionResetCmd)
}
