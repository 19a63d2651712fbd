package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vikisync/internal/watchstore"
)

func newUndoCommand(ctx *commandContext) *cobra.Command {
	var sessionID int64

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Revert the sync flags from the last history push",
		Long: "Marks the episodes from a sync session as unsynced so the next run\n" +
			"pushes them to Trakt again. Trakt history itself is not modified.",
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, err := ctx.openWatchStore()
			if err != nil {
				return fmt.Errorf("open watch store: %w", err)
			}
			defer watch.Close()

			if sessionID == 0 {
				last, err := watch.LastSync(cmd.Context())
				if errors.Is(err, watchstore.ErrNotFound) {
					return errors.New("no sync sessions to undo")
				}
				if err != nil {
					return fmt.Errorf("read sync log: %w", err)
				}
				sessionID = last.ID
			}

			reverted, err := watch.UndoSync(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("undo sync session %d: %w", sessionID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reverted %d episodes from session %d\n", reverted, sessionID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&sessionID, "session", 0, "Sync session id to revert (defaults to the most recent)")
	return cmd
}
