package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vikisync/internal/syncer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var full bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch Viki watch history and push watched episodes to Trakt",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			watch, err := ctx.openWatchStore()
			if err != nil {
				return fmt.Errorf("open watch store: %w", err)
			}
			defer watch.Close()
			matches, err := ctx.openMatchStore()
			if err != nil {
				return fmt.Errorf("open match store: %w", err)
			}
			defer matches.Close()

			s, err := ctx.buildSyncer(watch, matches, logger)
			if err != nil {
				return err
			}

			result, err := s.Run(cmd.Context(), syncer.Options{DryRun: dryRun, ForceFull: full})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(out, "Dry run; nothing was pushed to Trakt")
			}
			fmt.Fprintf(out, "Shows fetched:    %d\n", result.ShowsFetched)
			fmt.Fprintf(out, "Episodes fetched: %d\n", result.EpisodesFetched)
			fmt.Fprintf(out, "Shows matched:    %d (%d unmatched)\n", result.MatchesFound, result.MatchesMissing)
			fmt.Fprintf(out, "Episodes synced:  %d\n", result.EpisodesSynced)
			if len(result.Errors) > 0 {
				fmt.Fprintf(out, "Completed with %d errors:\n", len(result.Errors))
				for _, msg := range result.Errors {
					fmt.Fprintf(out, "  - %s\n", msg)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview the sync without pushing to Trakt")
	cmd.Flags().BoolVar(&full, "full", false, "Refetch the complete watch history instead of the incremental window")
	return cmd
}
