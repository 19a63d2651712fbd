package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"vikisync/internal/watchstore"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local watch progress and sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			watchStats, err := watch.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read watch stats: %w", err)
			}
			matchStats, err := matches.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read match stats: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			for _, line := range renderSectionHeader("Watch History", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Shows", fmt.Sprintf("%d", watchStats.TotalShows)))
			fmt.Fprintln(out, renderStatusLine("Episodes", fmt.Sprintf("%d (%d watched)", watchStats.TotalEpisodes, watchStats.WatchedEpisodes)))
			fmt.Fprintln(out, renderStatusLine("Synced to Trakt", fmt.Sprintf("%d (%d pending)", watchStats.SyncedEpisodes, watchStats.PendingSync)))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Show Matching", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Matched", fmt.Sprintf("%d of %d", matchStats.Matched, matchStats.Total)))
			if len(matchStats.ByMethod) > 0 {
				methods := make([]string, 0, len(matchStats.ByMethod))
				for method := range matchStats.ByMethod {
					methods = append(methods, method)
				}
				sort.Strings(methods)
				for _, method := range methods {
					fmt.Fprintln(out, renderStatusLine("  "+method, fmt.Sprintf("%d", matchStats.ByMethod[method])))
				}
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Last Sync", colorize) {
				fmt.Fprintln(out, line)
			}
			last, err := watch.LastSync(cmd.Context())
			switch {
			case errors.Is(err, watchstore.ErrNotFound):
				fmt.Fprintln(out, renderStatusLine("Status", "never synced"))
			case err != nil:
				return fmt.Errorf("read sync log: %w", err)
			default:
				fmt.Fprintln(out, renderStatusLine("When", last.CreatedAt.Local().Format(time.RFC1123)))
				fmt.Fprintln(out, renderStatusLine("Operation", last.Operation))
				fmt.Fprintln(out, renderStatusLine("Status", last.Status))
				fmt.Fprintln(out, renderStatusLine("Episodes synced", fmt.Sprintf("%d", last.EpisodesSynced)))
				if last.Notes != "" {
					fmt.Fprintln(out, renderStatusLine("Notes", last.Notes))
				}
			}
			return nil
		},
	}
}
