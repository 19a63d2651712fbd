package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vikisync/internal/matching"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var title string
	var force bool

	cmd := &cobra.Command{
		Use:   "match <viki-id>",
		Short: "Resolve one Viki show to Trakt through the lookup ladder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vikiID := strings.TrimSpace(args[0])
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			matches, err := ctx.openMatchStore()
			if err != nil {
				return fmt.Errorf("open match store: %w", err)
			}
			defer matches.Close()

			show := matching.Show{VikiID: vikiID}
			if title = strings.TrimSpace(title); title != "" {
				show.Titles = map[string]string{"en": title}
			} else {
				show.Titles = storedTitles(cmd.Context(), ctx, vikiID)
			}

			engine, err := ctx.buildEngine(matches, logger)
			if err != nil {
				return err
			}
			var result *matching.Result
			if force {
				result, err = engine.Rematch(cmd.Context(), show)
			} else {
				result, err = engine.Match(cmd.Context(), show)
			}
			if err != nil {
				return err
			}

			printMatchResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Title to search with (defaults to the stored show title)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Ignore the cached result and match again")

	cmd.AddCommand(newMatchSetCommand(ctx))
	cmd.AddCommand(newMatchClearCommand(ctx))
	return cmd
}

func newMatchSetCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "set <viki-id> <trakt-id>",
		Short: "Manually pin a show to a Trakt id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vikiID := strings.TrimSpace(args[0])
			traktID, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil || traktID <= 0 {
				return fmt.Errorf("invalid trakt id %q", args[1])
			}

			matches, err := ctx.openMatchStore()
			if err != nil {
				return fmt.Errorf("open match store: %w", err)
			}
			defer matches.Close()

			client, err := ctx.traktClient()
			if err != nil {
				return err
			}
			// The show summary endpoint accepts numeric Trakt ids as well
			// as slugs; looking it up verifies the id and fills in names.
			show, err := client.GetShowBySlug(cmd.Context(), strconv.FormatInt(traktID, 10))
			if err != nil {
				return fmt.Errorf("look up trakt show %d: %w", traktID, err)
			}

			sourceTitle := strings.TrimSpace(title)
			if sourceTitle == "" {
				if titles := storedTitles(cmd.Context(), ctx, vikiID); titles != nil {
					sourceTitle = titles["en"]
				}
			}
			if sourceTitle == "" {
				sourceTitle = show.Title
			}

			result := &matching.Result{
				VikiID:      vikiID,
				SourceTitle: sourceTitle,
				TraktID:     show.IDs.Trakt,
				TraktSlug:   show.IDs.Slug,
				TraktTitle:  show.Title,
				TVDBID:      show.IDs.TVDB,
				Confidence:  1.0,
				Method:      matching.MethodManual,
				MatchedAt:   time.Now().UTC(),
			}
			if err := matches.Save(cmd.Context(), result); err != nil {
				return fmt.Errorf("save manual match: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pinned %s to %s (id %d, slug %s)\n",
				vikiID, show.Title, show.IDs.Trakt, show.IDs.Slug)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Source title to record with the match")
	return cmd
}

func newMatchClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <viki-id>",
		Short: "Remove the cached match for a show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vikiID := strings.TrimSpace(args[0])
			matches, err := ctx.openMatchStore()
			if err != nil {
				return fmt.Errorf("open match store: %w", err)
			}
			defer matches.Close()

			if err := matches.Delete(cmd.Context(), vikiID); err != nil {
				return fmt.Errorf("clear match: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared match for %s; the next sync will rematch it\n", vikiID)
			return nil
		},
	}
}

// storedTitles reads the show title recorded by a previous sync, if any.
func storedTitles(ctx context.Context, cmdCtx *commandContext, vikiID string) map[string]string {
	watch, err := cmdCtx.openWatchStore()
	if err != nil {
		return nil
	}
	defer watch.Close()
	stored, err := watch.GetShow(ctx, vikiID)
	if err != nil || stored.Title == "" {
		return nil
	}
	return map[string]string{"en": stored.Title}
}

func printMatchResult(cmd *cobra.Command, result *matching.Result) {
	out := cmd.OutOrStdout()
	if result.IsMatched() {
		fmt.Fprintf(out, "Matched %q\n", result.SourceTitle)
		fmt.Fprintf(out, "  Trakt:      %s (id %d, slug %s)\n", result.TraktTitle, result.TraktID, result.TraktSlug)
		if result.TVDBID != 0 {
			fmt.Fprintf(out, "  TVDB:       %d\n", result.TVDBID)
		}
		fmt.Fprintf(out, "  Method:     %s\n", result.Method)
		fmt.Fprintf(out, "  Confidence: %.2f\n", result.Confidence)
		return
	}
	fmt.Fprintf(out, "No match for %q\n", result.SourceTitle)
	if result.Notes != "" {
		fmt.Fprintf(out, "  Notes: %s\n", result.Notes)
	}
}
