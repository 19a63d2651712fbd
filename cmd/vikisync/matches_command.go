package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vikisync/internal/matching"
)

func newMatchesCommand(ctx *commandContext) *cobra.Command {
	var unmatchedOnly bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List cached show matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			matches, err := ctx.openMatchStore()
			if err != nil {
				return fmt.Errorf("open match store: %w", err)
			}
			defer matches.Close()

			var results []*matching.Result
			if unmatchedOnly {
				results, err = matches.ListUnmatched(cmd.Context())
			} else {
				results, err = matches.ListMatched(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("list matches: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(results)
			}
			if len(results) == 0 {
				if unmatchedOnly {
					fmt.Fprintln(out, "No unmatched shows")
				} else {
					fmt.Fprintln(out, "No matched shows yet; run `vikisync sync` first")
				}
				return nil
			}

			if unmatchedOnly {
				rows := make([][]string, 0, len(results))
				for _, result := range results {
					rows = append(rows, []string{result.VikiID, result.SourceTitle, result.Notes})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Viki ID", "Title", "Notes"}, rows))
				return nil
			}

			rows := make([][]string, 0, len(results))
			for _, result := range results {
				rows = append(rows, []string{
					result.VikiID,
					result.SourceTitle,
					result.TraktTitle,
					strconv.FormatInt(result.TraktID, 10),
					result.Method,
					fmt.Sprintf("%.2f", result.Confidence),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Viki ID", "Title", "Trakt Title", "Trakt ID", "Method", "Confidence"},
				rows, 4, 6))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&unmatchedOnly, "unmatched", "u", false, "Show only shows that failed to match")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
