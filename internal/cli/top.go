package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gokatarajesh/wordrush/internal/client"
	"github.com/gokatarajesh/wordrush/internal/round"
)

func newTopCmd() *cobra.Command {
	var (
		durationSec int
		limit       int
	)
	cmd := &cobra.Command{
		Use:       "top [period]",
		Short:     "Show a leaderboard",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"daily", "weekly", "monthly", "all_time"},
		RunE: func(cmd *cobra.Command, args []string) error {
			period := round.PeriodDaily
			if len(args) == 1 {
				p, err := round.ParsePeriod(args[0])
				if err != nil {
					return err
				}
				period = p
			}

			api, err := client.New(client.Options{BaseURL: apiURL, Token: token}, newLogger(cmd))
			if err != nil {
				return err
			}
			board, err := api.Top(cmd.Context(), period, durationSec, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %ds (%s)\n", board.Period, board.DurationSec, board.Source)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE\tACCURACY\tGRADE\tPCT")
			for _, e := range board.Top {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f%%\t%s\t%d\n", e.Rank, e.UserID, e.Score, e.Accuracy, e.Grade, e.Percentile)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&durationSec, "duration", "d", 60, "round length in seconds")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries")
	return cmd
}
