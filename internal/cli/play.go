package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/wordrush/internal/client"
	"github.com/gokatarajesh/wordrush/internal/play"
	"github.com/gokatarajesh/wordrush/internal/round"
	"github.com/gokatarajesh/wordrush/internal/submission"
)

type playOptions struct {
	words       string
	durationSec int
	dryRun      bool
	ordered     bool
}

func newPlayCmd() *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play one round and submit the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.words, "words", "", "YAML word list (defaults to the built-in list)")
	cmd.Flags().IntVarP(&opts.durationSec, "duration", "d", 60, "round length in seconds: 60, 75 or 90")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the submission instead of sending it")
	cmd.Flags().BoolVar(&opts.ordered, "ordered", false, "keep the word list order")
	return cmd
}

func runPlay(cmd *cobra.Command, opts playOptions) error {
	logger := newLogger(cmd)
	out := cmd.OutOrStdout()

	list, err := play.LoadWords(opts.words)
	if err != nil {
		return err
	}

	sessionOpts := play.SessionOptions{DurationSec: opts.durationSec}
	if !opts.ordered {
		sessionOpts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	s, err := play.NewSession(list, sessionOpts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "%s: %d words, %ds. Type the meaning and press enter.\n", list.Name, len(list.Words), opts.durationSec)
	stats, err := play.Run(ctx, s, cmd.InOrStdin(), out)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "round abandoned")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprint(out, "\n"+play.Summary(stats))

	sub, err := s.Submission(uuid.NewString())
	if errors.Is(err, play.ErrNoAnswers) {
		fmt.Fprintln(out, "no answers, nothing to submit")
		return nil
	}
	if err != nil {
		return err
	}

	if opts.dryRun {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sub)
	}

	api, err := client.New(client.Options{BaseURL: apiURL, Token: token}, logger)
	if err != nil {
		return err
	}
	resp, err := api.SubmitRound(cmd.Context(), sub)
	var rejected *client.RejectedError
	if errors.As(err, &rejected) {
		fmt.Fprintln(out, rejected.Message)
		for _, e := range rejected.Errors {
			fmt.Fprintf(out, "  %s: %s\n", e.Code, e.Message)
		}
		return fmt.Errorf("round %s rejected", sub.RoundID)
	}
	if err != nil {
		return fmt.Errorf("submit round: %w", err)
	}
	printResult(out, resp)
	return nil
}

func printResult(out io.Writer, resp submission.Response) {
	m := resp.Metrics
	fmt.Fprintf(out, "\n%s\n", resp.Message)
	fmt.Fprintf(out, "server score %d/%d grade %s\n", m.TotalScore, round.MaxPossibleScore, m.Grade)
	if m.Percentile != nil && m.Stanine != nil {
		fmt.Fprintf(out, "percentile %d stanine %d", *m.Percentile, *m.Stanine)
		if resp.Labels != nil {
			fmt.Fprintf(out, " (%s, %s)", resp.Labels.Percentile, resp.Labels.Stanine)
		}
		fmt.Fprintln(out)
	}
	if lb := resp.Leaderboard; lb != nil {
		fmt.Fprintf(out, "%s rank %d of %d\n", lb.Period, lb.Rank, lb.TotalPlayers)
	}
}
