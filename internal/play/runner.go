package play

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gokatarajesh/wordrush/internal/round/scoring"
)

// Run drives s from line-oriented input until the timer expires, the input
// ends, or ctx is cancelled. The session is always finished on return.
func Run(ctx context.Context, s *Session, in io.Reader, out io.Writer) (scoring.GameStats, error) {
	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
	}()

	if err := s.Start(); err != nil {
		return scoring.GameStats{}, err
	}
	defer s.Finish()

	for {
		w, err := s.Prompt()
		if errors.Is(err, ErrRoundOver) {
			break
		}
		if err != nil {
			return s.Stats(), err
		}
		fmt.Fprintf(out, "[%2ds] %s > ", int(s.Remaining().Seconds()+0.5), w.Term)

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return s.Stats(), ctx.Err()
		case <-s.Done():
			fmt.Fprintln(out, "\ntime's up")
			return s.Stats(), nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(out)
			return s.Stats(), nil
		}

		res, err := s.Answer(strings.TrimSpace(line))
		if errors.Is(err, ErrRoundOver) {
			fmt.Fprintln(out, "time's up")
			return s.Stats(), nil
		}
		if err != nil {
			return s.Stats(), err
		}
		if res.IsCorrect {
			fmt.Fprintf(out, "  correct +%d (combo %d)\n", res.Score, res.Combo)
		} else {
			fmt.Fprintf(out, "  wrong, answer: %s\n", w.Meaning)
		}
	}
	if s.Remaining() <= 0 {
		fmt.Fprintln(out, "time's up")
	} else {
		fmt.Fprintln(out, "question limit reached")
	}
	return s.Stats(), nil
}

// Summary renders the final totals of a round.
func Summary(stats scoring.GameStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "score     %d\n", stats.TotalScore)
	fmt.Fprintf(&b, "correct   %d/%d (%.1f%%)\n", stats.CorrectAnswers, stats.TotalQuestions, stats.Accuracy)
	fmt.Fprintf(&b, "max combo %d\n", stats.MaxCombo)
	fmt.Fprintf(&b, "avg time  %.0fms\n", stats.AverageResponseTimeMs)
	fmt.Fprintf(&b, "grade     %s\n", scoring.Grade(stats.Accuracy))
	return b.String()
}
