package round

import (
	"fmt"
	"math"
)

const (
	maxBaseScore   = 1000
	maxSpeedBonus  = 100
	comboReference = 500
	comboStep      = 10

	// MaxPossibleScore is the reference ceiling used for grading.
	MaxPossibleScore = maxBaseScore + maxSpeedBonus + comboReference
)

// CheckShape verifies the submission is well formed enough to score.
func CheckShape(s Submission) error {
	switch {
	case s.DurationSec <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidSubmission)
	case s.TotalQuestions <= 0:
		return fmt.Errorf("%w: total questions must be positive", ErrInvalidSubmission)
	case s.CorrectAnswers < 0 || s.CorrectAnswers > s.TotalQuestions:
		return fmt.Errorf("%w: correct answers out of range", ErrInvalidSubmission)
	case len(s.Items) != s.TotalQuestions:
		return fmt.Errorf("%w: %d items for %d questions", ErrInvalidSubmission, len(s.Items), s.TotalQuestions)
	}

	start, end, err := s.ParseTimes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidSubmission)
	}

	for i, item := range s.Items {
		if item.ResponseTimeMs < 0 || item.Score < 0 {
			return fmt.Errorf("%w: item %d has negative values", ErrInvalidSubmission, i+1)
		}
	}
	return nil
}

// ComputeMetrics derives the authoritative metrics for a round.
// It is deterministic and performs no I/O.
func ComputeMetrics(s Submission) (Metrics, error) {
	if err := CheckShape(s); err != nil {
		return Metrics{}, err
	}

	accuracy := float64(s.CorrectAnswers) / float64(s.TotalQuestions) * 100
	speed := AverageValidResponseTime(s.Items)
	normalized := NormalizeSpeed(speed)

	baseScore := int(roundHalfUp(accuracy * 10))
	speedBonus := int(roundHalfUp(normalized))
	total := baseScore + speedBonus + ComboBonus(s.Items)

	return Metrics{
		Accuracy:         roundTo(accuracy, 2),
		Speed:            roundHalfUp(speed),
		NormalizedSpeed:  roundTo(normalized, 2),
		TotalScore:       total,
		MaxPossibleScore: MaxPossibleScore,
		Grade:            GradeFor(total, MaxPossibleScore),
	}, nil
}

// AverageValidResponseTime is the mean of response times in (0, 30000] ms.
// Out-of-range samples are excluded, not clamped.
func AverageValidResponseTime(items []Item) float64 {
	var sum, n int
	for _, item := range items {
		if item.ResponseTimeMs > 0 && item.ResponseTimeMs <= MaxResponseTimeMs {
			sum += item.ResponseTimeMs
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// NormalizeSpeed maps [0,30000] ms onto [100,0] points.
func NormalizeSpeed(speedMs float64) float64 {
	if speedMs <= 0 {
		return 100
	}
	v := (MaxResponseTimeMs - speedMs) / MaxResponseTimeMs * 100
	return math.Max(0, math.Min(100, v))
}

// ComboBonus walks items in order adding 10 points per step of the running streak.
func ComboBonus(items []Item) int {
	combo, bonus := 0, 0
	for _, item := range items {
		if !item.IsCorrect {
			combo = 0
			continue
		}
		combo++
		bonus += combo * comboStep
	}
	return bonus
}

// SumItemScores totals the per-answer points the client recorded.
func SumItemScores(items []Item) float64 {
	var total float64
	for _, item := range items {
		total += item.Score
	}
	return total
}

// GradeFor maps score/max onto the letter bands.
func GradeFor(score, max int) Grade {
	if max <= 0 {
		return GradeF
	}
	pct := float64(score) / float64(max) * 100
	switch {
	case pct >= 95:
		return GradeS
	case pct >= 90:
		return GradeA
	case pct >= 80:
		return GradeB
	case pct >= 70:
		return GradeC
	case pct >= 60:
		return GradeD
	default:
		return GradeF
	}
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return roundHalfUp(v*p) / p
}
