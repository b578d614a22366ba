package scoring

import (
	"math"
	"time"

	"github.com/gokatarajesh/wordrush/internal/round"
)

// GameStats are the running totals of a live round.
type GameStats struct {
	TotalQuestions        int     `json:"totalQuestions"`
	CorrectAnswers        int     `json:"correctAnswers"`
	TotalScore            int     `json:"totalScore"`
	Accuracy              float64 `json:"accuracy"`
	CurrentCombo          int     `json:"currentCombo"`
	MaxCombo              int     `json:"maxCombo"`
	AverageResponseTimeMs float64 `json:"averageResponseTime"`
	TotalResponseTimeMs   int64   `json:"totalResponseTime"`
}

// Record returns stats updated with one answered question.
// The average response time is taken over every answered question.
func (s GameStats) Record(isCorrect bool, responseTime time.Duration, score int) GameStats {
	s.TotalQuestions++
	s.TotalScore += score
	s.TotalResponseTimeMs += responseTime.Milliseconds()

	if isCorrect {
		s.CorrectAnswers++
		s.CurrentCombo++
		if s.CurrentCombo > s.MaxCombo {
			s.MaxCombo = s.CurrentCombo
		}
	} else {
		s.CurrentCombo = 0
	}

	s.Accuracy = float64(s.CorrectAnswers) / float64(s.TotalQuestions) * 100
	s.AverageResponseTimeMs = float64(s.TotalResponseTimeMs) / float64(s.TotalQuestions)
	return s
}

// Grade maps a live accuracy percentage onto the letter bands.
func Grade(accuracy float64) round.Grade {
	switch {
	case accuracy >= 95:
		return round.GradeS
	case accuracy >= 90:
		return round.GradeA
	case accuracy >= 80:
		return round.GradeB
	case accuracy >= 70:
		return round.GradeC
	case accuracy >= 60:
		return round.GradeD
	default:
		return round.GradeF
	}
}

// PerformanceRating blends accuracy, speed and combo into a 0-100 rating.
// A ten-answer streak saturates the combo share.
func PerformanceRating(stats GameStats) float64 {
	if stats.TotalQuestions == 0 {
		return 0
	}
	speed := round.NormalizeSpeed(stats.AverageResponseTimeMs)
	combo := math.Min(100, float64(stats.MaxCombo)/10*100)
	return stats.Accuracy*0.4 + speed*0.3 + combo*0.3
}
