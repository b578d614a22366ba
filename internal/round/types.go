package round

import (
	"errors"
	"fmt"
	"time"
)

// Allowed round lengths in seconds.
var AllowedDurations = []int{60, 75, 90}

const (
	// MaxResponseTimeMs is the upper bound of a single plausible response.
	MaxResponseTimeMs = 30000
	// MaxQuestions bounds the number of questions in a round.
	MaxQuestions = 50
)

// ErrInvalidSubmission is returned when a submission fails the shape check.
var ErrInvalidSubmission = errors.New("invalid round submission")

// Item is the outcome of one question. Immutable once recorded.
type Item struct {
	IsCorrect      bool    `json:"isCorrect"`
	ResponseTimeMs int     `json:"responseTimeMs"`
	Score          float64 `json:"score"`
}

// Submission is the client-reported round sent once at round end.
// Times are kept as the raw strings the client sent so that the validator
// can report unparseable values as a range error instead of a decode error.
type Submission struct {
	RoundID               string   `json:"roundId,omitempty"`
	DurationSec           int      `json:"durationSec" validate:"oneof=60 75 90"`
	TotalQuestions        int      `json:"totalQuestions" validate:"min=1,max=50"`
	CorrectAnswers        int      `json:"correctAnswers" validate:"min=0,ltefield=TotalQuestions"`
	Items                 []Item   `json:"items"`
	StartTime             string   `json:"startTime"`
	EndTime               string   `json:"endTime"`
	ClientCalculatedScore *float64 `json:"clientCalculatedScore,omitempty"`
}

// ParseTimes parses the start and end instants.
func (s Submission) ParseTimes() (time.Time, time.Time, error) {
	start, err := parseInstant(s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start time: %w", err)
	}
	end, err := parseInstant(s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end time: %w", err)
	}
	return start, end, nil
}

// FormatInstant renders t the way submissions carry timestamps.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseInstant(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}

// IsAllowedDuration reports whether sec is one of the fixed round lengths.
func IsAllowedDuration(sec int) bool {
	for _, d := range AllowedDurations {
		if d == sec {
			return true
		}
	}
	return false
}

// Grade is the letter band of a round.
type Grade string

const (
	GradeS Grade = "S"
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Metrics are the authoritative, server-derived figures for a round.
type Metrics struct {
	Accuracy         float64 `json:"accuracy"`
	Speed            float64 `json:"speed"`
	NormalizedSpeed  float64 `json:"normalizedSpeed"`
	TotalScore       int     `json:"totalScore"`
	MaxPossibleScore int     `json:"maxPossibleScore"`
	Grade            Grade   `json:"grade"`
	Percentile       *int    `json:"percentile,omitempty"`
	Stanine          *int    `json:"stanine,omitempty"`
}

// WithRanking returns a copy of m carrying percentile and stanine.
func (m Metrics) WithRanking(percentile, stanine int) Metrics {
	m.Percentile = &percentile
	m.Stanine = &stanine
	return m
}
