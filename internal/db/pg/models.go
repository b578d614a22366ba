package pg

import "github.com/jackc/pgx/v5/pgtype"

type Round struct {
	ID              pgtype.UUID
	UserID          pgtype.UUID
	DurationSec     int16
	TotalQuestions  int16
	CorrectAnswers  int16
	Score           int32
	Accuracy        float64
	Speed           float64
	NormalizedSpeed float64
	Grade           string
	Flags           []byte
	StartTime       pgtype.Timestamptz
	EndTime         pgtype.Timestamptz
	CreatedAt       pgtype.Timestamptz
}

type RoundItem struct {
	RoundID        pgtype.UUID
	QuestionIndex  int16
	IsCorrect      bool
	ResponseTimeMs int32
	Score          float64
}

type Leaderboard struct {
	UserID      pgtype.UUID
	Period      string
	DurationSec int16
	Scope       string
	Subject     string
	Score       int32
	Accuracy    float64
	Speed       float64
	Grade       string
	Percentile  int16
	Stanine     int16
	RoundID     pgtype.UUID
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}
