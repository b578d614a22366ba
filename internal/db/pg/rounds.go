package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertRound = `
INSERT INTO rounds (
    id, user_id, duration_sec, total_questions, correct_answers,
    score, accuracy, speed, normalized_speed, grade, flags, start_time, end_time
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id, user_id, duration_sec, total_questions, correct_answers,
    score, accuracy, speed, normalized_speed, grade, flags, start_time, end_time, created_at`

type InsertRoundParams struct {
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
}

func (q *Queries) InsertRound(ctx context.Context, arg InsertRoundParams) (Round, error) {
	row := q.db.QueryRow(ctx, insertRound,
		arg.ID,
		arg.UserID,
		arg.DurationSec,
		arg.TotalQuestions,
		arg.CorrectAnswers,
		arg.Score,
		arg.Accuracy,
		arg.Speed,
		arg.NormalizedSpeed,
		arg.Grade,
		arg.Flags,
		arg.StartTime,
		arg.EndTime,
	)
	return scanRound(row)
}

const getRound = `
SELECT id, user_id, duration_sec, total_questions, correct_answers,
    score, accuracy, speed, normalized_speed, grade, flags, start_time, end_time, created_at
FROM rounds
WHERE id = $1`

func (q *Queries) GetRound(ctx context.Context, id pgtype.UUID) (Round, error) {
	return scanRound(q.db.QueryRow(ctx, getRound, id))
}

func scanRound(row pgx.Row) (Round, error) {
	var r Round
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.DurationSec,
		&r.TotalQuestions,
		&r.CorrectAnswers,
		&r.Score,
		&r.Accuracy,
		&r.Speed,
		&r.NormalizedSpeed,
		&r.Grade,
		&r.Flags,
		&r.StartTime,
		&r.EndTime,
		&r.CreatedAt,
	)
	return r, err
}

var roundItemColumns = []string{"round_id", "question_index", "is_correct", "response_time_ms", "score"}

// CopyRoundItems bulk-loads the items of one or more rounds.
func (q *Queries) CopyRoundItems(ctx context.Context, items []RoundItem) (int64, error) {
	return q.db.CopyFrom(ctx, pgx.Identifier{"round_items"}, roundItemColumns,
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			return []any{it.RoundID, it.QuestionIndex, it.IsCorrect, it.ResponseTimeMs, it.Score}, nil
		}))
}

const listRoundItems = `
SELECT round_id, question_index, is_correct, response_time_ms, score
FROM round_items
WHERE round_id = $1
ORDER BY question_index`

func (q *Queries) ListRoundItems(ctx context.Context, roundID pgtype.UUID) ([]RoundItem, error) {
	rows, err := q.db.Query(ctx, listRoundItems, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RoundItem
	for rows.Next() {
		var it RoundItem
		if err := rows.Scan(&it.RoundID, &it.QuestionIndex, &it.IsCorrect, &it.ResponseTimeMs, &it.Score); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
