package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// boardRows yields one row per player on a board. Rows touched before the
// window start ($5) are stale; on trailing windows a stale row is replaced by
// the player's best round inside the window, otherwise it is dropped.
const boardRows = `
board_rows AS (
    SELECT user_id, period, duration_sec, scope, subject, score, accuracy, speed,
        grade, percentile, stanine, round_id, created_at, updated_at
    FROM leaderboards
    WHERE period = $1 AND duration_sec = $2 AND scope = $3 AND subject = $4
      AND ($5::timestamptz IS NULL OR updated_at >= $5::timestamptz)
    UNION ALL
    (SELECT DISTINCT ON (lb.user_id)
        lb.user_id, lb.period, lb.duration_sec, lb.scope, lb.subject, r.score, r.accuracy, r.speed,
        r.grade, lb.percentile, lb.stanine, r.id, lb.created_at, r.created_at
    FROM leaderboards lb
    JOIN rounds r ON r.user_id = lb.user_id AND r.duration_sec = lb.duration_sec
    WHERE lb.period = $1 AND lb.duration_sec = $2 AND lb.scope = $3 AND lb.subject = $4
      AND $1 IN ('weekly', 'monthly')
      AND $5::timestamptz IS NOT NULL
      AND lb.updated_at < $5::timestamptz
      AND r.created_at >= $5::timestamptz
    ORDER BY lb.user_id, r.score DESC, r.accuracy DESC, r.speed ASC, r.created_at ASC)
)`

// BoardParams identifies one leaderboard window.
type BoardParams struct {
	Period      string
	DurationSec int16
	Scope       string
	Subject     string
	Since       pgtype.Timestamptz
}

func (p BoardParams) args(extra ...any) []any {
	return append([]any{p.Period, p.DurationSec, p.Scope, p.Subject, p.Since}, extra...)
}

const upsertLeaderboardBest = `
INSERT INTO leaderboards AS lb (
    user_id, period, duration_sec, scope, subject,
    score, accuracy, speed, grade, percentile, stanine, round_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (user_id, period, duration_sec, scope, subject) DO UPDATE SET
    score      = EXCLUDED.score,
    accuracy   = EXCLUDED.accuracy,
    speed      = EXCLUDED.speed,
    grade      = EXCLUDED.grade,
    percentile = EXCLUDED.percentile,
    stanine    = EXCLUDED.stanine,
    round_id   = EXCLUDED.round_id,
    updated_at = now()
WHERE ($13::timestamptz IS NOT NULL AND lb.updated_at < $13::timestamptz)
   OR EXCLUDED.score > lb.score
   OR (EXCLUDED.score = lb.score AND EXCLUDED.accuracy > lb.accuracy)
   OR (EXCLUDED.score = lb.score AND EXCLUDED.accuracy = lb.accuracy AND EXCLUDED.speed < lb.speed)
RETURNING (xmax = 0) AS inserted`

type UpsertLeaderboardBestParams struct {
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
	WindowStart pgtype.Timestamptz
}

// UpsertLeaderboardBest writes the row only when it is new, stale, or strictly
// better. It returns pgx.ErrNoRows when the stored row was kept.
func (q *Queries) UpsertLeaderboardBest(ctx context.Context, arg UpsertLeaderboardBestParams) (bool, error) {
	var inserted bool
	err := q.db.QueryRow(ctx, upsertLeaderboardBest,
		arg.UserID,
		arg.Period,
		arg.DurationSec,
		arg.Scope,
		arg.Subject,
		arg.Score,
		arg.Accuracy,
		arg.Speed,
		arg.Grade,
		arg.Percentile,
		arg.Stanine,
		arg.RoundID,
		arg.WindowStart,
	).Scan(&inserted)
	return inserted, err
}

const refreshLeaderboardBest = `
UPDATE leaderboards AS lb SET
    score      = best.score,
    accuracy   = best.accuracy,
    speed      = best.speed,
    grade      = best.grade,
    round_id   = best.id,
    updated_at = best.created_at
FROM (
    SELECT id, score, accuracy, speed, grade, created_at
    FROM rounds
    WHERE user_id = $1 AND duration_sec = $3 AND created_at >= $6::timestamptz
    ORDER BY score DESC, accuracy DESC, speed ASC, created_at ASC
    LIMIT 1
) AS best
WHERE lb.user_id = $1 AND lb.period = $2 AND lb.duration_sec = $3
  AND lb.scope = $4 AND lb.subject = $5
  AND (lb.updated_at < $6::timestamptz
       OR best.score > lb.score
       OR (best.score = lb.score AND best.accuracy > lb.accuracy)
       OR (best.score = lb.score AND best.accuracy = lb.accuracy AND best.speed < lb.speed))`

type RefreshLeaderboardBestParams struct {
	UserID      pgtype.UUID
	Period      string
	DurationSec int16
	Scope       string
	Subject     string
	WindowStart pgtype.Timestamptz
}

// RefreshLeaderboardBest rewrites the row from the user's best round inside
// the window when the stored row is stale or beaten by it. It reports whether
// the row changed.
func (q *Queries) RefreshLeaderboardBest(ctx context.Context, arg RefreshLeaderboardBestParams) (bool, error) {
	tag, err := q.db.Exec(ctx, refreshLeaderboardBest,
		arg.UserID,
		arg.Period,
		arg.DurationSec,
		arg.Scope,
		arg.Subject,
		arg.WindowStart,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const getLeaderboardRank = `
WITH` + boardRows + `, board AS (
    SELECT user_id, score FROM board_rows
), me AS (
    SELECT score FROM board WHERE user_id = $6
)
SELECT
    CASE WHEN EXISTS (SELECT 1 FROM me)
         THEN 1 + (SELECT count(*) FROM board WHERE score > (SELECT score FROM me))
         ELSE 0
    END AS rank,
    (SELECT count(*) FROM board) AS total_players`

type LeaderboardRankRow struct {
	Rank         int64
	TotalPlayers int64
}

func (q *Queries) GetLeaderboardRank(ctx context.Context, board BoardParams, userID pgtype.UUID) (LeaderboardRankRow, error) {
	var row LeaderboardRankRow
	err := q.db.QueryRow(ctx, getLeaderboardRank, board.args(userID)...).Scan(&row.Rank, &row.TotalPlayers)
	return row, err
}

const listTopLeaderboard = `
WITH` + boardRows + `
SELECT user_id, period, duration_sec, scope, subject, score, accuracy, speed,
    grade, percentile, stanine, round_id, created_at, updated_at
FROM board_rows
ORDER BY score DESC, accuracy DESC, speed ASC, updated_at ASC, user_id
LIMIT $6`

func (q *Queries) ListTopLeaderboard(ctx context.Context, board BoardParams, limit int32) ([]Leaderboard, error) {
	rows, err := q.db.Query(ctx, listTopLeaderboard, board.args(limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Leaderboard
	for rows.Next() {
		var i Leaderboard
		if err := rows.Scan(
			&i.UserID,
			&i.Period,
			&i.DurationSec,
			&i.Scope,
			&i.Subject,
			&i.Score,
			&i.Accuracy,
			&i.Speed,
			&i.Grade,
			&i.Percentile,
			&i.Stanine,
			&i.RoundID,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listLeaderboardScores = `WITH` + boardRows + ` SELECT score FROM board_rows`

func (q *Queries) ListLeaderboardScores(ctx context.Context, board BoardParams) ([]int32, error) {
	rows, err := q.db.Query(ctx, listLeaderboardScores, board.args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []int32
	for rows.Next() {
		var s int32
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

const getPercentileStats = `
WITH` + boardRows + `, board AS (
    SELECT score FROM board_rows
), counts AS (
    SELECT count(*) AS total_players,
           count(*) FILTER (WHERE score < $6) AS below
    FROM board
), ranked AS (
    SELECT total_players,
           CASE WHEN total_players = 0 THEN 0
                ELSE round(100.0 * below / total_players)::int
           END AS percentile
    FROM counts
)
SELECT percentile,
       CASE WHEN percentile >= 96 THEN 9
            WHEN percentile >= 89 THEN 8
            WHEN percentile >= 77 THEN 7
            WHEN percentile >= 60 THEN 6
            WHEN percentile >= 40 THEN 5
            WHEN percentile >= 23 THEN 4
            WHEN percentile >= 11 THEN 3
            WHEN percentile >= 4  THEN 2
            ELSE 1
       END AS stanine,
       total_players
FROM ranked`

type PercentileStatsRow struct {
	Percentile   int32
	Stanine      int32
	TotalPlayers int64
}

func (q *Queries) GetPercentileStats(ctx context.Context, board BoardParams, score int32) (PercentileStatsRow, error) {
	var row PercentileStatsRow
	err := q.db.QueryRow(ctx, getPercentileStats, board.args(score)...).Scan(&row.Percentile, &row.Stanine, &row.TotalPlayers)
	return row, err
}

const getLeaderboardStats = `
WITH` + boardRows + `
SELECT count(*) AS total_players,
       coalesce(avg(score), 0)::float8 AS average_score,
       coalesce(max(score), 0)::int AS top_score,
       coalesce(percentile_cont(0.5) WITHIN GROUP (ORDER BY score), 0)::float8 AS median_score
FROM board_rows`

type LeaderboardStatsRow struct {
	TotalPlayers int64
	AverageScore float64
	TopScore     int32
	MedianScore  float64
}

func (q *Queries) GetLeaderboardStats(ctx context.Context, board BoardParams) (LeaderboardStatsRow, error) {
	var row LeaderboardStatsRow
	err := q.db.QueryRow(ctx, getLeaderboardStats, board.args()...).Scan(
		&row.TotalPlayers, &row.AverageScore, &row.TopScore, &row.MedianScore)
	return row, err
}
