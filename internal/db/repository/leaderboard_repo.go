package repository

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gokatarajesh/wordrush/internal/db/pg"
	"github.com/gokatarajesh/wordrush/internal/round"
)

type leaderboardStore interface {
	UpsertLeaderboardBest(ctx context.Context, arg pg.UpsertLeaderboardBestParams) (bool, error)
	RefreshLeaderboardBest(ctx context.Context, arg pg.RefreshLeaderboardBestParams) (bool, error)
	GetLeaderboardRank(ctx context.Context, board pg.BoardParams, userID pgtype.UUID) (pg.LeaderboardRankRow, error)
	ListTopLeaderboard(ctx context.Context, board pg.BoardParams, limit int32) ([]pg.Leaderboard, error)
	ListLeaderboardScores(ctx context.Context, board pg.BoardParams) ([]int32, error)
	GetPercentileStats(ctx context.Context, board pg.BoardParams, score int32) (pg.PercentileStatsRow, error)
	GetLeaderboardStats(ctx context.Context, board pg.BoardParams) (pg.LeaderboardStatsRow, error)
}

// BoardKey identifies one leaderboard. Since is the start of the current
// period window; rows last touched before it are stale. Zero means unbounded.
type BoardKey struct {
	Period      round.Period
	DurationSec int
	Scope       string
	Subject     string
	Since       time.Time
}

// Window names the period window k belongs to. Weekly and monthly windows
// trail the clock, so their start is bucketed to the hour.
func (k BoardKey) Window() string {
	switch {
	case k.Since.IsZero():
		return "all"
	case k.Trailing():
		return strconv.FormatInt(k.Since.Truncate(time.Hour).Unix(), 10)
	default:
		return strconv.FormatInt(k.Since.Unix(), 10)
	}
}

// Trailing reports whether the window moves with the clock, so a stored best
// can age out while the player still has later rounds inside it.
func (k BoardKey) Trailing() bool {
	return !k.Since.IsZero() && (k.Period == round.PeriodWeekly || k.Period == round.PeriodMonthly)
}

// ID is a stable identifier for the board within its current window.
func (k BoardKey) ID() string {
	return fmt.Sprintf("%s:%d:%s:%s:%s", k.Period, k.DurationSec, k.Scope, k.Subject, k.Window())
}

func (k BoardKey) params() pg.BoardParams {
	return pg.BoardParams{
		Period:      string(k.Period),
		DurationSec: int16(k.DurationSec),
		Scope:       k.Scope,
		Subject:     k.Subject,
		Since:       toTimestamptz(k.Since),
	}
}

// BestResult is the candidate row for one user on one board.
type BestResult struct {
	UserID     uuid.UUID
	RoundID    uuid.UUID
	Score      int
	Accuracy   float64
	Speed      float64
	Grade      round.Grade
	Percentile int
	Stanine    int
}

// UpsertOutcome reports what the best-result upsert did.
type UpsertOutcome string

const (
	UpsertInserted UpsertOutcome = "inserted"
	UpsertImproved UpsertOutcome = "improved"
	UpsertKept     UpsertOutcome = "kept"
)

// Entry is one ranked leaderboard row.
type Entry struct {
	Rank       int
	UserID     uuid.UUID
	Score      int
	Accuracy   float64
	Speed      float64
	Grade      round.Grade
	Percentile int
	Stanine    int
	UpdatedAt  time.Time
}

// Standing is a user's position on a board. Rank 0 means unranked.
type Standing struct {
	Rank         int
	TotalPlayers int
}

// PercentileStats is the aggregate computed by the database.
type PercentileStats struct {
	Percentile   int
	Stanine      int
	TotalPlayers int
}

// BoardStats summarises a board.
type BoardStats struct {
	TotalPlayers int
	AverageScore int
	TopScore     int
	MedianScore  int
}

// LeaderboardRepository persists best results per board.
type LeaderboardRepository struct {
	store leaderboardStore
}

// NewLeaderboardRepository wraps a leaderboard store.
func NewLeaderboardRepository(store leaderboardStore) *LeaderboardRepository {
	return &LeaderboardRepository{store: store}
}

// UpsertBest applies the keep-the-best rule in a single conditional statement.
// On trailing windows the row is then reconciled with the user's best round
// still inside the window.
func (r *LeaderboardRepository) UpsertBest(ctx context.Context, key BoardKey, res BestResult) (UpsertOutcome, error) {
	outcome, err := r.upsert(ctx, key, res)
	if err != nil || !key.Trailing() {
		return outcome, err
	}

	refreshed, err := r.store.RefreshLeaderboardBest(ctx, pg.RefreshLeaderboardBestParams{
		UserID:      toPGUUID(res.UserID),
		Period:      string(key.Period),
		DurationSec: int16(key.DurationSec),
		Scope:       key.Scope,
		Subject:     key.Subject,
		WindowStart: toTimestamptz(key.Since),
	})
	if err != nil {
		return "", fmt.Errorf("refresh leaderboard %s/%d: %w", key.Period, key.DurationSec, err)
	}
	if refreshed && outcome == UpsertKept {
		outcome = UpsertImproved
	}
	return outcome, nil
}

func (r *LeaderboardRepository) upsert(ctx context.Context, key BoardKey, res BestResult) (UpsertOutcome, error) {
	inserted, err := r.store.UpsertLeaderboardBest(ctx, pg.UpsertLeaderboardBestParams{
		UserID:      toPGUUID(res.UserID),
		Period:      string(key.Period),
		DurationSec: int16(key.DurationSec),
		Scope:       key.Scope,
		Subject:     key.Subject,
		Score:       int32(res.Score),
		Accuracy:    res.Accuracy,
		Speed:       res.Speed,
		Grade:       string(res.Grade),
		Percentile:  int16(res.Percentile),
		Stanine:     int16(res.Stanine),
		RoundID:     toPGUUID(res.RoundID),
		WindowStart: toTimestamptz(key.Since),
	})
	switch {
	case err == nil && inserted:
		return UpsertInserted, nil
	case err == nil:
		return UpsertImproved, nil
	case isNoRows(err):
		return UpsertKept, nil
	default:
		return "", fmt.Errorf("upsert leaderboard %s/%d: %w", key.Period, key.DurationSec, err)
	}
}

// Standing returns the user's rank. A user without a row is unranked.
func (r *LeaderboardRepository) Standing(ctx context.Context, key BoardKey, userID uuid.UUID) (Standing, error) {
	row, err := r.store.GetLeaderboardRank(ctx, key.params(), toPGUUID(userID))
	if err != nil {
		return Standing{}, fmt.Errorf("leaderboard rank: %w", err)
	}
	return Standing{Rank: int(row.Rank), TotalPlayers: int(row.TotalPlayers)}, nil
}

// Top returns the best rows ordered by score, accuracy, then speed.
func (r *LeaderboardRepository) Top(ctx context.Context, key BoardKey, limit int) ([]Entry, error) {
	rows, err := r.store.ListTopLeaderboard(ctx, key.params(), int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = Entry{
			Rank:       i + 1,
			UserID:     fromPGUUID(row.UserID),
			Score:      int(row.Score),
			Accuracy:   row.Accuracy,
			Speed:      row.Speed,
			Grade:      round.Grade(row.Grade),
			Percentile: int(row.Percentile),
			Stanine:    int(row.Stanine),
			UpdatedAt:  fromTimestamptz(row.UpdatedAt),
		}
	}
	return entries, nil
}

// Scores returns every live score on the board.
func (r *LeaderboardRepository) Scores(ctx context.Context, key BoardKey) ([]int, error) {
	rows, err := r.store.ListLeaderboardScores(ctx, key.params())
	if err != nil {
		return nil, fmt.Errorf("list leaderboard scores: %w", err)
	}
	scores := make([]int, len(rows))
	for i, s := range rows {
		scores[i] = int(s)
	}
	return scores, nil
}

// PercentileStats asks the database where score falls on the board.
func (r *LeaderboardRepository) PercentileStats(ctx context.Context, key BoardKey, score int) (PercentileStats, error) {
	row, err := r.store.GetPercentileStats(ctx, key.params(), int32(score))
	if err != nil {
		return PercentileStats{}, fmt.Errorf("percentile stats: %w", err)
	}
	return PercentileStats{
		Percentile:   int(row.Percentile),
		Stanine:      int(row.Stanine),
		TotalPlayers: int(row.TotalPlayers),
	}, nil
}

// Stats returns rounded summary figures; an empty board yields zeros.
func (r *LeaderboardRepository) Stats(ctx context.Context, key BoardKey) (BoardStats, error) {
	row, err := r.store.GetLeaderboardStats(ctx, key.params())
	if err != nil {
		return BoardStats{}, fmt.Errorf("leaderboard stats: %w", err)
	}
	return BoardStats{
		TotalPlayers: int(row.TotalPlayers),
		AverageScore: int(math.Round(row.AverageScore)),
		TopScore:     int(row.TopScore),
		MedianScore:  int(math.Round(row.MedianScore)),
	}, nil
}
