package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/wordrush/internal/db/pg"
	"github.com/gokatarajesh/wordrush/internal/round"
)

type mockLeaderboardStore struct {
	mock.Mock
}

func (m *mockLeaderboardStore) UpsertLeaderboardBest(ctx context.Context, arg pg.UpsertLeaderboardBestParams) (bool, error) {
	args := m.Called(ctx, arg)
	return args.Bool(0), args.Error(1)
}

func (m *mockLeaderboardStore) RefreshLeaderboardBest(ctx context.Context, arg pg.RefreshLeaderboardBestParams) (bool, error) {
	args := m.Called(ctx, arg)
	return args.Bool(0), args.Error(1)
}

func (m *mockLeaderboardStore) GetLeaderboardRank(ctx context.Context, board pg.BoardParams, userID pgtype.UUID) (pg.LeaderboardRankRow, error) {
	args := m.Called(ctx, board, userID)
	return args.Get(0).(pg.LeaderboardRankRow), args.Error(1)
}

func (m *mockLeaderboardStore) ListTopLeaderboard(ctx context.Context, board pg.BoardParams, limit int32) ([]pg.Leaderboard, error) {
	args := m.Called(ctx, board, limit)
	return args.Get(0).([]pg.Leaderboard), args.Error(1)
}

func (m *mockLeaderboardStore) ListLeaderboardScores(ctx context.Context, board pg.BoardParams) ([]int32, error) {
	args := m.Called(ctx, board)
	return args.Get(0).([]int32), args.Error(1)
}

func (m *mockLeaderboardStore) GetPercentileStats(ctx context.Context, board pg.BoardParams, score int32) (pg.PercentileStatsRow, error) {
	args := m.Called(ctx, board, score)
	return args.Get(0).(pg.PercentileStatsRow), args.Error(1)
}

func (m *mockLeaderboardStore) GetLeaderboardStats(ctx context.Context, board pg.BoardParams) (pg.LeaderboardStatsRow, error) {
	args := m.Called(ctx, board)
	return args.Get(0).(pg.LeaderboardStatsRow), args.Error(1)
}

var dailyKey = BoardKey{
	Period:      round.PeriodDaily,
	DurationSec: 60,
	Scope:       "global",
	Subject:     "vocabulary",
	Since:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
}

func TestBoardKey_AllTimeHasNoLowerBound(t *testing.T) {
	key := dailyKey
	key.Period = round.PeriodAllTime
	key.Since = time.Time{}

	params := key.params()
	assert.Equal(t, "all_time", params.Period)
	assert.False(t, params.Since.Valid)
	assert.True(t, dailyKey.params().Since.Valid)
}

func TestLeaderboardRepository_UpsertOutcomes(t *testing.T) {
	res := BestResult{UserID: uuidFromByte(1), RoundID: uuidFromByte(2), Score: 900, Accuracy: 80, Speed: 1500, Grade: round.GradeF}

	cases := []struct {
		name     string
		inserted bool
		err      error
		want     UpsertOutcome
	}{
		{"new row", true, nil, UpsertInserted},
		{"better result", false, nil, UpsertImproved},
		{"worse or tied result", false, pgx.ErrNoRows, UpsertKept},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mockLeaderboardStore)
			repo := NewLeaderboardRepository(store)
			store.On("UpsertLeaderboardBest", mock.Anything, mock.MatchedBy(func(p pg.UpsertLeaderboardBestParams) bool {
				return p.Score == 900 && p.Period == "daily" && p.WindowStart.Valid && p.UserID == pgUUIDFromByte(1)
			})).Return(tc.inserted, tc.err)

			got, err := repo.UpsertBest(context.Background(), dailyKey, res)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLeaderboardRepository_UpsertReconcilesTrailingWindows(t *testing.T) {
	weekly := dailyKey
	weekly.Period = round.PeriodWeekly
	res := BestResult{UserID: uuidFromByte(1), RoundID: uuidFromByte(2), Score: 500, Grade: round.GradeF}

	cases := []struct {
		name      string
		upsertErr error
		refreshed bool
		want      UpsertOutcome
	}{
		{"kept row still best in window", pgx.ErrNoRows, false, UpsertKept},
		{"aged-out best rebuilt from rounds", pgx.ErrNoRows, true, UpsertImproved},
		{"improved row left alone", nil, false, UpsertImproved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mockLeaderboardStore)
			repo := NewLeaderboardRepository(store)
			store.On("UpsertLeaderboardBest", mock.Anything, mock.Anything).Return(false, tc.upsertErr)
			store.On("RefreshLeaderboardBest", mock.Anything, pg.RefreshLeaderboardBestParams{
				UserID:      pgUUIDFromByte(1),
				Period:      "weekly",
				DurationSec: 60,
				Scope:       "global",
				Subject:     "vocabulary",
				WindowStart: weekly.params().Since,
			}).Return(tc.refreshed, nil).Once()

			got, err := repo.UpsertBest(context.Background(), weekly, res)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			store.AssertExpectations(t)
		})
	}
}

func TestLeaderboardRepository_DailyUpsertSkipsRefresh(t *testing.T) {
	store := new(mockLeaderboardStore)
	repo := NewLeaderboardRepository(store)
	store.On("UpsertLeaderboardBest", mock.Anything, mock.Anything).Return(false, pgx.ErrNoRows)

	_, err := repo.UpsertBest(context.Background(), dailyKey, BestResult{})
	require.NoError(t, err)
	store.AssertNotCalled(t, "RefreshLeaderboardBest", mock.Anything, mock.Anything)
}

func TestLeaderboardRepository_UpsertFailure(t *testing.T) {
	store := new(mockLeaderboardStore)
	repo := NewLeaderboardRepository(store)
	boom := errors.New("deadlock detected")
	store.On("UpsertLeaderboardBest", mock.Anything, mock.Anything).Return(false, boom)

	_, err := repo.UpsertBest(context.Background(), dailyKey, BestResult{})
	assert.ErrorIs(t, err, boom)
}

func TestLeaderboardRepository_Standing(t *testing.T) {
	store := new(mockLeaderboardStore)
	repo := NewLeaderboardRepository(store)
	store.On("GetLeaderboardRank", mock.Anything, dailyKey.params(), pgUUIDFromByte(3)).
		Return(pg.LeaderboardRankRow{Rank: 0, TotalPlayers: 12}, nil)

	got, err := repo.Standing(context.Background(), dailyKey, uuidFromByte(3))

	require.NoError(t, err)
	assert.Equal(t, Standing{Rank: 0, TotalPlayers: 12}, got)
}

func TestLeaderboardRepository_TopAssignsRanks(t *testing.T) {
	store := new(mockLeaderboardStore)
	repo := NewLeaderboardRepository(store)
	store.On("ListTopLeaderboard", mock.Anything, dailyKey.params(), int32(2)).Return([]pg.Leaderboard{
		{UserID: pgUUIDFromByte(1), Score: 1200, Grade: "B"},
		{UserID: pgUUIDFromByte(2), Score: 1100, Grade: "C"},
	}, nil)

	got, err := repo.Top(context.Background(), dailyKey, 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 2, got[1].Rank)
	assert.Equal(t, uuidFromByte(2), got[1].UserID)
	assert.Equal(t, round.GradeC, got[1].Grade)
}

func TestLeaderboardRepository_ScoresAndStats(t *testing.T) {
	store := new(mockLeaderboardStore)
	repo := NewLeaderboardRepository(store)
	store.On("ListLeaderboardScores", mock.Anything, dailyKey.params()).Return([]int32{500, 700}, nil)
	store.On("GetLeaderboardStats", mock.Anything, dailyKey.params()).
		Return(pg.LeaderboardStatsRow{TotalPlayers: 2, AverageScore: 600.5, TopScore: 700, MedianScore: 600.5}, nil)
	store.On("GetPercentileStats", mock.Anything, dailyKey.params(), int32(650)).
		Return(pg.PercentileStatsRow{Percentile: 50, Stanine: 5, TotalPlayers: 2}, nil)

	scores, err := repo.Scores(context.Background(), dailyKey)
	require.NoError(t, err)
	assert.Equal(t, []int{500, 700}, scores)

	stats, err := repo.Stats(context.Background(), dailyKey)
	require.NoError(t, err)
	assert.Equal(t, BoardStats{TotalPlayers: 2, AverageScore: 601, TopScore: 700, MedianScore: 601}, stats)

	pct, err := repo.PercentileStats(context.Background(), dailyKey, 650)
	require.NoError(t, err)
	assert.Equal(t, PercentileStats{Percentile: 50, Stanine: 5, TotalPlayers: 2}, pct)
}

func TestBoardKey_IDIsStableWithinWindow(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)
	key := func(p round.Period, at time.Time) BoardKey {
		return BoardKey{Period: p, DurationSec: 60, Scope: "global", Subject: "vocabulary", Since: p.WindowStart(at, time.UTC)}
	}

	for _, p := range round.Periods {
		assert.Equal(t, key(p, now).ID(), key(p, now.Add(2*time.Second)).ID(), p)
	}

	assert.NotEqual(t, key(round.PeriodWeekly, now).ID(), key(round.PeriodWeekly, now.Add(time.Hour)).ID())
	assert.NotEqual(t, key(round.PeriodDaily, now).ID(), key(round.PeriodDaily, now.Add(12*time.Hour)).ID())
	assert.Equal(t, "all", key(round.PeriodAllTime, now).Window())
	assert.Equal(t, "daily:60:global:vocabulary:1715299200", key(round.PeriodDaily, now).ID())
}
