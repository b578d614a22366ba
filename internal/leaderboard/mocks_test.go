package leaderboard

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/gokatarajesh/wordrush/internal/db/repository"
	"github.com/gokatarajesh/wordrush/internal/ranking"
	"github.com/gokatarajesh/wordrush/internal/round"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) UpsertBest(ctx context.Context, key repository.BoardKey, res repository.BestResult) (repository.UpsertOutcome, error) {
	args := m.Called(ctx, key, res)
	return args.Get(0).(repository.UpsertOutcome), args.Error(1)
}

func (m *mockRepo) Standing(ctx context.Context, key repository.BoardKey, userID uuid.UUID) (repository.Standing, error) {
	args := m.Called(ctx, key, userID)
	return args.Get(0).(repository.Standing), args.Error(1)
}

func (m *mockRepo) Top(ctx context.Context, key repository.BoardKey, limit int) ([]repository.Entry, error) {
	args := m.Called(ctx, key, limit)
	entries, _ := args.Get(0).([]repository.Entry)
	return entries, args.Error(1)
}

func (m *mockRepo) Stats(ctx context.Context, key repository.BoardKey) (repository.BoardStats, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(repository.BoardStats), args.Error(1)
}

type stubRanker struct {
	stats ranking.Stats
	calls []round.Period
}

func (s *stubRanker) Calculate(_ context.Context, _ int, period round.Period, _ int) ranking.Stats {
	s.calls = append(s.calls, period)
	return s.stats
}

func testKey(period round.Period, durationSec int) repository.BoardKey {
	return repository.BoardKey{
		Period:      period,
		DurationSec: durationSec,
		Scope:       "global",
		Subject:     "vocabulary",
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleEntries(n int) []repository.Entry {
	entries := make([]repository.Entry, n)
	for i := range entries {
		entries[i] = repository.Entry{
			Rank:     i + 1,
			UserID:   uuid.New(),
			Score:    1000 - i*10,
			Accuracy: 90,
			Speed:    1500,
			Grade:    round.GradeB,
		}
	}
	return entries
}
