package ranking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/gokatarajesh/wordrush/internal/db/repository"
	"github.com/gokatarajesh/wordrush/internal/round"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) PercentileStats(ctx context.Context, key repository.BoardKey, score int) (repository.PercentileStats, error) {
	args := m.Called(ctx, key, score)
	return args.Get(0).(repository.PercentileStats), args.Error(1)
}

func (m *mockSource) Scores(ctx context.Context, key repository.BoardKey) ([]int, error) {
	args := m.Called(ctx, key)
	scores, _ := args.Get(0).([]int)
	return scores, args.Error(1)
}

var fixedNow = time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

func newCalculator(src Source) *Calculator {
	return NewCalculator(src, Options{Now: func() time.Time { return fixedNow }}, nil, zerolog.Nop())
}

func TestCalculate_PrimaryPath(t *testing.T) {
	src := new(mockSource)
	src.On("PercentileStats", mock.Anything, mock.Anything, 900).
		Return(repository.PercentileStats{Percentile: 80, Stanine: 7, TotalPlayers: 25}, nil)

	got := newCalculator(src).Calculate(context.Background(), 900, round.PeriodDaily, 60)

	assert.Equal(t, Stats{Percentile: 80, Stanine: 7, TotalPlayers: 25, Source: SourcePrimary}, got)
	src.AssertNotCalled(t, "Scores", mock.Anything, mock.Anything)
}

func TestCalculate_FallsBackWhenPrimaryFails(t *testing.T) {
	src := new(mockSource)
	src.On("PercentileStats", mock.Anything, mock.Anything, 700).
		Return(repository.PercentileStats{}, errors.New("function does not exist"))
	src.On("Scores", mock.Anything, mock.Anything).Return([]int{400, 600, 800, 1000}, nil)

	got := newCalculator(src).Calculate(context.Background(), 700, round.PeriodWeekly, 75)

	assert.Equal(t, Stats{Percentile: 50, Stanine: 5, TotalPlayers: 4, Source: SourceFallback}, got)
}

func TestCalculate_NeutralWhenFallbackIsEmpty(t *testing.T) {
	src := new(mockSource)
	src.On("PercentileStats", mock.Anything, mock.Anything, mock.Anything).
		Return(repository.PercentileStats{}, errors.New("timeout"))
	src.On("Scores", mock.Anything, mock.Anything).Return([]int{}, nil)

	got := newCalculator(src).Calculate(context.Background(), 700, round.PeriodDaily, 60)

	assert.Equal(t, Stats{Percentile: 0, Stanine: 1, TotalPlayers: 0, Source: SourceDefault}, got)
}

func TestCalculate_NeutralWhenFallbackFails(t *testing.T) {
	src := new(mockSource)
	src.On("PercentileStats", mock.Anything, mock.Anything, mock.Anything).
		Return(repository.PercentileStats{}, errors.New("timeout"))
	src.On("Scores", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	got := newCalculator(src).Calculate(context.Background(), 700, round.PeriodDaily, 60)

	assert.Equal(t, Neutral(), got)
}

func TestCalculate_RejectsInconsistentPrimaryResponse(t *testing.T) {
	cases := []struct {
		name string
		resp repository.PercentileStats
	}{
		{"stanine disagrees with percentile", repository.PercentileStats{Percentile: 80, Stanine: 9, TotalPlayers: 10}},
		{"percentile out of range", repository.PercentileStats{Percentile: 140, Stanine: 9, TotalPlayers: 10}},
		{"stanine out of range", repository.PercentileStats{Percentile: 0, Stanine: 0, TotalPlayers: 10}},
		{"empty population", repository.PercentileStats{Percentile: 0, Stanine: 1, TotalPlayers: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := new(mockSource)
			src.On("PercentileStats", mock.Anything, mock.Anything, 500).Return(tc.resp, nil)
			src.On("Scores", mock.Anything, mock.Anything).Return([]int{100, 900}, nil)

			got := newCalculator(src).Calculate(context.Background(), 500, round.PeriodMonthly, 90)

			assert.Equal(t, SourceFallback, got.Source)
			assert.Equal(t, 50, got.Percentile)
			assert.Equal(t, 2, got.TotalPlayers)
		})
	}
}

func TestKey_UsesPeriodWindow(t *testing.T) {
	c := newCalculator(new(mockSource))

	daily := c.Key(round.PeriodDaily, 60)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), daily.Since)
	assert.Equal(t, "global", daily.Scope)
	assert.Equal(t, "vocabulary", daily.Subject)

	assert.True(t, c.Key(round.PeriodAllTime, 60).Since.IsZero())
}

type gatedSource struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSource) PercentileStats(context.Context, repository.BoardKey, int) (repository.PercentileStats, error) {
	return repository.PercentileStats{}, errors.New("unavailable")
}

func (g *gatedSource) Scores(context.Context, repository.BoardKey) ([]int, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
	}
	<-g.release
	return []int{100, 900}, nil
}

func TestCalculate_CoalescesTrailingWindowFallbacks(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	var mu sync.Mutex
	now := fixedNow
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c := NewCalculator(src, Options{Now: clock}, nil, zerolog.Nop())

	var wg sync.WaitGroup
	results := make([]Stats, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = c.Calculate(context.Background(), 500, round.PeriodWeekly, 60)
	}()
	<-src.entered

	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = c.Calculate(context.Background(), 500, round.PeriodWeekly, 60)
	}()
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, got := range results {
		assert.Equal(t, SourceFallback, got.Source)
		assert.Equal(t, 2, got.TotalPlayers)
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Top 5%", PercentileLabel(97))
	assert.Equal(t, "Top 50%", PercentileLabel(50))
	assert.Equal(t, "Top 100%", PercentileLabel(3))
	assert.Equal(t, "Outstanding", StanineLabel(9))
	assert.Equal(t, "Average", StanineLabel(5))
	assert.Equal(t, "Unrated", StanineLabel(0))
}
