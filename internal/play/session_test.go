package play

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/wordrush/internal/round"
	"github.com/gokatarajesh/wordrush/internal/round/timer"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTicker(time.Duration) timer.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, tk)
	return tk
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *fakeClock) fire() {
	c.mu.Lock()
	tk, now := c.tickers[len(c.tickers)-1], c.now
	c.mu.Unlock()
	select {
	case tk.ch <- now:
	default:
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

var testList = WordList{
	Name: "test",
	Words: []Word{
		{Term: "abundant", Meaning: "풍부한"},
		{Term: "brief", Meaning: "간단한"},
	},
}

func newTestSession(t *testing.T, clock *fakeClock, durationSec int) *Session {
	t.Helper()
	s, err := NewSession(testList, SessionOptions{DurationSec: durationSec, Clock: clock})
	require.NoError(t, err)
	t.Cleanup(s.Finish)
	return s
}

func TestNewSession_Rejects(t *testing.T) {
	_, err := NewSession(testList, SessionOptions{DurationSec: 45})
	assert.Error(t, err)

	_, err = NewSession(WordList{}, SessionOptions{DurationSec: 60})
	assert.ErrorIs(t, err, ErrEmptyWordList)
}

func TestSession_PromptBeforeStart(t *testing.T) {
	s := newTestSession(t, newFakeClock(), 60)

	_, err := s.Prompt()
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = s.Answer("x")
	assert.ErrorIs(t, err, ErrNoPrompt)
}

func TestSession_PlaysAndBuildsSubmission(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	s := newTestSession(t, clock, 60)
	require.NoError(t, s.Start())

	w, err := s.Prompt()
	require.NoError(t, err)
	assert.Equal(t, "abundant", w.Term)
	clock.Advance(2 * time.Second)
	res, err := s.Answer(" 풍부한 ")
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Positive(t, res.Score)
	assert.Equal(t, 1, res.Combo)

	w, err = s.Prompt()
	require.NoError(t, err)
	assert.Equal(t, "brief", w.Term)
	clock.Advance(3 * time.Second)
	res, err = s.Answer("long")
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Zero(t, res.Score)

	// list wraps around
	w, err = s.Prompt()
	require.NoError(t, err)
	assert.Equal(t, "abundant", w.Term)

	clock.Advance(55 * time.Second)
	_, err = s.Answer("풍부한")
	assert.ErrorIs(t, err, ErrRoundOver)
	_, err = s.Prompt()
	assert.ErrorIs(t, err, ErrRoundOver)

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed after expiry")
	}

	sub, err := s.Submission("round-1")
	require.NoError(t, err)
	assert.Equal(t, "round-1", sub.RoundID)
	assert.Equal(t, 60, sub.DurationSec)
	assert.Equal(t, 2, sub.TotalQuestions)
	assert.Equal(t, 1, sub.CorrectAnswers)
	require.Len(t, sub.Items, 2)
	assert.Equal(t, 2000, sub.Items[0].ResponseTimeMs)
	assert.Equal(t, 3000, sub.Items[1].ResponseTimeMs)
	assert.Equal(t, round.FormatInstant(start), sub.StartTime)
	assert.Equal(t, round.FormatInstant(start.Add(60*time.Second)), sub.EndTime)

	metrics, err := round.ComputeMetrics(sub)
	require.NoError(t, err)
	require.NotNil(t, sub.ClientCalculatedScore)
	assert.Equal(t, float64(metrics.TotalScore), *sub.ClientCalculatedScore)
}

func TestSession_ClampsSlowResponses(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, clock, 90)
	require.NoError(t, s.Start())

	_, err := s.Prompt()
	require.NoError(t, err)
	clock.Advance(45 * time.Second)
	_, err = s.Answer("풍부한")
	require.NoError(t, err)

	sub, err := s.Submission("")
	require.NoError(t, err)
	assert.Equal(t, round.MaxResponseTimeMs, sub.Items[0].ResponseTimeMs)
}

func TestSession_FinishCapsEndTime(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	s := newTestSession(t, clock, 60)
	require.NoError(t, s.Start())

	_, err := s.Prompt()
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = s.Answer("풍부한")
	require.NoError(t, err)

	clock.Advance(80 * time.Second)
	s.Finish()

	_, err = s.Prompt()
	assert.ErrorIs(t, err, ErrRoundOver)

	sub, err := s.Submission("r")
	require.NoError(t, err)
	assert.Equal(t, round.FormatInstant(start.Add(60*time.Second)), sub.EndTime)
}

func TestSession_SubmissionNeedsAnswers(t *testing.T) {
	s := newTestSession(t, newFakeClock(), 60)
	require.NoError(t, s.Start())

	_, err := s.Submission("r")
	assert.ErrorIs(t, err, ErrNoAnswers)
}
