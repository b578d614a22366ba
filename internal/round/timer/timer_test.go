package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, tk)
	return tk
}

func (c *fakeClock) latest() *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[len(c.tickers)-1]
}

type fakeTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func newTestTimer(t *testing.T, clock *fakeClock, opts Options) *Timer {
	t.Helper()
	opts.Clock = clock
	if opts.Duration == 0 {
		opts.Duration = 60 * time.Second
	}
	tm, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(tm.Reset)
	return tm
}

func TestNew_RejectsNonPositiveDuration(t *testing.T) {
	_, err := New(Options{Duration: 0})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestTimer_IdleSnapshot(t *testing.T) {
	tm := newTestTimer(t, newFakeClock(), Options{})
	snap := tm.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 60*time.Second, snap.Remaining)
	assert.Equal(t, time.Duration(0), snap.Elapsed)
}

func TestTimer_RemainingFollowsWallClock(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTimer(t, clock, Options{})
	require.NoError(t, tm.Start())

	clock.Advance(12500 * time.Millisecond)
	snap := tm.Tick()
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, 47500*time.Millisecond, snap.Remaining)
	assert.Equal(t, 12500*time.Millisecond, snap.Elapsed)
	assert.InDelta(t, 12.5/60, snap.Progress(tm.Duration()), 1e-9)
}

func TestTimer_MissedTicksDoNotDrift(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTimer(t, clock, Options{})
	require.NoError(t, tm.Start())

	// no ticks for 30s, then a single tick
	clock.Advance(30 * time.Second)
	assert.Equal(t, 30*time.Second, tm.Tick().Remaining)
}

func TestTimer_PauseDoesNotConsumeTime(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTimer(t, clock, Options{})
	require.NoError(t, tm.Start())

	clock.Advance(10 * time.Second)
	before := tm.Tick().Remaining
	require.NoError(t, tm.Pause())

	clock.Advance(5 * time.Minute)
	paused := tm.Snapshot()
	assert.Equal(t, StatePaused, paused.State)
	assert.Equal(t, before, paused.Remaining)
	// ticks while paused are ignored
	assert.Equal(t, before, tm.Tick().Remaining)

	require.NoError(t, tm.Resume())
	assert.Equal(t, before, tm.Tick().Remaining)

	clock.Advance(5 * time.Second)
	assert.Equal(t, before-5*time.Second, tm.Tick().Remaining)
}

func TestTimer_InvalidTransitions(t *testing.T) {
	tm := newTestTimer(t, newFakeClock(), Options{})

	assert.ErrorIs(t, tm.Pause(), ErrInvalidTransition)
	assert.ErrorIs(t, tm.Resume(), ErrInvalidTransition)

	require.NoError(t, tm.Start())
	assert.ErrorIs(t, tm.Start(), ErrInvalidTransition)
	assert.ErrorIs(t, tm.Resume(), ErrInvalidTransition)

	require.NoError(t, tm.Pause())
	assert.ErrorIs(t, tm.Pause(), ErrInvalidTransition)
	assert.ErrorIs(t, tm.Start(), ErrInvalidTransition)
}

func TestTimer_ExpiresExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	var (
		mu      sync.Mutex
		expires int
		ticks   []Snapshot
	)
	tm := newTestTimer(t, clock, Options{
		OnExpire: func() {
			mu.Lock()
			expires++
			mu.Unlock()
		},
		OnTick: func(s Snapshot) {
			mu.Lock()
			ticks = append(ticks, s)
			mu.Unlock()
		},
	})
	require.NoError(t, tm.Start())

	clock.Advance(61 * time.Second)
	snap := tm.Tick()
	assert.Equal(t, StateExpired, snap.State)
	assert.Equal(t, time.Duration(0), snap.Remaining)
	assert.Equal(t, 60*time.Second, snap.Elapsed)

	clock.Advance(time.Second)
	tm.Tick()
	tm.Tick()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, expires)
	require.Len(t, ticks, 1)
	assert.Equal(t, StateExpired, ticks[0].State)

	select {
	case <-tm.Done():
	default:
		t.Fatal("done channel not closed after expiry")
	}
	assert.ErrorIs(t, tm.Pause(), ErrInvalidTransition)
}

func TestTimer_ResetReturnsToIdleAndStopsLoop(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTimer(t, clock, Options{})
	require.NoError(t, tm.Start())
	ticker := clock.latest()

	clock.Advance(20 * time.Second)
	tm.Reset()

	assert.Equal(t, StateIdle, tm.Snapshot().State)
	assert.Equal(t, 60*time.Second, tm.Snapshot().Remaining)
	assert.Eventually(t, ticker.isStopped, time.Second, 5*time.Millisecond)

	require.NoError(t, tm.Start())
	assert.Equal(t, 60*time.Second, tm.Tick().Remaining)
}

func TestTimer_LoopDrivesExpiry(t *testing.T) {
	clock := newFakeClock()
	expired := make(chan struct{})
	tm := newTestTimer(t, clock, Options{
		Duration: 75 * time.Second,
		OnExpire: func() { close(expired) },
	})
	require.NoError(t, tm.Start())
	ticker := clock.latest()

	clock.Advance(76 * time.Second)
	ticker.ch <- clock.Now()

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("timer did not expire from its tick loop")
	}
	assert.Equal(t, StateExpired, tm.Snapshot().State)
	assert.Eventually(t, ticker.isStopped, time.Second, 5*time.Millisecond)
}

func TestTimer_PauseStopsLoopAndResumeRestartsIt(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTimer(t, clock, Options{})
	require.NoError(t, tm.Start())
	first := clock.latest()

	require.NoError(t, tm.Pause())
	assert.Eventually(t, first.isStopped, time.Second, 5*time.Millisecond)

	require.NoError(t, tm.Resume())
	second := clock.latest()
	assert.NotSame(t, first, second)
	assert.False(t, second.isStopped())
}
