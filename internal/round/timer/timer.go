package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle position of a round timer.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateExpired State = "expired"
)

// DefaultInterval is the display refresh cadence.
const DefaultInterval = 100 * time.Millisecond

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid timer transition")
	ErrInvalidDuration   = errors.New("timer duration must be positive")
)

// Snapshot is a point-in-time view of the timer.
type Snapshot struct {
	State     State
	Remaining time.Duration
	Elapsed   time.Duration
}

// Progress is the elapsed share of the round in [0,1].
func (s Snapshot) Progress(total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(s.Elapsed) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}

// Options configures a Timer.
type Options struct {
	Duration time.Duration
	Interval time.Duration
	Clock    Clock
	// OnTick receives every refreshed snapshot while running.
	OnTick func(Snapshot)
	// OnExpire fires exactly once when remaining time reaches zero.
	OnExpire func()
}

// Timer is a pausable countdown. Remaining time is always derived from the
// start instant and the accumulated pause time, never by decrementing.
type Timer struct {
	mu       sync.Mutex
	duration time.Duration
	interval time.Duration
	clock    Clock
	onTick   func(Snapshot)
	onExpire func()

	state       State
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration

	gen  uint64
	stop chan struct{}
	done chan struct{}
}

// New constructs an idle timer.
func New(opts Options) (*Timer, error) {
	if opts.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	return &Timer{
		duration: opts.Duration,
		interval: opts.Interval,
		clock:    opts.Clock,
		onTick:   opts.OnTick,
		onExpire: opts.OnExpire,
		state:    StateIdle,
		done:     make(chan struct{}),
	}, nil
}

// Duration returns the configured round length.
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Start begins the countdown. Only valid from idle.
func (t *Timer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateIdle {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, t.state)
	}
	t.startedAt = t.clock.Now()
	t.pausedAt = time.Time{}
	t.pausedTotal = 0
	t.state = StateRunning
	t.startLoopLocked()
	return nil
}

// Pause freezes the remaining time. Only valid while running.
func (t *Timer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, t.state)
	}
	t.pausedAt = t.clock.Now()
	t.state = StatePaused
	t.stopLoopLocked()
	return nil
}

// Resume continues after a pause without charging the paused interval.
func (t *Timer) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, t.state)
	}
	t.pausedTotal += t.clock.Now().Sub(t.pausedAt)
	t.pausedAt = time.Time{}
	t.state = StateRunning
	t.startLoopLocked()
	return nil
}

// Reset returns to idle from any state and stops the periodic tick.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLoopLocked()
	t.state = StateIdle
	t.startedAt = time.Time{}
	t.pausedAt = time.Time{}
	t.pausedTotal = 0
	select {
	case <-t.done:
		t.done = make(chan struct{})
	default:
	}
}

// Done is closed when the timer expires.
func (t *Timer) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Snapshot returns the current view without advancing state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Tick recomputes remaining time, expiring the timer when it reaches zero.
// Ticks outside the running state are no-ops.
func (t *Timer) Tick() Snapshot {
	return t.tick(0)
}

func (t *Timer) tick(gen uint64) Snapshot {
	t.mu.Lock()
	if t.state != StateRunning || (gen != 0 && gen != t.gen) {
		snap := t.snapshotLocked()
		t.mu.Unlock()
		return snap
	}

	snap := t.snapshotLocked()
	expired := snap.Remaining <= 0
	if expired {
		t.state = StateExpired
		snap.State = StateExpired
		t.stopLoopLocked()
		close(t.done)
	}
	onTick, onExpire := t.onTick, t.onExpire
	t.mu.Unlock()

	if onTick != nil {
		onTick(snap)
	}
	if expired && onExpire != nil {
		onExpire()
	}
	return snap
}

func (t *Timer) snapshotLocked() Snapshot {
	var elapsed time.Duration
	switch t.state {
	case StateIdle:
		return Snapshot{State: StateIdle, Remaining: t.duration}
	case StatePaused:
		elapsed = t.pausedAt.Sub(t.startedAt) - t.pausedTotal
	default:
		elapsed = t.clock.Now().Sub(t.startedAt) - t.pausedTotal
	}
	elapsed = min(max(elapsed, 0), t.duration)
	return Snapshot{
		State:     t.state,
		Remaining: t.duration - elapsed,
		Elapsed:   elapsed,
	}
}

func (t *Timer) startLoopLocked() {
	t.gen++
	stop := make(chan struct{})
	t.stop = stop
	ticker := t.clock.NewTicker(t.interval)
	go t.loop(t.gen, ticker, stop)
}

func (t *Timer) stopLoopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Timer) loop(gen uint64, ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if snap := t.tick(gen); snap.State != StateRunning {
				return
			}
		}
	}
}
