// Package play runs a timed vocabulary round in the terminal.
package play

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gokatarajesh/wordrush/internal/round"
	"github.com/gokatarajesh/wordrush/internal/round/scoring"
	"github.com/gokatarajesh/wordrush/internal/round/timer"
)

var (
	// ErrRoundOver is returned once the timer has expired or the question cap is reached.
	ErrRoundOver = errors.New("round is over")
	// ErrNoPrompt is returned when answering without an open prompt.
	ErrNoPrompt   = errors.New("no open prompt")
	ErrNotStarted = errors.New("round has not started")
	ErrNoAnswers  = errors.New("round has no answers")
)

// SessionOptions configures a Session.
type SessionOptions struct {
	DurationSec int
	Clock       timer.Clock
	Scoring     scoring.ScoringConfig
	// Rand shuffles the word order; nil keeps the list order.
	Rand *rand.Rand
	// OnTick receives timer refreshes. It must not call back into the Session.
	OnTick func(timer.Snapshot)
}

// Session is one round: a timer, the scorer and the answers so far.
type Session struct {
	mu          sync.Mutex
	engine      *scoring.Engine
	timer       *timer.Timer
	clock       timer.Clock
	durationSec int
	words       []Word
	next        int

	current *Word
	askedAt time.Time

	startedAt time.Time
	endedAt   time.Time
	stats     scoring.GameStats
	items     []round.Item
}

// NewSession prepares an idle round over list.
func NewSession(list WordList, opts SessionOptions) (*Session, error) {
	if !round.IsAllowedDuration(opts.DurationSec) {
		return nil, fmt.Errorf("duration must be one of %v seconds", round.AllowedDurations)
	}
	if len(list.Words) == 0 {
		return nil, ErrEmptyWordList
	}
	if opts.Clock == nil {
		opts.Clock = timer.SystemClock()
	}
	if opts.Scoring == (scoring.ScoringConfig{}) {
		opts.Scoring = scoring.DefaultScoringConfig()
	}

	words := append([]Word(nil), list.Words...)
	if opts.Rand != nil {
		opts.Rand.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })
	}

	t, err := timer.New(timer.Options{
		Duration: time.Duration(opts.DurationSec) * time.Second,
		Clock:    opts.Clock,
		OnTick:   opts.OnTick,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		engine:      scoring.NewEngine(opts.Scoring),
		timer:       t,
		clock:       opts.Clock,
		durationSec: opts.DurationSec,
		words:       words,
	}, nil
}

// Start begins the countdown.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.timer.Start(); err != nil {
		return err
	}
	s.startedAt = s.clock.Now()
	return nil
}

// Done is closed when the round timer expires.
func (s *Session) Done() <-chan struct{} {
	return s.timer.Done()
}

// Remaining is the time left in the round.
func (s *Session) Remaining() time.Duration {
	return s.timer.Snapshot().Remaining
}

// Prompt opens the next question. Words repeat once the list is exhausted.
func (s *Session) Prompt() (Word, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startedAt.IsZero() {
		return Word{}, ErrNotStarted
	}
	if s.over() {
		return Word{}, ErrRoundOver
	}
	w := s.words[s.next%len(s.words)]
	s.next++
	s.current = &w
	s.askedAt = s.clock.Now()
	return w, nil
}

// Answer judges text against the open prompt and records the outcome.
func (s *Session) Answer(text string) (scoring.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return scoring.AnswerResult{}, ErrNoPrompt
	}
	snap := s.timer.Tick()
	if snap.State != timer.StateRunning {
		s.current = nil
		return scoring.AnswerResult{}, ErrRoundOver
	}

	responseTime := s.clock.Now().Sub(s.askedAt)
	if responseTime > round.MaxResponseTimeMs*time.Millisecond {
		responseTime = round.MaxResponseTimeMs * time.Millisecond
	}

	res, stats := s.engine.ProcessAnswer(text, s.current.Meaning, responseTime, snap.Remaining, s.stats)
	s.stats = stats
	s.items = append(s.items, round.Item{
		IsCorrect:      res.IsCorrect,
		ResponseTimeMs: int(responseTime.Milliseconds()),
		Score:          float64(res.Score),
	})
	s.current = nil
	return res, nil
}

// Finish stops the timer and fixes the end time. A round that ran out
// ends at exactly its configured length.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endedAt.IsZero() || s.startedAt.IsZero() {
		return
	}
	s.endedAt = s.clock.Now()
	if limit := s.startedAt.Add(s.timer.Duration()); s.endedAt.After(limit) {
		s.endedAt = limit
	}
	s.timer.Reset()
}

// Stats returns the running totals.
func (s *Session) Stats() scoring.GameStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Submission builds the payload for the API. The client score is computed
// with the same metrics the server uses.
func (s *Session) Submission(roundID string) (round.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return round.Submission{}, ErrNoAnswers
	}
	end := s.endedAt
	if end.IsZero() {
		end = s.clock.Now()
		if limit := s.startedAt.Add(s.timer.Duration()); end.After(limit) {
			end = limit
		}
	}

	sub := round.Submission{
		RoundID:        roundID,
		DurationSec:    s.durationSec,
		TotalQuestions: len(s.items),
		CorrectAnswers: s.stats.CorrectAnswers,
		Items:          append([]round.Item(nil), s.items...),
		StartTime:      round.FormatInstant(s.startedAt),
		EndTime:        round.FormatInstant(end),
	}
	metrics, err := round.ComputeMetrics(sub)
	if err != nil {
		return round.Submission{}, err
	}
	score := float64(metrics.TotalScore)
	sub.ClientCalculatedScore = &score
	return sub, nil
}

func (s *Session) over() bool {
	if !s.endedAt.IsZero() || len(s.items) >= round.MaxQuestions {
		return true
	}
	return s.timer.Tick().State == timer.StateExpired
}
