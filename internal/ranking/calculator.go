// Package ranking places a score within its leaderboard population.
package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gokatarajesh/wordrush/internal/db/repository"
	"github.com/gokatarajesh/wordrush/internal/round"
	"github.com/gokatarajesh/wordrush/internal/telemetry"
)

// Where a Stats value came from.
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
	SourceDefault  = "default"
)

// Source supplies the population. PercentileStats is the aggregate path,
// Scores the raw list used when the aggregate cannot be trusted.
type Source interface {
	PercentileStats(ctx context.Context, key repository.BoardKey, score int) (repository.PercentileStats, error)
	Scores(ctx context.Context, key repository.BoardKey) ([]int, error)
}

// Stats is a score's standing in a population.
type Stats struct {
	Percentile   int    `json:"percentile"`
	Stanine      int    `json:"stanine"`
	TotalPlayers int    `json:"totalPlayers"`
	Source       string `json:"-"`
}

// Neutral is returned when no population is available.
func Neutral() Stats {
	return Stats{Percentile: 0, Stanine: 1, TotalPlayers: 0, Source: SourceDefault}
}

// Options configures a Calculator.
type Options struct {
	Scope        string
	Subject      string
	Location     *time.Location
	QueryTimeout time.Duration
	Now          func() time.Time
}

// Calculator computes percentile and stanine with a fallback chain. It
// never returns an error: ranking must not block a submission.
type Calculator struct {
	source  Source
	opts    Options
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	group   singleflight.Group
}

// NewCalculator builds a Calculator.
func NewCalculator(source Source, opts Options, metrics *telemetry.Metrics, logger zerolog.Logger) *Calculator {
	if opts.Scope == "" {
		opts.Scope = "global"
	}
	if opts.Subject == "" {
		opts.Subject = "vocabulary"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if metrics == nil {
		metrics = telemetry.Nop()
	}
	return &Calculator{
		source:  source,
		opts:    opts,
		metrics: metrics,
		logger:  logger.With().Str("component", "ranking").Logger(),
	}
}

// Key returns the board for a period and duration at the current time.
func (c *Calculator) Key(period round.Period, durationSec int) repository.BoardKey {
	return repository.BoardKey{
		Period:      period,
		DurationSec: durationSec,
		Scope:       c.opts.Scope,
		Subject:     c.opts.Subject,
		Since:       period.WindowStart(c.opts.Now(), c.opts.Location),
	}
}

// Calculate places score on the (period, durationSec) board.
func (c *Calculator) Calculate(ctx context.Context, score int, period round.Period, durationSec int) Stats {
	key := c.Key(period, durationSec)
	log := c.logger.With().Str("period", string(period)).Int("duration_sec", durationSec).Logger()

	stats, err := c.primary(ctx, key, score)
	if err == nil {
		return c.count(stats)
	}
	log.Warn().Err(err).Msg("percentile primary path failed, using fallback")

	stats, err = c.fallback(ctx, key, score)
	if err != nil {
		log.Warn().Err(err).Msg("percentile fallback failed, using neutral default")
		return c.count(Neutral())
	}
	return c.count(stats)
}

func (c *Calculator) primary(ctx context.Context, key repository.BoardKey, score int) (Stats, error) {
	qctx, cancel := context.WithTimeout(ctx, c.opts.QueryTimeout)
	defer cancel()

	res, err := c.source.PercentileStats(qctx, key, score)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Percentile:   res.Percentile,
		Stanine:      res.Stanine,
		TotalPlayers: res.TotalPlayers,
		Source:       SourcePrimary,
	}
	if err := check(stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// check applies the same invariants the local computation guarantees.
func check(s Stats) error {
	switch {
	case s.TotalPlayers <= 0:
		return fmt.Errorf("primary ranking: empty population")
	case s.Percentile < 0 || s.Percentile > 100:
		return fmt.Errorf("primary ranking: percentile %d out of range", s.Percentile)
	case s.Stanine < 1 || s.Stanine > 9:
		return fmt.Errorf("primary ranking: stanine %d out of range", s.Stanine)
	case s.Stanine != round.Stanine(s.Percentile):
		return fmt.Errorf("primary ranking: stanine %d does not match percentile %d", s.Stanine, s.Percentile)
	}
	return nil
}

func (c *Calculator) fallback(ctx context.Context, key repository.BoardKey, score int) (Stats, error) {
	v, err, _ := c.group.Do(key.ID(), func() (interface{}, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.QueryTimeout)
		defer cancel()
		return c.source.Scores(qctx, key)
	})
	if err != nil {
		return Stats{}, fmt.Errorf("fetch scores: %w", err)
	}

	scores := v.([]int)
	if len(scores) == 0 {
		return Stats{}, fmt.Errorf("fetch scores: empty population")
	}
	p := round.Percentile(score, scores)
	return Stats{
		Percentile:   p,
		Stanine:      round.Stanine(p),
		TotalPlayers: len(scores),
		Source:       SourceFallback,
	}, nil
}

func (c *Calculator) count(s Stats) Stats {
	c.metrics.RankingSource.WithLabelValues(s.Source).Inc()
	return s
}
