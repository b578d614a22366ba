package leaderboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/gokatarajesh/wordrush/internal/db/repository"
	"github.com/gokatarajesh/wordrush/internal/events"
	"github.com/gokatarajesh/wordrush/internal/ranking"
	"github.com/gokatarajesh/wordrush/internal/round"
	"github.com/gokatarajesh/wordrush/internal/telemetry"
)

// Ranker computes percentile stats for a score.
type Ranker interface {
	Calculate(ctx context.Context, score int, period round.Period, durationSec int) ranking.Stats
}

// UpdaterOptions configures which boards a result is written to.
type UpdaterOptions struct {
	Periods        []round.Period
	ResponsePeriod round.Period
	Attempts       uint64
	RetryBase      time.Duration
}

// Result is a scored round to record.
type Result struct {
	UserID      uuid.UUID
	RoundID     uuid.UUID
	DurationSec int
	Metrics     round.Metrics
}

// Outcome is what recording produced. Percentiles always holds an entry per
// configured period; Position is nil when the response board failed.
type Outcome struct {
	Percentiles map[round.Period]ranking.Stats
	Position    *Position
}

// Updater writes results to every configured board with keep-the-best
// semantics. Failures are logged and never returned.
type Updater struct {
	svc     *Service
	repo    Repository
	ranker  Ranker
	bus     *events.Bus[events.LeaderboardChanged]
	metrics *telemetry.Metrics
	opts    UpdaterOptions
	logger  zerolog.Logger
}

// NewUpdater builds an Updater. bus may be nil.
func NewUpdater(svc *Service, repo Repository, ranker Ranker, bus *events.Bus[events.LeaderboardChanged], metrics *telemetry.Metrics, opts UpdaterOptions, logger zerolog.Logger) *Updater {
	if len(opts.Periods) == 0 {
		opts.Periods = round.Periods
	}
	if opts.ResponsePeriod == "" {
		opts.ResponsePeriod = round.PeriodDaily
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 50 * time.Millisecond
	}
	if metrics == nil {
		metrics = telemetry.Nop()
	}
	return &Updater{
		svc:     svc,
		repo:    repo,
		ranker:  ranker,
		bus:     bus,
		metrics: metrics,
		opts:    opts,
		logger:  logger.With().Str("component", "leaderboard_updater").Logger(),
	}
}

// ResponsePeriod is the board whose position is reported to the client.
func (u *Updater) ResponsePeriod() round.Period {
	return u.opts.ResponsePeriod
}

// Record computes the percentile on each board, then applies the
// best-result upsert there.
func (u *Updater) Record(ctx context.Context, res Result) Outcome {
	out := Outcome{Percentiles: make(map[round.Period]ranking.Stats, len(u.opts.Periods))}

	for _, period := range u.opts.Periods {
		stats := u.ranker.Calculate(ctx, res.Metrics.TotalScore, period, res.DurationSec)
		out.Percentiles[period] = stats

		key := u.svc.Key(period, res.DurationSec)
		log := u.logger.With().
			Str("period", string(period)).
			Int("duration_sec", res.DurationSec).
			Str("user_id", res.UserID.String()).
			Logger()

		outcome, err := u.upsert(ctx, key, repository.BestResult{
			UserID:     res.UserID,
			RoundID:    res.RoundID,
			Score:      res.Metrics.TotalScore,
			Accuracy:   res.Metrics.Accuracy,
			Speed:      res.Metrics.Speed,
			Grade:      res.Metrics.Grade,
			Percentile: stats.Percentile,
			Stanine:    stats.Stanine,
		})
		if err != nil {
			u.metrics.LeaderboardUpdates.WithLabelValues("error").Inc()
			log.Warn().Err(err).Msg("leaderboard update failed")
			continue
		}
		u.metrics.LeaderboardUpdates.WithLabelValues(string(outcome)).Inc()
		log.Debug().Str("outcome", string(outcome)).Msg("leaderboard updated")

		if outcome != repository.UpsertKept && u.bus != nil {
			u.bus.Publish(events.LeaderboardChanged{
				UserID:      res.UserID,
				RoundID:     res.RoundID,
				Period:      period,
				DurationSec: res.DurationSec,
				Scope:       key.Scope,
				Subject:     key.Subject,
				Score:       res.Metrics.TotalScore,
				Outcome:     string(outcome),
				At:          now(),
			})
		}
	}

	key := u.svc.Key(u.opts.ResponsePeriod, res.DurationSec)
	pos, err := u.svc.Position(ctx, key, res.UserID)
	if err != nil {
		u.logger.Warn().Err(err).Str("period", string(u.opts.ResponsePeriod)).Msg("leaderboard rank lookup failed")
		return out
	}
	out.Position = &pos
	return out
}

func (u *Updater) upsert(ctx context.Context, key repository.BoardKey, best repository.BestResult) (repository.UpsertOutcome, error) {
	var outcome repository.UpsertOutcome
	backoff := retry.WithMaxRetries(u.opts.Attempts-1, retry.NewExponential(u.opts.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		outcome, err = u.repo.UpsertBest(ctx, key, best)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return outcome, err
}
