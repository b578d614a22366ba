package leaderboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/wordrush/internal/round"
)

// CacheWarmer periodically reloads every board's top list into the cache,
// so window rollovers show up without waiting for a new result.
type CacheWarmer struct {
	svc       *Service
	periods   []round.Period
	durations []int
	interval  time.Duration
	logger    zerolog.Logger
}

func NewCacheWarmer(svc *Service, periods []round.Period, interval time.Duration, logger zerolog.Logger) *CacheWarmer {
	if interval <= 0 {
		interval = time.Minute
	}
	if len(periods) == 0 {
		periods = round.Periods
	}
	return &CacheWarmer{
		svc:       svc,
		periods:   periods,
		durations: round.AllowedDurations,
		interval:  interval,
		logger:    logger.With().Str("component", "leaderboard_cache_warmer").Logger(),
	}
}

// Run blocks until context cancellation.
func (w *CacheWarmer) Run(ctx context.Context) error {
	if w.svc == nil || w.svc.cache == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// run immediately
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *CacheWarmer) tick(ctx context.Context) {
	refreshed := 0
	for _, period := range w.periods {
		for _, duration := range w.durations {
			if _, err := w.svc.Refresh(ctx, w.svc.Key(period, duration)); err != nil {
				w.logger.Warn().Err(err).Str("period", string(period)).Int("duration_sec", duration).Msg("cache refresh failed")
				continue
			}
			refreshed++
		}
	}
	w.logger.Debug().Int("boards", refreshed).Msg("leaderboard cache warmed")
}
