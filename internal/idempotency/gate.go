package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Options tunes a Gate.
type Options struct {
	// TTL bounds how long a completed result is replayed.
	TTL time.Duration
	// Lease bounds how long a pending claim survives an owner that never
	// completes or releases it.
	Lease time.Duration
	// Wait bounds how long a duplicate waits for an in-flight original.
	Wait time.Duration
	// PollInterval is the delay between checks while waiting.
	PollInterval time.Duration
}

// Gate runs work at most once per round id.
type Gate struct {
	store  Store
	opts   Options
	logger zerolog.Logger
}

// NewGate builds a Gate over store.
func NewGate(store Store, opts Options, logger zerolog.Logger) *Gate {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Wait <= 0 {
		opts.Wait = 2 * time.Second
	}
	if opts.Lease <= 0 {
		opts.Lease = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	return &Gate{
		store:  store,
		opts:   opts,
		logger: logger.With().Str("component", "idempotency").Logger(),
	}
}

var errPending = errors.New("claim pending")

// Do runs fn unless id was already processed, in which case the stored
// result is returned with replayed set. An empty id is never deduplicated.
// A failed fn releases the claim so the round can be resubmitted.
// If the store is unavailable fn runs unguarded; the rounds primary key
// still rejects a second insert.
func (g *Gate) Do(ctx context.Context, id string, fn func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if id == "" {
		out, err := fn(ctx)
		return out, false, err
	}

	log := g.logger.With().Str("round_id", id).Logger()

	owned, cached, err := g.acquire(ctx, id)
	switch {
	case err != nil && errors.Is(err, errPending):
		return nil, false, ErrInFlight
	case err != nil && ctx.Err() != nil:
		return nil, false, ctx.Err()
	case err != nil:
		log.Warn().Err(err).Msg("idempotency store unavailable, continuing without claim")
		out, ferr := fn(ctx)
		return out, false, ferr
	case !owned:
		log.Debug().Msg("replaying completed round")
		return cached, true, nil
	}

	out, err := fn(ctx)
	if err != nil {
		if rerr := g.store.Release(context.WithoutCancel(ctx), id); rerr != nil {
			log.Warn().Err(rerr).Msg("failed to release round claim")
		}
		return nil, false, err
	}
	if cerr := g.store.Complete(context.WithoutCancel(ctx), id, out, g.opts.TTL); cerr != nil {
		log.Warn().Err(cerr).Msg("failed to record completed round")
	}
	return out, false, nil
}

// acquire claims id, or waits for a concurrent owner to complete it.
func (g *Gate) acquire(ctx context.Context, id string) (bool, []byte, error) {
	var (
		owned  bool
		cached []byte
	)
	backoff := retry.WithMaxDuration(g.opts.Wait, retry.NewConstant(g.opts.PollInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := g.store.Claim(ctx, id, g.opts.Lease)
		if err != nil {
			return err
		}
		if ok {
			owned = true
			return nil
		}

		rec, found, err := g.store.Load(ctx, id)
		if err != nil {
			return err
		}
		if found && rec.Status == StatusCompleted {
			cached = rec.Result
			return nil
		}
		return retry.RetryableError(errPending)
	})
	return owned, cached, err
}
