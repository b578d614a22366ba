package leaderboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/wordrush/internal/events"
	ws "github.com/gokatarajesh/wordrush/pkg/http/ws"
)

// Publisher turns LeaderboardChanged events into a cache refresh plus a
// Pub/Sub update. Without a cache it hands the update straight to the
// local broadcaster.
type Publisher struct {
	svc     *Service
	cache   *Cache
	local   *Broadcaster
	channel string
	topN    int
	timeout time.Duration
	logger  zerolog.Logger
}

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	Channel string
	TopN    int
	Timeout time.Duration
}

// NewPublisher wires the refresh path. cache and local may each be nil.
func NewPublisher(svc *Service, cache *Cache, local *Broadcaster, opts PublisherOptions, logger zerolog.Logger) *Publisher {
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &Publisher{
		svc:     svc,
		cache:   cache,
		local:   local,
		channel: opts.Channel,
		topN:    opts.TopN,
		timeout: opts.Timeout,
		logger:  logger.With().Str("component", "leaderboard_publisher").Logger(),
	}
}

// Run consumes sub until it is closed or ctx ends.
func (p *Publisher) Run(ctx context.Context, sub *events.Subscription[events.LeaderboardChanged]) error {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := p.Handle(ctx, evt); err != nil {
				p.logger.Warn().Err(err).Str("period", string(evt.Period)).Msg("leaderboard publish failed")
			}
		}
	}
}

// Handle refreshes one board and announces its new top entries.
func (p *Publisher) Handle(ctx context.Context, evt events.LeaderboardChanged) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	key := p.svc.WithScope(evt.Period, evt.DurationSec, evt.Scope)
	key.Subject = evt.Subject
	entries, err := p.svc.repo.Top(ctx, key, p.svc.topN)
	if err != nil {
		return err
	}

	top := entries
	if len(top) > p.topN {
		top = top[:p.topN]
	}
	payload, err := json.Marshal(ws.LeaderboardUpdatePayload{
		Period:      string(key.Period),
		DurationSec: key.DurationSec,
		Scope:       key.Scope,
		Subject:     key.Subject,
		Top:         toWSEntries(top),
		RoundID:     evt.RoundID.String(),
		UpdatedAt:   evt.At.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if p.cache != nil {
		return p.cache.SetAndPublish(ctx, key, entries, p.channel, payload)
	}
	if p.local != nil {
		p.local.Deliver(payload)
	}
	return nil
}
