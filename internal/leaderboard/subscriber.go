package leaderboard

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/wordrush/pkg/http/ws"
)

// DefaultChannel is the Pub/Sub channel carrying leaderboard updates.
const DefaultChannel = "lb:updates"

// Broadcaster relays board updates published by any API instance to the
// sockets connected to this one.
type Broadcaster struct {
	redis   redis.UniversalClient
	hub     *ws.Hub
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster creates a broadcaster. A nil client means updates only
// arrive through Deliver.
func NewBroadcaster(client redis.UniversalClient, hub *ws.Hub, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broadcaster{
		redis:   client,
		hub:     hub,
		channel: channel,
		logger:  logger.With().Str("component", "leaderboard_broadcaster").Logger(),
	}
}

// Run relays the update channel until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.hub == nil {
		return nil
	}

	pubsub := b.redis.Subscribe(ctx, b.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info().Str("channel", b.channel).Msg("relaying leaderboard updates")

	updates := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			b.Deliver([]byte(msg.Payload))
		}
	}
}

// Deliver sends one encoded update to the sockets following its board.
func (b *Broadcaster) Deliver(payload []byte) {
	if b.hub == nil {
		return
	}

	var update ws.LeaderboardUpdatePayload
	if err := json.Unmarshal(payload, &update); err != nil {
		b.logger.Warn().Err(err).Msg("dropping undecodable leaderboard update")
		return
	}
	msg := ws.Message{Type: ws.TypeLeaderboardUpdate, Payload: json.RawMessage(payload)}

	n := b.hub.Publish(ws.Topic(update.Period, update.DurationSec), msg)
	b.logger.Debug().
		Str("period", update.Period).
		Int("duration_sec", update.DurationSec).
		Int("sockets", n).
		Msg("leaderboard update relayed")
}
