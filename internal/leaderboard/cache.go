package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gokatarajesh/wordrush/internal/db/repository"
)

// Cache keeps the top-N list of each board in Redis with a short TTL.
type Cache struct {
	redis  redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewCache builds a top-N cache. A nil client disables it.
func NewCache(client redis.UniversalClient, ttl time.Duration, prefix string) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if prefix == "" {
		prefix = "lb"
	}
	return &Cache{redis: client, ttl: ttl, prefix: prefix}
}

// Key is the Redis key for a board's top list. The window is part of the
// key so a daily rollover never serves the previous day.
func (c *Cache) Key(key repository.BoardKey) string {
	return c.prefix + ":top:" + key.ID()
}

// Get returns the cached list and whether it was present.
func (c *Cache) Get(ctx context.Context, key repository.BoardKey) ([]repository.Entry, bool, error) {
	raw, err := c.redis.Get(ctx, c.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read leaderboard cache: %w", err)
	}
	var entries []repository.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("decode leaderboard cache: %w", err)
	}
	return entries, true, nil
}

// Set stores the list.
func (c *Cache) Set(ctx context.Context, key repository.BoardKey, entries []repository.Entry) error {
	return c.SetAndPublish(ctx, key, entries, "", nil)
}

// SetAndPublish stores the list and, when channel is set, publishes payload
// in the same MULTI block.
func (c *Cache) SetAndPublish(ctx context.Context, key repository.BoardKey, entries []repository.Entry, channel string, payload []byte) error {
	if entries == nil {
		entries = []repository.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode leaderboard cache: %w", err)
	}

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, c.Key(key), data, c.ttl)
	if channel != "" {
		pipe.Publish(ctx, channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write leaderboard cache: %w", err)
	}
	return nil
}
