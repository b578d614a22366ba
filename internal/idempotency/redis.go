package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "round:claim:"
	pendingValue  = "pending"
	completedTag  = "done:"
)

// releaseScript deletes the key only while it still holds the pending marker.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisStore keeps claims in Redis so every API instance shares them.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore builds a RedisStore. An empty prefix uses "round:claim:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(id), pendingValue, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim round %s: %w", id, err)
	}
	return ok, nil
}

func (s *RedisStore) Complete(ctx context.Context, id string, result []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(id), completedTag+string(result), ttl).Err(); err != nil {
		return fmt.Errorf("complete round %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (Record, bool, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load round claim %s: %w", id, err)
	}
	if val == pendingValue {
		return Record{Status: StatusPending}, true, nil
	}
	if result, ok := strings.CutPrefix(val, completedTag); ok {
		return Record{Status: StatusCompleted, Result: []byte(result)}, true, nil
	}
	return Record{}, false, fmt.Errorf("load round claim %s: unexpected value", id)
}

func (s *RedisStore) Release(ctx context.Context, id string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(id)}, pendingValue).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release round %s: %w", id, err)
	}
	return nil
}
