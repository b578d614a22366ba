package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(store Store) *Gate {
	return NewGate(store, Options{Wait: 500 * time.Millisecond, PollInterval: 5 * time.Millisecond}, zerolog.Nop())
}

func TestGate_ReplaysCompletedRound(t *testing.T) {
	gate := newGate(NewMemoryStore())
	var calls int32
	fn := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`{"totalScore":883}`), nil
	}

	first, replayed, err := gate.Do(context.Background(), "r1", fn)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := gate.Do(context.Background(), "r1", fn)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls)
}

func TestGate_EmptyIDIsNeverDeduplicated(t *testing.T) {
	gate := newGate(NewMemoryStore())
	var calls int32
	fn := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	for i := 0; i < 3; i++ {
		_, replayed, err := gate.Do(context.Background(), "", fn)
		require.NoError(t, err)
		assert.False(t, replayed)
	}
	assert.Equal(t, int32(3), calls)
}

func TestGate_FailureReleasesClaim(t *testing.T) {
	gate := newGate(NewMemoryStore())
	boom := errors.New("validation failed")

	_, _, err := gate.Do(context.Background(), "r1", func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	out, replayed, err := gate.Do(context.Background(), "r1", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, []byte("ok"), out)
}

func TestGate_ConcurrentDuplicatesRunOnce(t *testing.T) {
	redisStore, _ := newRedisStore(t)
	for name, store := range map[string]Store{"memory": NewMemoryStore(), "redis": redisStore} {
		t.Run(name, func(t *testing.T) {
			gate := newGate(store)
			var calls int32
			release := make(chan struct{})
			fn := func(context.Context) ([]byte, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return []byte("result"), nil
			}

			const n = 8
			var wg sync.WaitGroup
			results := make([][]byte, n)
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], _, errs[i] = gate.Do(context.Background(), "same", fn)
				}(i)
			}
			time.Sleep(20 * time.Millisecond)
			close(release)
			wg.Wait()

			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			for i := 0; i < n; i++ {
				require.NoError(t, errs[i])
				assert.Equal(t, []byte("result"), results[i])
			}
		})
	}
}

func TestGate_InFlightTimesOut(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Claim(context.Background(), "r1", time.Minute)
	require.NoError(t, err)

	gate := NewGate(store, Options{Wait: 30 * time.Millisecond, PollInterval: 5 * time.Millisecond}, zerolog.Nop())
	_, _, err = gate.Do(context.Background(), "r1", func(context.Context) ([]byte, error) {
		t.Fatal("must not run while another request holds the claim")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrInFlight)
}

func TestGate_StoreOutageRunsUnguarded(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()
	gate := NewGate(store, Options{Wait: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond}, zerolog.Nop())

	out, replayed, err := gate.Do(context.Background(), "r1", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, []byte("ok"), out)
}

func TestGate_PendingClaimUsesShortLease(t *testing.T) {
	store, mr := newRedisStore(t)
	gate := NewGate(store, Options{TTL: 24 * time.Hour, Lease: 10 * time.Second, Wait: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond}, zerolog.Nop())
	key := store.key("r1")

	_, _, err := gate.Do(context.Background(), "r1", func(context.Context) ([]byte, error) {
		assert.Equal(t, 10*time.Second, mr.TTL(key))
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, mr.TTL(key))
}

func TestGate_AbandonedClaimExpiresAfterLease(t *testing.T) {
	store, mr := newRedisStore(t)
	opts := Options{TTL: 24 * time.Hour, Lease: 10 * time.Second, Wait: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond}

	// owner that never completes nor releases
	ok, err := store.Claim(context.Background(), "r1", opts.Lease)
	require.NoError(t, err)
	require.True(t, ok)

	gate := NewGate(store, opts, zerolog.Nop())
	_, _, err = gate.Do(context.Background(), "r1", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	assert.ErrorIs(t, err, ErrInFlight)

	mr.FastForward(11 * time.Second)
	out, replayed, err := gate.Do(context.Background(), "r1", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, []byte("ok"), out)
}
