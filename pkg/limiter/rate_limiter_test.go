package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

func TestSlidingWindowLimiter(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	t.Run("AllowWithinLimit", func(t *testing.T) {
		limiter := NewSlidingWindowLimiter(client, "", 5, time.Minute)

		for i := 0; i < 5; i++ {
			allowed, err := limiter.Allow(ctx, "festive-123")
			assert.NoError(t, err)
			assert.True(t, allowed, "request %d should be allowed", i+1)
		}

		allowed, err := limiter.Allow(ctx, "festive-123")
		assert.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		limiter := NewSlidingWindowLimiter(client, "wishlist_ai:", 1, time.Minute)

		allowed, err := limiter.Allow(ctx, "room-a")
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = limiter.Allow(ctx, "room-b")
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = limiter.Allow(ctx, "room-a")
		require.NoError(t, err)
		assert.False(t, allowed)

		assert.True(t, mr.Exists("wishlist_ai:room-a"))
	})

	t.Run("ConcurrentRequestsCountSeparately", func(t *testing.T) {
		limiter := NewSlidingWindowLimiter(client, "burst:", 10, time.Minute)

		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := limiter.Allow(ctx, "same")
				if err == nil && ok {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, admitted)
	})

	t.Run("RedisDown", func(t *testing.T) {
		broken := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer broken.Close()

		limiter := NewSlidingWindowLimiter(broken, "", 1, time.Minute)
		allowed, err := limiter.Allow(ctx, "x")
		assert.Error(t, err)
		assert.False(t, allowed)
	})
}

func TestTokenBucketLimiter(t *testing.T) {
	limiter := NewTokenBucketLimiter(rate.Every(time.Hour), 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "")
	assert.NoError(t, err)
	assert.False(t, allowed)
}

func TestKeyedTokenBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("PerKeyBuckets", func(t *testing.T) {
		limiter := NewKeyedTokenBucket(rate.Every(time.Hour), 1, time.Minute)

		allowed, _ := limiter.Allow(ctx, "10.0.0.1")
		assert.True(t, allowed)
		allowed, _ = limiter.Allow(ctx, "10.0.0.1")
		assert.False(t, allowed)

		allowed, _ = limiter.Allow(ctx, "10.0.0.2")
		assert.True(t, allowed)
		assert.Equal(t, 2, limiter.Len())
	})

	t.Run("IdleKeysEvicted", func(t *testing.T) {
		limiter := NewKeyedTokenBucket(rate.Inf, 1, 10*time.Millisecond)

		_, _ = limiter.Allow(ctx, "old")
		time.Sleep(25 * time.Millisecond)
		_, _ = limiter.Allow(ctx, "new")

		assert.Equal(t, 1, limiter.Len())
	})
}
