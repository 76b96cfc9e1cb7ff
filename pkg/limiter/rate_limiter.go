package limiter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter rate limiter interface
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// slidingWindowScript trims the window, then admits the request if room remains
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return 1
	end
	return 0
`)

// SlidingWindowLimiter sliding window rate limiter using Redis
type SlidingWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	seq    atomic.Uint64
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *SlidingWindowLimiter {
	if prefix == "" {
		prefix = "rate_limit:"
	}
	return &SlidingWindowLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow checks if the request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixMilli()
	windowStart := now - l.window.Milliseconds()
	// members must be unique or requests landing in the same millisecond collapse
	member := fmt.Sprintf("%d-%d", now, l.seq.Add(1))

	result, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		now,
		windowStart,
		l.limit,
		l.window.Milliseconds(),
		member).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

// TokenBucketLimiter single shared token bucket using golang.org/x/time/rate
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter creates a new token bucket rate limiter
func NewTokenBucketLimiter(r rate.Limit, b int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(r, b),
	}
}

// Allow checks if the request is allowed
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(), nil
}

// KeyedTokenBucket keeps one token bucket per key, e.g. per client IP
type KeyedTokenBucket struct {
	mu       sync.Mutex
	r        rate.Limit
	b        int
	ttl      time.Duration
	buckets  map[string]*bucketEntry
	lastScan time.Time
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedTokenBucket creates per-key token buckets; idle keys are dropped after ttl
func NewKeyedTokenBucket(r rate.Limit, b int, ttl time.Duration) *KeyedTokenBucket {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &KeyedTokenBucket{
		r:       r,
		b:       b,
		ttl:     ttl,
		buckets: make(map[string]*bucketEntry),
	}
}

// Allow checks if the request for key is allowed
func (l *KeyedTokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.buckets[key]
	if !ok {
		entry = &bucketEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.buckets[key] = entry
	}
	entry.lastSeen = now

	if now.Sub(l.lastScan) > l.ttl {
		l.evictIdle(now)
	}

	return entry.limiter.AllowN(now, 1), nil
}

// Len returns the number of tracked keys
func (l *KeyedTokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedTokenBucket) evictIdle(now time.Time) {
	for key, entry := range l.buckets {
		if now.Sub(entry.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
	l.lastScan = now
}
