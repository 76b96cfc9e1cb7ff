package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRanker = errors.New("ranker unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(config Config) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("ranker", config)
	cb.now = clock.Now
	cb.Reset()
	return cb, clock
}

func fail() error    { return errRanker }
func succeed() error { return nil }

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestNewCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("classifier", Config{})

	assert.Equal(t, "classifier", cb.Name())
	assert.Equal(t, uint32(1), cb.maxRequests)
	assert.Equal(t, time.Minute, cb.interval)
	assert.Equal(t, 30*time.Second, cb.timeout)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerExecution(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulExecution", func(t *testing.T) {
		cb, _ := newTestBreaker(Config{FailureThreshold: 2})

		assert.NoError(t, cb.Execute(ctx, succeed))
		counts := cb.Counts()
		assert.Equal(t, uint32(1), counts.Requests)
		assert.Equal(t, uint32(1), counts.TotalSuccesses)
	})

	t.Run("TripsOnConsecutiveFailures", func(t *testing.T) {
		cb, _ := newTestBreaker(Config{FailureThreshold: 3})

		for i := 0; i < 2; i++ {
			assert.ErrorIs(t, cb.Execute(ctx, fail), errRanker)
		}
		assert.Equal(t, StateClosed, cb.State())

		assert.ErrorIs(t, cb.Execute(ctx, fail), errRanker)
		assert.Equal(t, StateOpen, cb.State())

		called := false
		err := cb.Execute(ctx, func() error {
			called = true
			return nil
		})
		assert.Equal(t, ErrOpenState, err)
		assert.False(t, called)
	})

	t.Run("SuccessResetsStreak", func(t *testing.T) {
		cb, _ := newTestBreaker(Config{FailureThreshold: 2})

		_ = cb.Execute(ctx, fail)
		_ = cb.Execute(ctx, succeed)
		_ = cb.Execute(ctx, fail)
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("HalfOpenRecovery", func(t *testing.T) {
		cb, clock := newTestBreaker(Config{FailureThreshold: 1, Timeout: 10 * time.Second})

		_ = cb.Execute(ctx, fail)
		require.Equal(t, StateOpen, cb.State())

		clock.Advance(11 * time.Second)
		assert.Equal(t, StateHalfOpen, cb.State())

		assert.NoError(t, cb.Execute(ctx, succeed))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("HalfOpenProbeFailureReopens", func(t *testing.T) {
		cb, clock := newTestBreaker(Config{FailureThreshold: 5, Timeout: time.Second})

		for i := 0; i < 5; i++ {
			_ = cb.Execute(ctx, fail)
		}
		clock.Advance(2 * time.Second)
		require.Equal(t, StateHalfOpen, cb.State())

		_ = cb.Execute(ctx, fail)
		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("HalfOpenTooManyRequests", func(t *testing.T) {
		cb, clock := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Second, MaxRequests: 1})

		_ = cb.Execute(ctx, fail)
		clock.Advance(2 * time.Second)

		release := make(chan struct{})
		done := make(chan error)
		go func() {
			done <- cb.Execute(ctx, func() error {
				<-release
				return nil
			})
		}()

		assert.Eventually(t, func() bool { return cb.Counts().Requests == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, ErrTooManyRequests, cb.Execute(ctx, succeed))

		close(release)
		assert.NoError(t, <-done)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cb, _ := newTestBreaker(Config{FailureThreshold: 1})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := cb.Execute(cancelled, succeed)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, uint32(0), cb.Counts().Requests)
	})

	t.Run("PanicRecovery", func(t *testing.T) {
		cb, _ := newTestBreaker(Config{FailureThreshold: 1})

		assert.Panics(t, func() {
			_ = cb.Execute(ctx, func() error { panic("boom") })
		})
		assert.Equal(t, StateOpen, cb.State())
	})
}

func TestOnStateChange(t *testing.T) {
	var transitions []string
	cb, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		Timeout:          time.Second,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), fail)
	clock.Advance(2 * time.Second)
	_ = cb.Execute(context.Background(), succeed)

	assert.Equal(t, []string{
		"ranker:closed->open",
		"ranker:open->half-open",
		"ranker:half-open->closed",
	}, transitions)
}

func TestIsCircuitBreakerError(t *testing.T) {
	assert.True(t, IsCircuitBreakerError(ErrOpenState))
	assert.True(t, IsCircuitBreakerError(ErrTooManyRequests))
	assert.False(t, IsCircuitBreakerError(errRanker))
}

func TestManager(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 1})

	first := m.GetBreaker("translator")
	assert.Same(t, first, m.GetBreaker("translator"))

	err := m.Execute(context.Background(), "theme", fail)
	assert.ErrorIs(t, err, errRanker)

	assert.Equal(t, []string{"theme", "translator"}, m.Names())
	assert.Equal(t, map[string]string{"theme": "open", "translator": "closed"}, m.States())
}
