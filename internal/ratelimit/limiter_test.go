package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	loginPolicy   = Policy{Name: PolicyLogin, Points: 5, Window: time.Minute, Block: 15 * time.Minute}
	generalPolicy = Policy{Name: PolicyGeneral, Points: 100, Window: time.Minute}
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingRecorder struct {
	allowed, limited atomic.Int64
}

func (r *countingRecorder) ObserveRateLimit(_ string, allowed bool) {
	if allowed {
		r.allowed.Add(1)
		return
	}
	r.limited.Add(1)
}

func newMemoryLimiter(t *testing.T, clock *manualClock, rec Recorder) *Limiter {
	t.Helper()
	l, err := NewLimiter(Config{
		Store:    NewMemoryStore().WithClock(clock.Now),
		Policies: []Policy{loginPolicy, generalPolicy},
		Recorder: rec,
	})
	require.NoError(t, err)
	return l
}

func TestLimiter_StrictBlocksAfterBudget(t *testing.T) {
	clock := newManualClock()
	rec := &countingRecorder{}
	l := newMemoryLimiter(t, clock, rec)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Consume(ctx, PolicyLogin, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i+1)
		assert.Equal(t, 4-i, d.Remaining)
	}

	d, err := l.Consume(ctx, PolicyLogin, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 900, d.RetryAfterSeconds())

	// Block outlives the window.
	clock.Advance(2 * time.Minute)
	d, err = l.Consume(ctx, PolicyLogin, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 780, d.RetryAfterSeconds())

	// Other keys are unaffected.
	d, err = l.Consume(ctx, PolicyLogin, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	clock.Advance(13 * time.Minute)
	d, err = l.Consume(ctx, PolicyLogin, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)

	assert.EqualValues(t, 7, rec.allowed.Load())
	assert.EqualValues(t, 2, rec.limited.Load())
}

func TestLimiter_LenientRefusesUntilWindowRolls(t *testing.T) {
	clock := newManualClock()
	l := newMemoryLimiter(t, clock, nil)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, l.Check(ctx, PolicyGeneral, "k"))
	}

	clock.Advance(20 * time.Second)
	err := l.Check(ctx, PolicyGeneral, "k")
	require.ErrorIs(t, err, errorutil.ErrRateLimited)

	var de *errorutil.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusTooManyRequests, de.HTTPStatus)
	assert.Equal(t, 40, de.Details["waitTimeInSeconds"])

	clock.Advance(40 * time.Second)
	assert.NoError(t, l.Check(ctx, PolicyGeneral, "k"))
}

func TestLimiter_ConcurrentConsumersNeverExceedBudget(t *testing.T) {
	l := newMemoryLimiter(t, newManualClock(), nil)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Consume(ctx, PolicyLogin, "shared")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, allowed.Load())
}

type failingStore struct{ err error }

func (f failingStore) Consume(context.Context, string, Policy) (Usage, error) {
	return Usage{}, f.err
}

func TestLimiter_StoreFailureIsStoreUnavailable(t *testing.T) {
	l, err := NewLimiter(Config{Store: failingStore{err: errors.New("dial tcp: refused")}, Policies: []Policy{loginPolicy}})
	require.NoError(t, err)

	err = l.Check(context.Background(), PolicyLogin, "k")
	assert.ErrorIs(t, err, errorutil.ErrStoreUnavailable)
}

func TestLimiter_UnknownLimiter(t *testing.T) {
	l := newMemoryLimiter(t, newManualClock(), nil)
	_, err := l.Consume(context.Background(), "missing", "k")
	assert.Error(t, err)
}

func TestNewLimiter_RejectsInvalidPolicies(t *testing.T) {
	_, err := NewLimiter(Config{Store: NewMemoryStore(), Policies: []Policy{{Name: "x", Points: 0, Window: time.Second}}})
	assert.Error(t, err)

	_, err = NewLimiter(Config{Policies: []Policy{loginPolicy}})
	assert.Error(t, err)
}

func TestDecision_RetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 0, Decision{Allowed: true, RetryAfter: time.Minute}.RetryAfterSeconds())
	assert.Equal(t, 2, Decision{RetryAfter: 1100 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 1, Decision{RetryAfter: 0}.RetryAfterSeconds())
}

func TestMemoryStore_JanitorEvictsExpired(t *testing.T) {
	clock := newManualClock()
	store := NewMemoryStore().WithClock(clock.Now)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := store.Consume(ctx, "a", generalPolicy)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	done := make(chan struct{})
	go func() {
		store.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	clock.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().Consume(ctx, "a", loginPolicy)
	assert.ErrorIs(t, err, context.Canceled)
}
