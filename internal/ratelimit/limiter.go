// Package ratelimit enforces per-key request budgets backed by a shared counter store.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// Named limiters.
const (
	PolicyLogin   = "login"
	PolicyGeneral = "general"
)

// Policy configures one named limiter. A zero Block means exhaustion only lasts
// until the window resets.
type Policy struct {
	Name   string
	Points int
	Window time.Duration
	Block  time.Duration
}

// Usage is what a CounterStore reports after one atomic consume.
type Usage struct {
	// Consumed is the number of points used in the current window.
	Consumed int
	// Blocked is set when the key is inside an extended block.
	Blocked bool
	// ResetIn is the time until the window resets, or until the block ends.
	ResetIn time.Duration
}

// CounterStore performs an atomic increment-and-compare for key under p. While a
// key is blocked the store must not increment it.
type CounterStore interface {
	Consume(ctx context.Context, key string, p Policy) (Usage, error)
}

// Decision is the outcome of a consume.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds; never below one for a
// refused request.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Recorder receives limiter outcomes; implemented by observability.Metrics.
type Recorder interface {
	ObserveRateLimit(limiter string, allowed bool)
}

// Config wires a Limiter.
type Config struct {
	Store    CounterStore
	Policies []Policy
	// Timeout bounds each store round trip; zero relies on the caller's context.
	Timeout  time.Duration
	Logger   *zap.Logger
	Recorder Recorder
}

// Limiter applies named policies against a CounterStore.
type Limiter struct {
	store    CounterStore
	policies map[string]Policy
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
}

// NewLimiter validates policies and builds a limiter.
func NewLimiter(cfg Config) (*Limiter, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ratelimit: store is required")
	}
	policies := make(map[string]Policy, len(cfg.Policies))
	for _, p := range cfg.Policies {
		if p.Name == "" || p.Points <= 0 || p.Window <= 0 || p.Block < 0 {
			return nil, fmt.Errorf("ratelimit: invalid policy %+v", p)
		}
		policies[p.Name] = p
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		store:    cfg.Store,
		policies: policies,
		timeout:  cfg.Timeout,
		logger:   logger,
		recorder: cfg.Recorder,
	}, nil
}

// Consume uses one point of limiter name for key.
func (l *Limiter) Consume(ctx context.Context, name, key string) (Decision, error) {
	policy, ok := l.policies[name]
	if !ok {
		return Decision{}, fmt.Errorf("ratelimit: unknown limiter %q", name)
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	usage, err := l.store.Consume(ctx, key, policy)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{RetryAfter: usage.ResetIn}
	if !usage.Blocked && usage.Consumed <= policy.Points {
		d.Allowed = true
		d.Remaining = policy.Points - usage.Consumed
	}
	if l.recorder != nil {
		l.recorder.ObserveRateLimit(name, d.Allowed)
	}
	return d, nil
}

// Check is the handler-facing form of Consume: nil when allowed, RateLimited when
// refused and StoreUnavailable when the counter store cannot be reached.
func (l *Limiter) Check(ctx context.Context, name, key string) error {
	d, err := l.Consume(ctx, name, key)
	if err != nil {
		l.logger.Warn("rate limiter unavailable", zap.String("limiter", name), zap.Error(err))
		return errorutil.NewStoreUnavailable(err)
	}
	if !d.Allowed {
		l.logger.Info("rate limited",
			zap.String("limiter", name),
			zap.String("key", key),
			zap.Int("retry_after_seconds", d.RetryAfterSeconds()))
		return errorutil.NewRateLimited(d.RetryAfterSeconds())
	}
	return nil
}
