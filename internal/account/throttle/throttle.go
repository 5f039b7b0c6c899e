package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "tally/pkg/domain-errors"
)

const (
	defaultMaxFailures = 5
	defaultWindow      = 15 * time.Minute
)

// LoginThrottle counts failed logins per identifier in Redis and locks the
// identifier out once the window's budget is spent. A nil client disables
// throttling, so deployments without Redis keep working.
type LoginThrottle struct {
	client      *redis.Client
	maxFailures int
	window      time.Duration
}

type Option func(t *LoginThrottle)

func WithLimits(maxFailures int, window time.Duration) Option {
	return func(t *LoginThrottle) {
		t.maxFailures = maxFailures
		t.window = window
	}
}

func New(client *redis.Client, opts ...Option) *LoginThrottle {
	t := &LoginThrottle{
		client:      client,
		maxFailures: defaultMaxFailures,
		window:      defaultWindow,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func key(identifier string) string {
	return "login_failures:" + identifier
}

// Allow returns a coded error when the identifier has exhausted its failure
// budget. Redis being unreachable fails open; login safety should not hinge
// on cache availability.
func (t *LoginThrottle) Allow(ctx context.Context, identifier string) error {
	if t.client == nil {
		return nil
	}
	count, err := t.client.Get(ctx, key(identifier)).Int()
	if err != nil {
		return nil
	}
	if count >= t.maxFailures {
		return dErrors.New(dErrors.CodeUnauthorized, "too many failed login attempts, try again later")
	}
	return nil
}

// RecordFailure bumps the failure counter and refreshes the window.
func (t *LoginThrottle) RecordFailure(ctx context.Context, identifier string) error {
	if t.client == nil {
		return nil
	}
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, key(identifier))
	pipe.Expire(ctx, key(identifier), t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, identifier string) error {
	if t.client == nil {
		return nil
	}
	if err := t.client.Del(ctx, key(identifier)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}
