// Package retry runs provider calls under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/logger"
	"github.com/kailas-cloud/legalrag/internal/metrics"
)

// Policy defaults.
const (
	DefaultAttempts  = 3
	DefaultBaseDelay = time.Second
	DefaultMaxDelay  = 60 * time.Second
)

// Policy bounds retries of a transient operation.
// Delays double from BaseDelay and are capped at MaxDelay.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy returns 3 attempts with a 1s base delay capped at 60s.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	return p
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx) //nolint:gosec // attempts > 0
}

// Retryable reports whether err is worth another attempt.
// Validation failures, provider rejections and context cancellation are final.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrProviderRejected):
		return false
	}
	return true
}

// Do runs fn until it succeeds, fails permanently or the policy is spent.
// Failures are reported as *domain.ProviderError for op.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	log := logger.FromContext(ctx)

	attempts := 0
	var lastErr error
	res, err := backoff.RetryNotifyWithData(
		func() (T, error) {
			attempts++
			v, err := fn(ctx)
			if err != nil {
				lastErr = err
				if !Retryable(err) {
					return v, backoff.Permanent(err)
				}
			}
			return v, err
		},
		p.backOff(ctx),
		func(err error, wait time.Duration) {
			metrics.ProviderRetriesTotal.WithLabelValues(op).Inc()
			log.Warn("provider call failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempts),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	)
	if err == nil {
		return res, nil
	}

	var zero T
	if lastErr == nil {
		lastErr = err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(lastErr, ctxErr) {
		lastErr = errors.Join(lastErr, ctxErr)
	}
	if !Retryable(lastErr) && attempts < p.Attempts {
		if errors.Is(lastErr, domain.ErrValidation) {
			return zero, lastErr
		}
		return zero, &domain.ProviderError{Op: op, Attempts: attempts, Err: lastErr}
	}
	return zero, &domain.ProviderError{Op: op, Attempts: attempts, RetryExhausted: true, Err: lastErr}
}
