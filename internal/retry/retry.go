// Package retry wraps remote calls in a bounded, fixed-delay retry loop.
//
// Every error is treated as retriable. Once the attempts run out the caller
// chooses the outcome per call site: Do and Value return the last error,
// Swallow logs it and moves on.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/metrics"

	"github.com/rs/zerolog/log"
)

const (
	DefaultAttempts = 5
	DefaultDelay    = 5 * time.Second
)

// Policy bounds the number of attempts and the pause between them
type Policy struct {
	Attempts int
	Delay    time.Duration

	// Sleep waits between attempts; nil uses a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns five attempts five seconds apart
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

func (p Policy) sleep(ctx context.Context) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, p.Delay)
	}
	if p.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn until it succeeds or the policy is exhausted and returns the last error
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value runs fn until it succeeds or the policy is exhausted
func Value[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	remaining := p.attempts()
	for {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		remaining--
		if remaining <= 0 {
			metrics.RecordError(op, "retries_exhausted")
			return zero, fmt.Errorf("%s: %w", op, err)
		}

		metrics.RecordRetry(op)
		log.Info().
			Err(err).
			Str("op", op).
			Int("remaining", remaining).
			Dur("delay", p.Delay).
			Msg("Remote call failed, retrying")

		if serr := p.sleep(ctx); serr != nil {
			return zero, fmt.Errorf("%s: %w (last error: %v)", op, serr, err)
		}
	}
}

// Swallow runs fn like Do but only logs a final failure.
// It reports whether fn eventually succeeded.
func Swallow(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) bool {
	if err := Do(ctx, p, op, fn); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("Best-effort call dropped after retries")
		return false
	}
	return true
}
