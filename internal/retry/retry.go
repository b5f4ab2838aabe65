// Package retry wraps one outbound call with bounded exponential backoff.
//
// Only transient completion failures (rate limited, unavailable, timeout)
// are retried. Quota exhaustion and every other error return immediately.
// When retries run out the last underlying error is returned unchanged.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/agentoven/boardroom/internal/completion"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Policy is stateless; every Do call starts with a fresh retry counter.
type Policy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64

	// Classify decides whether err may be retried. Defaults to
	// completion.IsRetryable.
	Classify func(err error) bool
	// OnRetry is called before each backoff delay.
	OnRetry func(err error, attempt int, delay time.Duration)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          factor,
		MaxInterval:         time.Duration(math.MaxInt64),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}

// Do runs op, retrying transient failures per the policy.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	classify := p.Classify
	if classify == nil {
		classify = completion.IsRetryable
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err != nil && !classify(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, delay time.Duration) {
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Transient completion failure, backing off")
		if p.OnRetry != nil {
			p.OnRetry(err, attempt, delay)
		}
	}

	return backoff.RetryNotifyWithData(operation, p.backOff(ctx), notify)
}
