package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentoven/boardroom/internal/completion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transient() error {
	return &completion.Error{Kind: completion.KindRateLimited, Provider: "test", StatusCode: 429}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	var delays []time.Duration
	p := Policy{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2,
		OnRetry:       func(_ error, _ int, d time.Duration) { delays = append(delays, d) },
	}

	calls := 0
	got, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls <= 3 {
			return "", transient()
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 4, calls)
	require.Len(t, delays, 3)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}, delays)
	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1])
	}
}

func TestDo_ExhaustedReturnsLastError(t *testing.T) {
	p := Policy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 2}

	var last error
	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		last = &completion.Error{Kind: completion.KindUnavailable, Provider: "test", StatusCode: 503}
		return 0, last
	})

	assert.Equal(t, 3, calls)
	assert.Same(t, last, err)
}

func TestDo_FatalErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"quota", &completion.Error{Kind: completion.KindQuotaExhausted, Provider: "test"}},
		{"malformed", &completion.Error{Kind: completion.KindMalformed, Provider: "test"}},
		{"transport", &completion.Error{Kind: completion.KindTransport, Provider: "test"}},
		{"plain", errors.New("parse failure")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}
			calls := 0
			_, err := Do(context.Background(), p, func(context.Context) (int, error) {
				calls++
				return 0, tt.err
			})
			assert.Equal(t, 1, calls)
			assert.Same(t, tt.err, err)
		})
	}
}

func TestDo_QuotaKeepsKind(t *testing.T) {
	p := Policy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, &completion.Error{Kind: completion.KindQuotaExhausted, Provider: "test"}
	})
	assert.True(t, completion.IsQuotaExhausted(err))
}

func TestDo_ZeroRetries(t *testing.T) {
	p := Policy{MaxRetries: 0, InitialDelay: time.Millisecond, BackoffFactor: 2}
	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, transient()
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	p := Policy{MaxRetries: 5, InitialDelay: time.Second, BackoffFactor: 2}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Do(ctx, p, func(context.Context) (int, error) { return 0, transient() })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDo_FreshCounterPerCall(t *testing.T) {
	p := Policy{MaxRetries: 1, InitialDelay: time.Millisecond, BackoffFactor: 2}
	for i := 0; i < 2; i++ {
		calls := 0
		_, err := Do(context.Background(), p, func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, transient()
			}
			return 1, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	}
}
