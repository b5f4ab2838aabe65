// Package gate implements the admission gate guarding outbound model calls.
//
// A Gate combines a continuously refilled token bucket (tokensPerMinute,
// capped at tokensPerMinute) with a cap on calls in flight. Acquire blocks
// until both conditions hold, then consumes one token and takes one slot.
// Waiters sleep until either a Release or the bucket's next whole token,
// so there is no fixed polling interval.
package gate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Gate is safe for concurrent use by any number of consultations.
type Gate struct {
	mu sync.Mutex

	capacity     float64
	refillPerSec float64
	tokens       float64
	lastRefill   time.Time

	maxParallel int
	outstanding int

	// wake is closed and replaced whenever capacity is released.
	wake chan struct{}

	now func() time.Time
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock overrides the wall clock; used by tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New creates a gate starting with a full bucket. The bucket holds at
// least one token, since each Acquire consumes a whole token.
func New(tokensPerMinute float64, maxParallelRequests int, opts ...Option) *Gate {
	if tokensPerMinute < 1 {
		tokensPerMinute = 1
	}
	if maxParallelRequests <= 0 {
		maxParallelRequests = 1
	}
	g := &Gate{
		capacity:     tokensPerMinute,
		refillPerSec: tokensPerMinute / 60,
		tokens:       tokensPerMinute,
		maxParallel:  maxParallelRequests,
		wake:         make(chan struct{}),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.lastRefill = g.now()
	return g
}

// Acquire blocks until a token and a parallel slot are both available, or
// ctx is done. Every successful Acquire must be paired with one Release.
func (g *Gate) Acquire(ctx context.Context) error {
	for {
		g.mu.Lock()
		g.refill()
		if g.tokens >= 1 && g.outstanding < g.maxParallel {
			g.tokens--
			g.outstanding++
			g.mu.Unlock()
			return nil
		}

		wake := g.wake
		var timer *time.Timer
		var tick <-chan time.Time
		if g.tokens < 1 {
			timer = time.NewTimer(g.untilNextToken())
			tick = timer.C
		}
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return fmt.Errorf("gate: acquire: %w", ctx.Err())
		case <-wake:
		case <-tick:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Release frees the slot taken by a successful Acquire.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.outstanding == 0 {
		panic("gate: Release without matching Acquire")
	}
	g.outstanding--
	close(g.wake)
	g.wake = make(chan struct{})
}

// Do runs fn while holding the gate. The slot is released on every exit
// path, including panics.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn()
}

// Stats is a point-in-time view of the gate.
type Stats struct {
	Tokens      float64 `json:"tokens"`
	Capacity    float64 `json:"capacity"`
	Outstanding int     `json:"outstanding"`
	MaxParallel int     `json:"max_parallel"`
}

// Stats refills the bucket and reports its current state.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refill()
	return Stats{
		Tokens:      g.tokens,
		Capacity:    g.capacity,
		Outstanding: g.outstanding,
		MaxParallel: g.maxParallel,
	}
}

// refill credits elapsed wall-clock time. Caller holds mu.
func (g *Gate) refill() {
	now := g.now()
	elapsed := now.Sub(g.lastRefill).Seconds()
	if elapsed > 0 {
		g.tokens = math.Min(g.capacity, g.tokens+elapsed*g.refillPerSec)
	}
	g.lastRefill = now
}

// untilNextToken is how long until the bucket holds one token. Caller holds mu.
func (g *Gate) untilNextToken() time.Duration {
	missing := 1 - g.tokens
	d := time.Duration(missing / g.refillPerSec * float64(time.Second))
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}
