// Package stealth implements the randomized pacing used between export
// batches. The pauses are a deliberate rate-limiting measure against
// automated-access detection on the source site, not cosmetics, so the
// bounds are named configuration rather than inline timing calls.
package stealth

import (
	"context"
	"math/rand"
	"time"
)

// Policy holds the jitter bounds. Jitter is the short pause used around
// individual page interactions; Rest is the long "human break" between
// export batches.
type Policy struct {
	JitterMin time.Duration
	JitterMax time.Duration
	RestMin   time.Duration
	RestMax   time.Duration
}

// DefaultPolicy mirrors the pacing the source site has tolerated so far.
func DefaultPolicy() Policy {
	return Policy{
		JitterMin: 500 * time.Millisecond,
		JitterMax: 2500 * time.Millisecond,
		RestMin:   5 * time.Second,
		RestMax:   12 * time.Second,
	}
}

// Jitter sleeps for a uniform random duration in [JitterMin, JitterMax],
// returning early with the context's error on cancellation.
func (p Policy) Jitter(ctx context.Context) error {
	return sleep(ctx, uniform(p.JitterMin, p.JitterMax))
}

// Rest sleeps for a uniform random duration in [RestMin, RestMax],
// returning early with the context's error on cancellation.
func (p Policy) Rest(ctx context.Context) error {
	return sleep(ctx, uniform(p.RestMin, p.RestMax))
}

// uniform draws from [min, max]. Degenerate bounds collapse to min.
func uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
