// Package pacing provides the randomized delays between the operations of a role.
package pacing

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Pacer produces delays uniformly spread over [min, max].
//
// It is an exponential backoff with a multiplier of 1, so the base interval
// never grows, randomized around the middle of the range.
type Pacer struct {
	b *backoff.ExponentialBackOff
}

// NewPacer returns a pacer for the range [minDelay, maxDelay].
// If maxDelay is lower than minDelay, the delay is always minDelay.
func NewPacer(minDelay, maxDelay time.Duration) *Pacer {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	mid := (minDelay + maxDelay) / 2

	var factor float64
	if mid > 0 {
		factor = float64(maxDelay-minDelay) / float64(maxDelay+minDelay)
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(mid),
		backoff.WithMaxInterval(maxDelay),
		backoff.WithMultiplier(1),
		backoff.WithRandomizationFactor(factor),
		backoff.WithMaxElapsedTime(0),
	)

	return &Pacer{b: b}
}

// Next returns the next delay.
func (p *Pacer) Next() time.Duration {
	return p.b.NextBackOff()
}

// Wait sleeps for the next delay. It returns early with the context error
// if the context is canceled.
func (p *Pacer) Wait(ctx context.Context) error {
	timer := time.NewTimer(p.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
