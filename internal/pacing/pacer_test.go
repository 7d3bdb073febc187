package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_PacerRange(t *testing.T) {
	assert := assert.New(t)

	suite := []struct {
		minDelay, maxDelay time.Duration
	}{
		{20 * time.Millisecond, 40 * time.Millisecond},
		{50 * time.Millisecond, 120 * time.Millisecond},
		{10 * time.Millisecond, 10 * time.Millisecond},
	}

	for _, tCase := range suite {
		p := NewPacer(tCase.minDelay, tCase.maxDelay)

		for range 1000 {
			delay := p.Next()
			assert.GreaterOrEqual(delay, tCase.minDelay)
			// The randomization may round up by one nanosecond
			assert.LessOrEqual(delay, tCase.maxDelay+time.Nanosecond)
		}
	}
}

func Test_PacerInvertedRange(t *testing.T) {
	p := NewPacer(30*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 30*time.Millisecond, p.Next())
}

func Test_PacerWait(t *testing.T) {
	assert := assert.New(t)

	p := NewPacer(time.Millisecond, 2*time.Millisecond)
	assert.NoError(p.Wait(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	slow := NewPacer(time.Hour, time.Hour)
	assert.ErrorIs(slow.Wait(ctx), context.Canceled)
}
