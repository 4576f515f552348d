// internal/client/backoff_test.go
package client

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffMonotonicAndCapped(t *testing.T) {
	b := Backoff{Base: 500 * time.Millisecond, Max: 30 * time.Second, Exponential: true}

	prev := time.Duration(0)
	for attempt := 0; attempt < 200; attempt++ {
		d := b.Nominal(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, b.Max, "attempt %d", attempt)
		prev = d
	}

	assert.Equal(t, 500*time.Millisecond, b.Nominal(0))
	assert.Equal(t, time.Second, b.Nominal(1))
	assert.Equal(t, 16*time.Second, b.Nominal(5))
	assert.Equal(t, 30*time.Second, b.Nominal(6))
	assert.Equal(t, 30*time.Second, b.Nominal(1<<20))
}

func TestBackoffConstant(t *testing.T) {
	b := Backoff{Base: 250 * time.Millisecond, Max: time.Second}
	for attempt := 0; attempt < 10; attempt++ {
		assert.Equal(t, 250*time.Millisecond, b.Nominal(attempt))
	}

	zero := Backoff{Max: time.Second, Exponential: true}
	assert.Zero(t, zero.Delay(5, func() float64 { return 0.9 }))
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{Base: time.Second, Max: time.Minute, Exponential: true, Jitter: 0.2}

	assert.Equal(t, 800*time.Millisecond, b.Delay(0, func() float64 { return 0 }))
	assert.Equal(t, time.Second, b.Delay(0, func() float64 { return 0.5 }))
	assert.InDelta(t, float64(1200*time.Millisecond), float64(b.Delay(0, func() float64 { return 0.999999 })), float64(time.Millisecond))

	full := Backoff{Base: time.Second, Max: time.Minute, Jitter: 1}
	assert.Equal(t, time.Duration(0), full.Delay(0, func() float64 { return 0 }))
}

func TestBackoffJitterSaturates(t *testing.T) {
	b := Backoff{Base: time.Duration(math.MaxInt64), Max: time.Duration(math.MaxInt64), Jitter: 1}

	d := b.Delay(0, func() float64 { return 0.999999 })
	assert.Equal(t, time.Duration(math.MaxInt64), d)

	assert.Zero(t, b.Delay(0, func() float64 { return 0 }))
}

func TestDefaultJitterSource(t *testing.T) {
	c, err := New(testOptions())
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		f := c.rand()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}
