// internal/client/backoff.go
package client

import (
	"context"
	"math"
	"time"

	"github.com/tamzrod/modbus-client/internal/config"
)

// Backoff computes reconnect delays.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	Exponential bool
	Jitter      float64 // [0,1]
}

func backoffFrom(o config.ClientOptions) Backoff {
	return Backoff{
		Base:        o.ReconnectDelay,
		Max:         o.MaxRetryDelay,
		Exponential: o.UseExponentialBackoff,
		Jitter:      o.RetryJitterFactor,
	}
}

// Nominal is the delay before jitter: Base*2^attempt capped at Max when
// exponential, Base otherwise. attempt is zero-based.
func (b Backoff) Nominal(attempt int) time.Duration {
	if !b.Exponential || b.Base <= 0 {
		return b.Base
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		if d >= b.Max/2 {
			return b.Max
		}
		d *= 2
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// Delay applies uniform jitter of ±Nominal*Jitter. rnd returns [0,1).
func (b Backoff) Delay(attempt int, rnd func() float64) time.Duration {
	d := b.Nominal(attempt)
	if b.Jitter <= 0 || d <= 0 || rnd == nil {
		return d
	}
	spread := float64(d) * b.Jitter
	out := float64(d) + (rnd()*2-1)*spread
	if out < 0 {
		return 0
	}
	if out >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(out)
}

// sleepContext waits d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
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
