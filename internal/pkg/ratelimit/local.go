package ratelimit

import (
	"context"
	"sync"
	"time"
)

// local enforces minimum spacing with a single ticker: the first call is
// admitted at once, and after that each tick admits exactly one waiter. Deliberately not golang.org/x/time/rate — the spec
// only asks for minimum inter-call spacing, not burst capacity, and a
// ticker gate is the whole implementation.
type local struct {
	ticker *time.Ticker
	first  sync.Once
}

var _ Limiter = (*local)(nil)

// NewLocal builds a Limiter that admits one call every spacing duration.
// spacing is 1000/PROVIDERS_RPS milliseconds.
func NewLocal(spacing time.Duration) *local {
	return &local{ticker: time.NewTicker(spacing)}
}

func (l *local) Wait(ctx context.Context) error {
	admitted := false
	l.first.Do(func() { admitted = true })
	if admitted {
		return nil
	}

	select {
	case <-l.ticker.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop releases the underlying ticker. Call once the limiter is no longer
// needed, typically alongside gateway shutdown.
func (l *local) Stop() {
	l.ticker.Stop()
}
