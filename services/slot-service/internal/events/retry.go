package events

import (
	"context"
	"time"
)

type backoff struct {
	base time.Duration
	max  time.Duration
}

var defaultBackoff = backoff{base: 500 * time.Millisecond, max: 30 * time.Second}

func (b backoff) delay(attempt int) time.Duration {
	d := b.base
	for i := 0; i < attempt && d < b.max; i++ {
		d *= 2
	}
	if d > b.max {
		d = b.max
	}
	return d
}

// retry calls fn until it succeeds or ctx is done. A message stays at the head of its
// partition or delivery loop meanwhile, so nothing behind it is processed out of order.
func retry(ctx context.Context, b backoff, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		timer := time.NewTimer(b.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
