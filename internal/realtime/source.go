package realtime

import (
	"context"
	"time"
)

// Source is a transport that feeds envelopes into a Sink until ctx ends.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink)
}

// backoff doubles up to max, like the broker reconnect loops.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

func (b *backoff) next() time.Duration {
	d := b.current
	if b.current < b.max {
		b.current *= 2
		if b.current > b.max {
			b.current = b.max
		}
	}
	return d
}

func (b *backoff) reset() { b.current = b.initial }

// sleep waits for d or until ctx is done, reporting whether to continue.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
