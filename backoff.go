package sse

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff configures how reconnections are spaced in time. The zero value
// disables pacing: every connection starts as soon as the previous one ended.
//
// When pacing is enabled, the delay grows exponentially while connections fail
// to deliver events and is reset once a connection delivers at least one.
// A retry field received from the server replaces InitialInterval.
type Backoff struct {
	// The delay before the first reconnection. Zero disables pacing.
	InitialInterval time.Duration
	// The upper bound of the delay. Defaults to one minute.
	MaxInterval time.Duration
	// The factor the delay grows by after each unproductive connection.
	// Values below 1 are replaced by the default, 1.5.
	Multiplier float64
	// Randomizes each delay by up to this fraction of it, in both directions.
	Jitter float64
}

type pacer struct {
	b *backoff.ExponentialBackOff
}

func (b Backoff) newPacer() *pacer {
	if b.InitialInterval <= 0 {
		return &pacer{}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.InitialInterval
	eb.RandomizationFactor = b.Jitter
	eb.MaxElapsedTime = 0
	if b.Multiplier >= 1 {
		eb.Multiplier = b.Multiplier
	}
	if b.MaxInterval > 0 {
		eb.MaxInterval = b.MaxInterval
	}
	if eb.MaxInterval < eb.InitialInterval {
		eb.MaxInterval = eb.InitialInterval
	}
	eb.Reset()

	return &pacer{b: eb}
}

// next returns the delay before the upcoming connection, given whether the
// previous one delivered events and the last reconnection time the server sent.
func (p *pacer) next(progressed bool, retry time.Duration) time.Duration {
	if p.b == nil {
		return 0
	}

	if retry > 0 {
		p.b.InitialInterval = retry
		if p.b.MaxInterval < retry {
			p.b.MaxInterval = retry
		}
	}
	if progressed || retry > 0 {
		p.b.Reset()
	}

	return p.b.NextBackOff()
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
