// Package retry runs transient operations a bounded number of times with
// exponential backoff between attempts.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy bundles the attempt budget with its backoff. Waits start at Base
// and double up to Max.
type Policy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
	// JitterPercent spreads waits of many callers hitting one upstream.
	JitterPercent uint64
	// OnRetry is called before each wait with the failed attempt number.
	OnRetry func(attempt int, err error, wait time.Duration)
}

func (p Policy) backoff() goretry.Backoff {
	b := goretry.NewExponential(max(p.Base, time.Nanosecond))
	if p.Max > 0 {
		b = goretry.WithCappedDuration(p.Max, b)
	}
	if p.JitterPercent > 0 {
		b = goretry.WithJitterPercent(p.JitterPercent, b)
	}
	return goretry.WithMaxRetries(uint64(max(p.Attempts, 1)-1), b)
}

// Do calls fn until it succeeds, the attempts are exhausted or ctx ends.
// It returns the last error, or the context error when ctx ended first.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var (
		attempt int
		lastErr error
	)
	next := p.backoff()
	b := goretry.BackoffFunc(func() (time.Duration, bool) {
		wait, stop := next.Next()
		if !stop && p.OnRetry != nil {
			p.OnRetry(attempt, lastErr, wait)
		}
		return wait, stop
	})

	return goretry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if lastErr = fn(ctx); lastErr != nil {
			return goretry.RetryableError(lastErr)
		}
		return nil
	})
}
