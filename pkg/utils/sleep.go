package utils

import (
	"context"
	"time"
)

// Sleeper blocks for d or until ctx is done. Components that wait (retry
// backoff, rate limit throttling, search retries) take a Sleeper so tests can
// record the requested durations instead of sleeping.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OrDefault returns s, or SleepContext when s is nil.
func (s Sleeper) OrDefault() Sleeper {
	if s == nil {
		return SleepContext
	}
	return s
}
