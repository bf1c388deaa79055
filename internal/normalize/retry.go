package normalize

import (
	"context"
	"time"
)

const (
	// DefaultMaxAttempts bounds backend calls per page.
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the fixed wait after a rate-limited attempt.
	DefaultRetryDelay = 10 * time.Second
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits on the wall clock.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
