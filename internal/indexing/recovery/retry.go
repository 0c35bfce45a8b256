package recovery

import (
	"context"
	"time"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock SleepFunc. It returns early with ctx's error.
func Sleep(ctx context.Context, d time.Duration) error {
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

// Do calls fn until it succeeds or the strategy gives up, and returns the
// last error. A nil strategy calls fn once.
func Do(ctx context.Context, strategy RetryStrategy, sleep SleepFunc, fn func(context.Context) error) error {
	if sleep == nil {
		sleep = Sleep
	}
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || strategy == nil || !strategy.ShouldRetry(err, attempt+1) {
			return err
		}
		if serr := sleep(ctx, strategy.GetDelay(attempt)); serr != nil {
			return err
		}
	}
}
