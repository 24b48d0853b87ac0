package runner

import (
	"context"
	"time"

	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// withRetry runs fn up to maxRetries+1 times, retrying only transient
// provider errors with exponential backoff doubled per attempt. Any other
// error, and the last transient error once retries are spent, is returned
// as-is.
func withRetry(ctx context.Context, maxRetries int, baseBackoff time.Duration, sleep func(context.Context, time.Duration) error, fn func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := baseBackoff

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if sleepErr := sleep(ctx, backoff); sleepErr != nil {
				return sleepErr
			}
			backoff *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
		if !models.IsTransient(err) {
			return err
		}
	}
	return err
}

// sleepCtx blocks for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
