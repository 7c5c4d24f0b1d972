package checkout

import (
	"context"
	"time"
)

// RetryPolicy retries an operation a fixed number of times with a fixed
// inter-try delay. It backs the element-readiness wait, where the external
// SDK's load order cannot be controlled by this code.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       func(context.Context, time.Duration) error
}

// Do runs fn until it succeeds or the attempts are exhausted. The error of
// the final attempt is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if p.Delay > 0 {
			if sleepErr := sleep(ctx, p.Delay); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return err
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
