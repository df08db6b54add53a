// Package retry runs an operation a bounded number of times with a linearly
// growing pause between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMaxAttemptsExceeded is returned when every attempt failed.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// Policy configures the retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// BaseDelay is multiplied by the attempt number to get the pause after it.
	BaseDelay time.Duration
	// Sleep waits for d or until ctx is done. Defaults to a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns three attempts spaced 2s, then 4s apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// Delay returns the pause that follows a failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// Do calls fn until it succeeds, the attempts run out, or ctx is done.
// fn receives the 1-based attempt number.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry interrupted after attempt %d: %w", attempt, err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, p.MaxAttempts, lastErr)
}

func timerSleep(ctx context.Context, d time.Duration) error {
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
