package retry

import (
	"context"
	"time"
)

// Policy is a bounded retry schedule with exponential backoff, shared by
// the DNS mutator and anything else that talks to flaky collaborators.
type Policy struct {
	Attempts int           // total attempts, including the first
	Backoff  time.Duration // delay before the second attempt, doubled after
	MaxDelay time.Duration // cap on the doubled delay; 0 means no cap
}

// Do runs fn until it succeeds, the attempts are exhausted, retryable
// rejects the error, or ctx is cancelled. A nil retryable retries every
// error. Returns the last error.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error, retryable func(error) bool) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.Backoff
	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if retryable != nil && !retryable(last) {
			return last
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return last
}
