package resilience

import (
	"context"
	"time"

	"github.com/harunnryd/navvoice/pkg/errorsx"
)

// RetryPolicy defines retry behavior for transient failures.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Defaults to transport failures only.
	Retryable func(error) bool
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxRetries: maxRetries, Backoff: backoff, Retryable: errorsx.IsTransport}
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// retries are spent, or ctx is done. attempt starts at zero.
func (r RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	retryable := r.Retryable
	if retryable == nil {
		retryable = errorsx.IsTransport
	}
	var err error
	for i := 0; i <= r.MaxRetries; i++ {
		err = fn(i)
		if err == nil || !retryable(err) || i == r.MaxRetries {
			return err
		}
		timer := time.NewTimer(r.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
