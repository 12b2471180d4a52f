package embedding

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy configures WithRetry.
//
// The wait before attempt n+1 is Multiplier * 2^(n-1), clamped to
// [MinDelay, MaxDelay]. A provider-supplied Retry-After overrides the
// computed wait when it is longer.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts   int
	MinDelay   time.Duration
	MaxDelay   time.Duration
	Multiplier time.Duration
}

// DefaultRetryPolicy returns the policy for the given retry count and minimum
// delay: exponential backoff capped at ten seconds.
func DefaultRetryPolicy(attempts int, minDelay time.Duration) RetryPolicy {
	return RetryPolicy{
		Attempts:   attempts,
		MinDelay:   minDelay,
		MaxDelay:   10 * time.Second,
		Multiplier: time.Second,
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Multiplier
	for i := 1; i < attempt && (p.MaxDelay <= 0 || d < p.MaxDelay); i++ {
		d *= 2
	}
	if d < p.MinDelay {
		d = p.MinDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

type retryGateway struct {
	policy RetryPolicy
	next   Gateway
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps next so transient failures are retried according to policy.
// Non-transient errors are returned immediately. After the last attempt the
// last error is returned as is, so callers still see a *TransientError.
func WithRetry(policy RetryPolicy, next Gateway) Gateway {
	if policy.Attempts <= 1 {
		return next
	}
	return &retryGateway{policy: policy, next: next, sleep: sleepContext}
}

func (g *retryGateway) Embed(ctx context.Context, model string, inputs []string) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= g.policy.Attempts; attempt++ {
		resp, err := g.next.Embed(ctx, model, inputs)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var te *TransientError
		if !errors.As(err, &te) || attempt == g.policy.Attempts {
			break
		}

		wait := g.policy.Backoff(attempt)
		if te.RetryAfter > wait {
			wait = te.RetryAfter
		}
		if err := g.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
