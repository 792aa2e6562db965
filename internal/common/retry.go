package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// HTTPStatusError is implemented by client errors that carry an HTTP status
// and an optional server-supplied retry hint.
type HTTPStatusError interface {
	error
	HTTPStatus() int
	RetryAfterHint() time.Duration
}

// RetryPolicy controls how transient provider failures are retried.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Exponential  bool
	RetryOn429   bool
}

// RetryPolicyFromConfig builds a RetryPolicy from the rate-limiting config.
func RetryPolicyFromConfig(c RateLimitConfig) RetryPolicy {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: c.GetInitialRetryDelay(),
		Exponential:  c.UseExponentialBackoff,
		RetryOn429:   c.EnableRetryOn429,
	}
}

// retryable classifies an error as transient: network-level failures and 5xx
// always, HTTP 429 only when the policy allows it.
func (p RetryPolicy) retryable(err error) (bool, time.Duration) {
	var statusErr HTTPStatusError
	if errors.As(err, &statusErr) {
		status := statusErr.HTTPStatus()
		switch {
		case status == 429:
			return p.RetryOn429, statusErr.RetryAfterHint()
		case status >= 500 && status <= 599:
			return true, 0
		}
		return false, 0
	}

	// No HTTP response at all. A cancelled caller is terminal; anything the
	// transport reports (reset, refused, DNS, timeout) is transient.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, 0
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true, 0
	}
	return false, 0
}

// Do runs fn with retries per the policy. The server's Retry-After hint,
// when present, overrides the computed back-off delay.
func (p RetryPolicy) Do(ctx context.Context, op string, logger *Logger, fn func(ctx context.Context) error) error {
	delay := p.InitialDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	var err error
	attempts := 0
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		attempts = attempt
		err = fn(ctx)
		if err == nil {
			return nil
		}

		transient, hint := p.retryable(err)
		if !transient || attempt == p.MaxRetries {
			break
		}

		wait := delay
		if hint > 0 {
			wait = hint
		}

		logger.Debug().
			Str("op", op).
			Int("attempt", attempt).
			Dur("wait", wait).
			Err(err).
			Msg("Transient provider error, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if p.Exponential {
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}
