package provider

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const (
	// DefaultMaxRetries is the number of attempts made before giving up.
	DefaultMaxRetries = 5

	// DefaultInitialBackoff is the wait before the second attempt.
	DefaultInitialBackoff = 1 * time.Second

	// DefaultBackoffMultiplier grows the wait after each failed attempt.
	DefaultBackoffMultiplier = 2.0
)

// RetryPolicy bounds how transient backend failures are retried.
type RetryPolicy struct {
	// MaxRetries is the total number of attempts.
	MaxRetries int

	// InitialBackoff is the wait after the first failure.
	InitialBackoff time.Duration

	// Multiplier scales the wait after each further failure.
	Multiplier float64

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 5 attempts starting at 1s and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		Multiplier:     DefaultBackoffMultiplier,
	}
}

// Retriable is implemented by errors that carry their own retry decision.
type Retriable interface {
	Retriable() bool
}

// IsRetriable reports whether err is worth another attempt. Only rate
// limiting and errors that declare themselves retriable qualify. The "429"
// message match applies only to errors that carry no HTTP status.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}

	// A known HTTP status is authoritative; only 429 is worth retrying.
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return apiErr.IsRateLimited()
	}

	var r Retriable
	if errors.As(err, &r) {
		return r.Retriable()
	}

	// Some CLIs and SDKs only surface the status in the message text.
	return strings.Contains(err.Error(), "429")
}

// Do calls fn until it succeeds, fails with a non-retriable error, or the
// attempt budget is spent. The wait starts at InitialBackoff and is
// multiplied after every failed attempt.
func (p RetryPolicy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = DefaultBackoffMultiplier
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	backoff := p.InitialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying request after backoff",
				"provider", name,
				"attempt", attempt+1,
				"max_attempts", maxRetries,
				"backoff", backoff,
			)
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = time.Duration(float64(backoff) * multiplier)
		}

		err := fn(ctx)

		// Success - return immediately
		if err == nil {
			if attempt > 0 {
				slog.Info("Request succeeded after retry",
					"provider", name,
					"attempt", attempt+1,
				)
			}
			return nil
		}

		if !IsRetriable(err) {
			slog.Debug("Error is not retriable, failing immediately",
				"provider", name,
				"error", err,
			)
			return err
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}
		slog.Warn("Request failed, will retry",
			"provider", name,
			"attempt", attempt+1,
			"max_attempts", maxRetries,
			"error", err,
		)
	}

	slog.Error("Request failed after all retries",
		"provider", name,
		"attempts", maxRetries,
		"error", lastErr,
	)
	return &ExhaustedError{Provider: name, Attempts: maxRetries, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
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

// ExecuteWithRetry sends req to p under policy. When check is non-nil it
// runs inside the retry loop, so a response it rejects with a retriable
// error is requested again.
func ExecuteWithRetry(ctx context.Context, p Provider, policy RetryPolicy, req *Request, check func(*Response) error) (*Response, error) {
	var resp *Response
	err := policy.Do(ctx, p.Name(), func(ctx context.Context) error {
		r, err := p.Execute(ctx, req)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(r); err != nil {
				return err
			}
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
