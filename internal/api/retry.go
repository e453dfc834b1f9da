package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"moneybook/internal/log"
)

// RetryPolicy configures Retry. Zero members fall back to the defaults.
type RetryPolicy struct {
	// Retries is the number of attempts after the first one. Negative
	// disables retrying.
	Retries    int
	Delay      time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Retryable decides whether a failed attempt is tried again. Unauthorized
	// errors are never retried regardless of its answer.
	Retryable func(error) bool

	// timer replaces the wall-clock wait between attempts in tests.
	timer backoff.Timer
}

// DefaultRetryPolicy retries three times with doubling delays from one
// second up to thirty. Only transport failures, timeouts, 429 and 5xx
// responses are retried; other API errors such as 400 or 404 fail at once.
// Callers wanting broader retries set Retryable.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:    3,
		Delay:      time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Retries == 0 {
		p.Retries = d.Retries
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.Delay <= 0 {
		p.Delay = d.Delay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.Retryable == nil {
		p.Retryable = Retryable
	}
	return p
}

func (p RetryPolicy) exponential() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Delay,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Backoff returns the wait before retry number n (1-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	b := p.withDefaults().exponential()
	var d time.Duration
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Retryable is the default retry predicate: transport failures, timeouts,
// 429 and 5xx responses.
func Retryable(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindServer:
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	default:
		return false
	}
}

// Retry runs fn until it succeeds, fails with a non-retryable error or the
// policy's retries are exhausted. The last error is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	return retry(ctx, p, nil, fn)
}

func retry[T any](ctx context.Context, p RetryPolicy, c *Client, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	var lastErr error
	op := func() (T, error) {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if IsUnauthorized(err) || !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	attempt := 0
	notify := func(err error, delay time.Duration) {
		attempt++
		if c == nil {
			return
		}
		c.metrics.retried()
		c.logger.WarnContext(ctx, "Retrying API request",
			log.FieldOperation, log.OpRetry,
			log.FieldAttempt, attempt,
			log.FieldAttemptsLeft, p.Retries-attempt+1,
			log.FieldError, err,
			"delay_ms", delay.Milliseconds())
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(p.Retries)), ctx)
	v, err := backoff.RetryNotifyWithTimerAndData(op, b, notify, p.timer)
	if err != nil && lastErr != nil && ctx.Err() != nil {
		// Cancellation mid-wait reports the failure that caused the wait.
		var zero T
		return zero, lastErr
	}
	return v, err
}

// withRetry applies the client's retry policy to fn.
func withRetry[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error)) (T, error) {
	return retry(ctx, c.retry, c, fn)
}
