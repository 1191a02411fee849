package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// RetryPolicy bounds how often an operation against the service is attempted
type RetryPolicy struct {
	// MaxTries is the number of retries after the first attempt
	MaxTries       int
	AttemptTimeout time.Duration
	// Refresh runs between attempts after a transport-layer failure
	Refresh func()
}

// RetryError is returned once every attempt of an operation failed
type RetryError struct {
	Label    string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Label, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

type retryState int

const (
	retryAttempt retryState = iota
	retryAgain
	retryExhausted
	retrySucceeded
)

// Retry calls fn until it succeeds or MaxTries retries were spent. Each
// attempt runs to completion, bounded by AttemptTimeout, before the next one
// starts. Configuration, malformed link and consistency errors are returned
// as they are.
func Retry[T any](ctx context.Context, label string, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var (
		result  T
		lastErr error
		attempt int
	)

	state := retryAttempt
	for {
		switch state {
		case retryAttempt:
			attempt++
			result, lastErr = runAttempt(ctx, policy.AttemptTimeout, fn)
			switch {
			case lastErr == nil:
				state = retrySucceeded
			case permanent(lastErr) || ctx.Err() != nil:
				var zero T
				return zero, lastErr
			case attempt > policy.MaxTries:
				state = retryExhausted
			default:
				state = retryAgain
			}

		case retryAgain:
			LogInfof("%s: retrying for the %d time: %v", label, attempt, lastErr)
			if policy.Refresh != nil && transportLayer(lastErr) {
				policy.Refresh()
			}
			state = retryAttempt

		case retryExhausted:
			LogErrorf("%s: giving up after %d attempts: %v", label, attempt, lastErr)
			var zero T
			return zero, &RetryError{Label: label, Attempts: attempt, Err: lastErr}

		case retrySucceeded:
			if attempt > 1 {
				LogDebugf("%s succeeded on attempt %d", label, attempt)
			}
			return result, nil
		}
	}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func permanent(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrMalformedLink) || errors.Is(err, ErrInconsistent)
}

// transportLayer reports failures below HTTP; a status error means the
// request went through and the proxy is fine
func transportLayer(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
