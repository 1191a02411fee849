package main

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration covers missing editors, files, folders or CMakeLists.txt.
	// These are reported immediately and never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport covers network failures and non-2xx responses
	ErrTransport = errors.New("transport error")
	// ErrMalformedLink is returned when a short link document has an unexpected shape
	ErrMalformedLink = errors.New("malformed link")
	// ErrInconsistent marks usage errors such as mixed multi-file sources
	ErrInconsistent = errors.New("internal consistency error")
	// ErrNotFound is returned for unknown instance ids
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx answer from the remote service
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.StatusCode, body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrTransport
}

func configurationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func inconsistentErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInconsistent, fmt.Sprintf(format, args...))
}

func malformedLinkf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedLink, fmt.Sprintf(format, args...))
}
