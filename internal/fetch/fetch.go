// Package fetch retrieves pages for the crawl pipeline. Two strategies exist
// behind one interface: a plain HTTP exchange for static sites and a headless
// browser render for sites that build their listings in JS. The rest of the
// pipeline never knows which one ran.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Options controls a single page fetch.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	WaitFor   string // CSS selector a dynamic fetch waits for before reading
}

type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, opts Options) (html string, err error)
	Close() error
}

// ErrBinaryContent marks a URL that answered with a file body (e.g. a PDF)
// instead of a page. Callers treat the link itself as the download target.
var ErrBinaryContent = errors.New("binary content, not a page")

type ErrorClass int

const (
	// Retryable failures (timeouts, transient network errors, 5xx) get a
	// small bounded retry at this layer.
	Retryable ErrorClass = iota
	// Terminal failures (malformed URL, non-transient HTTP status) propagate
	// immediately as a job- or candidate-level failure.
	Terminal
)

// Error wraps a fetch failure with its retry class and, when the server
// answered at all, the HTTP status.
type Error struct {
	URL    string
	Class  ErrorClass
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a fetch error worth another attempt.
func IsRetryable(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Class == Retryable
}

const (
	maxExtraAttempts = 2
	backoffBase      = 500 * time.Millisecond
)

// withRetry runs fn up to 1+maxExtraAttempts times, backing off between
// retryable failures. Terminal failures and context cancellation return
// immediately.
func withRetry(ctx context.Context, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxExtraAttempts; attempt++ {
		if attempt > 0 {
			backoff := backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
		html, err := fn()
		if err == nil {
			return html, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return "", err
		}
	}
	return "", lastErr
}

func statusClass(status int) ErrorClass {
	if status >= 500 || status == 408 || status == 429 {
		return Retryable
	}
	return Terminal
}
