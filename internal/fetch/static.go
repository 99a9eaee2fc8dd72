package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// StaticFetcher performs one plain request/response exchange per fetch, with
// a bounded retry for transient failures.
type StaticFetcher struct {
	hc      *http.Client
	limiter *HostLimiter
}

func NewStatic(timeout time.Duration, limiter *HostLimiter) *StaticFetcher {
	return &StaticFetcher{
		hc:      &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

func (s *StaticFetcher) Close() error { return nil }

func (s *StaticFetcher) Fetch(ctx context.Context, pageURL string, opts Options) (string, error) {
	if _, err := url.ParseRequestURI(pageURL); err != nil {
		return "", &Error{URL: pageURL, Class: Terminal, Err: err}
	}

	return withRetry(ctx, func() (string, error) {
		return s.fetchOnce(ctx, pageURL, opts)
	})
}

func (s *StaticFetcher) fetchOnce(ctx context.Context, pageURL string, opts Options) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, pageURL); err != nil {
			return "", err
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &Error{URL: pageURL, Class: Terminal, Err: err}
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	res, err := s.hc.Do(req)
	if err != nil {
		class := Retryable
		if errors.Is(err, context.Canceled) {
			class = Terminal
		}
		return "", &Error{URL: pageURL, Class: class, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", &Error{URL: pageURL, Class: statusClass(res.StatusCode), Status: res.StatusCode, Err: errors.New(res.Status)}
	}

	contentType := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(contentType, "application/pdf") ||
		strings.Contains(contentType, "application/octet-stream") {
		return "", &Error{URL: pageURL, Class: Terminal, Err: ErrBinaryContent}
	}

	// Sites in scope are frequently GBK/GB18030; decode by declared charset
	// before handing the page to the extractors.
	reader, err := charset.NewReader(res.Body, res.Header.Get("Content-Type"))
	if err != nil {
		reader = res.Body
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", &Error{URL: pageURL, Class: Retryable, Err: err}
	}
	return string(body), nil
}
