package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

// DynamicFetcher renders a page in headless Chrome. Browser sessions are
// expensive, so every fetch draws from a weighted semaphore and releases it
// on all exit paths; the settle delay gives late JS a moment to fill in the
// listing after the wait selector appears.
type DynamicFetcher struct {
	sessions *semaphore.Weighted
	settle   time.Duration
}

func NewDynamic(maxSessions int64) *DynamicFetcher {
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &DynamicFetcher{
		sessions: semaphore.NewWeighted(maxSessions),
		settle:   time.Second,
	}
}

func (d *DynamicFetcher) Close() error { return nil }

func (d *DynamicFetcher) Fetch(ctx context.Context, pageURL string, opts Options) (string, error) {
	if err := d.sessions.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer d.sessions.Release(1)

	return withRetry(ctx, func() (string, error) {
		return d.render(ctx, pageURL, opts)
	})
}

func (d *DynamicFetcher) render(ctx context.Context, pageURL string, opts Options) (string, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancelNav := context.WithTimeout(browserCtx, timeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx, chromedp.Navigate(pageURL)); err != nil {
		return "", &Error{URL: pageURL, Class: renderClass(err), Err: err}
	}

	if opts.WaitFor != "" {
		// A wait-selector timeout is tolerated: the page may still hold
		// usable results, so read whatever rendered.
		waitCtx, cancelWait := context.WithTimeout(browserCtx, timeout)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(opts.WaitFor, chromedp.ByQuery))
		cancelWait()
		if err != nil && ctx.Err() != nil {
			return "", &Error{URL: pageURL, Class: Terminal, Err: ctx.Err()}
		}
	}

	var html string
	grabCtx, cancelGrab := context.WithTimeout(browserCtx, timeout)
	defer cancelGrab()
	if err := chromedp.Run(grabCtx,
		chromedp.Sleep(d.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", &Error{URL: pageURL, Class: renderClass(err), Err: err}
	}
	return html, nil
}

func renderClass(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return Retryable
	}
	return Terminal
}

// Pool pairs the two strategies so the pipeline can pick per rule.
type Pool struct {
	Static  Fetcher
	Dynamic Fetcher
}

func (p *Pool) Close() error {
	if p.Static != nil {
		_ = p.Static.Close()
	}
	if p.Dynamic != nil {
		_ = p.Dynamic.Close()
	}
	return nil
}
