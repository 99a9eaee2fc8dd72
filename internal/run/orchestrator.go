// Package run drives the per-job pipeline: resolve rules, fetch the search
// page, extract and date-filter candidates, walk detail pages, download
// attachments, and account for every outcome. Jobs are independent; one
// job's failure never aborts another.
package run

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"docwatch-engine/internal/adapter"
	"docwatch-engine/internal/domain"
	"docwatch-engine/internal/download"
	"docwatch-engine/internal/extract"
	"docwatch-engine/internal/fetch"
	"docwatch-engine/internal/ledger"
)

type Deps struct {
	Registry  *adapter.Registry
	Fetchers  *fetch.Pool
	Manager   *download.Manager
	Ledger    *ledger.Ledger
	Timeout   time.Duration
	UserAgent string
	DryRun    bool
	JobLimit  int
}

type Summary struct {
	Jobs       int
	Candidates int
	Qualified  int
	Downloads  int
	Skipped    int // already present or duplicate content
	Failures   int
}

func (s Summary) String() string {
	return fmt.Sprintf("jobs=%d candidates=%d qualified=%d downloaded=%d skipped=%d failed=%d",
		s.Jobs, s.Candidates, s.Qualified, s.Downloads, s.Skipped, s.Failures)
}

// Run executes every job, bounded by JobLimit parallel pipelines. It always
// returns a summary: component errors become ledger outcomes, and a run with
// zero downloads is not an error.
func Run(ctx context.Context, jobList []domain.Job, d Deps) Summary {
	var (
		mu      sync.Mutex
		summary Summary
	)
	summary.Jobs = len(jobList)

	limit := d.JobLimit
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for _, job := range jobList {
		job := job
		g.Go(func() error {
			// Cancellation stops new pipelines; in-flight fetches abort on
			// their own timeouts.
			if ctx.Err() != nil {
				return nil
			}
			stats := d.runJob(ctx, job)
			mu.Lock()
			summary.Candidates += stats.Candidates
			summary.Qualified += stats.Qualified
			summary.Downloads += stats.Downloads
			summary.Skipped += stats.Skipped
			summary.Failures += stats.Failures
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return summary
}

type jobStats struct {
	Candidates int
	Qualified  int
	Downloads  int
	Skipped    int
	Failures   int
}

func (d Deps) runJob(ctx context.Context, job domain.Job) (stats jobStats) {
	host := hostOf(job.SiteURL)
	if host == "" {
		d.recordFailure(job, domain.Candidate{}, "bad site url: "+job.SiteURL)
		stats.Failures++
		return stats
	}
	rule := d.Registry.Resolve(host)
	searchURL := rule.BuildSearchURL(job.SiteURL, job.Keyword)

	opts := fetch.Options{
		UserAgent: d.UserAgent,
		Timeout:   d.Timeout,
		WaitFor:   rule.WaitSelector(),
	}
	html, err := d.fetcherFor(rule.Mode()).Fetch(ctx, searchURL, opts)
	if err != nil {
		log.Printf("[%s] search fetch failed: %v", host, err)
		d.recordFailure(job, domain.Candidate{}, fmt.Sprintf("search fetch: %v", err))
		stats.Failures++
		return stats
	}

	candidates, err := extract.Listing(html, rule, searchURL, job.Keyword)
	if err != nil {
		log.Printf("[%s] listing parse failed: %v", host, err)
		d.recordFailure(job, domain.Candidate{}, fmt.Sprintf("listing parse: %v", err))
		stats.Failures++
		return stats
	}
	stats.Candidates = len(candidates)

	if rule.DetailDate.Enabled {
		d.backfillDates(ctx, rule, candidates)
	}

	for _, c := range candidates {
		log.Printf("[%s] candidate title=%q published=%s baseline=%s url=%s",
			host, c.Title, formatTime(c.Published), job.Baseline.Format("2006-01-02"), c.URL)
	}

	newer := extract.FilterNewer(candidates, job.Baseline)
	stats.Qualified = len(newer)
	if len(newer) == 0 {
		log.Printf("[%s] nothing newer than baseline for %q (%d candidates)", host, job.Keyword, len(candidates))
		d.recordInfo(job, fmt.Sprintf("no qualifying candidates (%d found)", len(candidates)))
		return stats
	}

	if d.DryRun {
		log.Printf("[%s] dry-run: %d qualifying candidates for %q", host, len(newer), job.Keyword)
		d.recordInfo(job, fmt.Sprintf("dry-run: %d qualifying candidates", len(newer)))
		return stats
	}

	for _, cand := range newer {
		if ctx.Err() != nil {
			return stats
		}
		d.processCandidate(ctx, job, rule, host, cand, &stats)
	}
	return stats
}

func (d Deps) processCandidate(ctx context.Context, job domain.Job, rule adapter.Rule, host string, cand domain.Candidate, stats *jobStats) {
	extensions := rule.Extensions()

	direct := !rule.DetailEnabled() || extract.IsAttachmentURL(cand.URL, extensions)
	var attachments []domain.Attachment

	if !direct {
		opts := fetch.Options{UserAgent: d.UserAgent, Timeout: d.Timeout}
		html, err := d.fetcherFor(rule.DetailMode()).Fetch(ctx, cand.URL, opts)
		switch {
		case errors.Is(err, fetch.ErrBinaryContent):
			// The "detail page" is itself a file; download it directly.
			direct = true
		case err != nil:
			log.Printf("[%s] detail fetch failed: %v", host, err)
			d.recordFailure(job, cand, fmt.Sprintf("detail fetch: %v", err))
			stats.Failures++
			return
		default:
			title, atts, perr := extract.Detail(html, rule, cand.URL, cand.Title)
			if perr != nil {
				log.Printf("[%s] detail parse failed: %v", host, perr)
				d.recordFailure(job, cand, fmt.Sprintf("detail parse: %v", perr))
				stats.Failures++
				return
			}
			cand.Title = title
			attachments = atts
			if rule.Detail.SaveHTML {
				if werr := d.Manager.SaveDetailHTML(ctx, job, cand, host, html); werr != nil {
					log.Printf("[%s] detail html save failed: %v", host, werr)
				}
			}
		}
	}

	if direct {
		if extract.IsAttachmentURL(cand.URL, extensions) {
			attachments = []domain.Attachment{{
				URL:  cand.URL,
				Name: cand.Title,
				Ext:  extract.ExtensionOf(cand.URL),
			}}
		}
	}

	if len(attachments) == 0 {
		log.Printf("[%s] no attachments for %q", host, cand.Title)
		return
	}

	for _, att := range attachments {
		if ctx.Err() != nil {
			return
		}
		outcome := d.Manager.Download(ctx, job, cand, att, host)
		if err := d.Ledger.Record(outcome); err != nil {
			log.Printf("[ledger] append failed: %v", err)
		}
		switch {
		case outcome.Status == domain.StatusFailure:
			log.Printf("[%s] download failed: %s (%s)", host, att.URL, outcome.Reason)
			stats.Failures++
		case outcome.Reason == "downloaded":
			log.Printf("[%s] downloaded %s", host, outcome.Filename)
			stats.Downloads++
		default:
			stats.Skipped++
		}
	}
}

// backfillDates fetches detail pages for candidates with no listing date and
// mines one there. Fill only — a listing date always wins, and direct file
// links are left alone.
func (d Deps) backfillDates(ctx context.Context, rule adapter.Rule, candidates []domain.Candidate) {
	fetcher := d.fetcherFor(rule.DetailDate.FetchMode)
	for i := range candidates {
		if candidates[i].Published != nil {
			continue
		}
		if extract.IsAttachmentURL(candidates[i].URL, rule.Extensions()) {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		opts := fetch.Options{UserAgent: d.UserAgent, Timeout: d.Timeout}
		html, err := fetcher.Fetch(ctx, candidates[i].URL, opts)
		if err != nil {
			continue
		}
		candidates[i].Published = extract.DetailDate(html, rule)
	}
}

func (d Deps) fetcherFor(mode adapter.FetchMode) fetch.Fetcher {
	if mode == adapter.FetchDynamic && d.Fetchers.Dynamic != nil {
		return d.Fetchers.Dynamic
	}
	return d.Fetchers.Static
}

func (d Deps) recordFailure(job domain.Job, cand domain.Candidate, reason string) {
	if err := d.Ledger.Record(domain.FailureOutcome(job, cand, domain.Attachment{}, reason)); err != nil {
		log.Printf("[ledger] append failed: %v", err)
	}
}

func (d Deps) recordInfo(job domain.Job, reason string) {
	if err := d.Ledger.Record(domain.InfoOutcome(job, reason)); err != nil {
		log.Printf("[ledger] append failed: %v", err)
	}
}

func hostOf(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format("2006-01-02 15:04:05")
}
