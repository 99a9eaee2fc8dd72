package domain

import "time"

// Job is one spreadsheet row: search Keyword on SiteURL and act only on
// results published strictly after Baseline.
type Job struct {
	Keyword  string
	SiteURL  string
	Baseline time.Time
}

// Candidate is a single search-result item from a listing page. Published is
// nil when no date could be mined; such candidates never pass the date filter.
type Candidate struct {
	Title     string
	URL       string
	RawDate   string
	Published *time.Time
}

// Attachment is a downloadable link found on a detail page (or the listing
// link itself when detail extraction is disabled for the site).
type Attachment struct {
	URL  string
	Name string // display text from the link, may be empty
	Ext  string // lowercased, no dot
}
