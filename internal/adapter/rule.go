package adapter

import (
	"net/url"
	"strings"
)

type FetchMode string

const (
	FetchStatic  FetchMode = "static"
	FetchDynamic FetchMode = "dynamic"
)

type QueryEncoding string

const (
	EncodeSingle QueryEncoding = "single"
	EncodeDouble QueryEncoding = "double"
	EncodeNone   QueryEncoding = "none"
)

// DefaultExtensions is the attachment extension set used when a rule does not
// configure its own.
var DefaultExtensions = []string{
	"pdf", "doc", "docx", "xls", "xlsx", "zip", "rar", "7z", "csv", "ppt", "pptx",
}

var (
	DefaultTitleSelectors      = []string{"h1", "title"}
	DefaultAttachmentSelectors = []string{"a[href]"}
)

// ListingRules selects result items on a search page.
type ListingRules struct {
	Item    string `yaml:"item"`
	Title   string `yaml:"title"`
	Date    string `yaml:"date"`
	WaitFor string `yaml:"wait_for"`

	// DateFromItem mines a date out of the whole item text (and link href)
	// when no date selector hits. The built-in generic rule relies on this.
	DateFromItem     bool   `yaml:"date_from_item"`
	MatchKeyword     *bool  `yaml:"match_keyword"` // nil means true
	MatchInTitleOnly bool   `yaml:"match_in_title_only"`
	LinkHrefContains string `yaml:"link_href_contains"`
}

// DetailRules controls detail-page extraction.
type DetailRules struct {
	Enabled              *bool     `yaml:"enabled"` // nil means true
	FetchMode            FetchMode `yaml:"fetch_mode"`
	TitleSelectors       []string  `yaml:"title_selectors"`
	AttachmentSelectors  []string  `yaml:"attachment_selectors"`
	AttachmentExtensions []string  `yaml:"attachment_extensions"`
	TextKeywords         []string  `yaml:"attachment_text_keywords"`
	SaveHTML             bool      `yaml:"save_html"`
}

// DetailDateRules backfills a publish date from the detail page for
// candidates whose listing entry carried none.
type DetailDateRules struct {
	Enabled   bool      `yaml:"enabled"`
	Selectors []string  `yaml:"selectors"`
	Regexes   []string  `yaml:"regexes"`
	FetchMode FetchMode `yaml:"fetch_mode"`
}

// Rule is the declarative per-site rule set. One engine drives every site
// through these rules instead of per-site code.
type Rule struct {
	SearchURL     string          `yaml:"search_url"` // template with a {query} placeholder
	QueryEncoding QueryEncoding   `yaml:"query_encoding"`
	FetchMode     FetchMode       `yaml:"fetch_mode"`
	Listing       ListingRules    `yaml:"selectors"`
	Detail        DetailRules     `yaml:"detail_page"`
	DetailDate    DetailDateRules `yaml:"detail_date"`
	DateFormats   []string        `yaml:"date_formats"`
}

func (r Rule) Mode() FetchMode {
	if r.FetchMode == FetchDynamic {
		return FetchDynamic
	}
	return FetchStatic
}

func (r Rule) DetailMode() FetchMode {
	if r.Detail.FetchMode != "" {
		return r.Detail.FetchMode
	}
	return r.Mode()
}

func (r Rule) MatchKeywordEnabled() bool {
	return r.Listing.MatchKeyword == nil || *r.Listing.MatchKeyword
}

func (r Rule) DetailEnabled() bool {
	return r.Detail.Enabled == nil || *r.Detail.Enabled
}

func (r Rule) TitleSelectors() []string {
	return selectorsOr(r.Detail.TitleSelectors, DefaultTitleSelectors)
}

func (r Rule) AttachmentSelectors() []string {
	return selectorsOr(r.Detail.AttachmentSelectors, DefaultAttachmentSelectors)
}

// Extensions returns the normalized allowed-extension set (lowercase, no dot).
func (r Rule) Extensions() map[string]bool {
	src := r.Detail.AttachmentExtensions
	if len(src) == 0 {
		src = DefaultExtensions
	}
	out := make(map[string]bool, len(src))
	for _, e := range src {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			out[e] = true
		}
	}
	return out
}

// WaitSelector is what a dynamic fetch waits for before reading the page.
func (r Rule) WaitSelector() string {
	if r.Listing.WaitFor != "" {
		return r.Listing.WaitFor
	}
	return r.Listing.Item
}

// BuildSearchURL expands the search template for a keyword. Without a
// template (or without a {query} placeholder) the site URL is used as-is,
// trusting the site to show its default listing.
func (r Rule) BuildSearchURL(siteURL, keyword string) string {
	template := r.SearchURL
	if template == "" {
		template = siteURL
	}
	if !strings.Contains(template, "{query}") {
		return template
	}
	return strings.ReplaceAll(template, "{query}", encodeQuery(keyword, r.QueryEncoding))
}

func encodeQuery(value string, mode QueryEncoding) string {
	switch mode {
	case EncodeNone:
		return value
	case EncodeDouble:
		return url.QueryEscape(url.QueryEscape(value))
	default:
		return url.QueryEscape(value)
	}
}

func selectorsOr(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
