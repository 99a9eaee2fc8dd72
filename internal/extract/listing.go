package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"docwatch-engine/internal/adapter"
	"docwatch-engine/internal/domain"
)

// Listing parses a search-results page into candidates under the site's
// listing rules. Zero matches is not an error — a site may simply have no
// results for the keyword. Items without a title are skipped; items without
// a date are kept with a nil publish date and fall to the date filter.
func Listing(html string, rule adapter.Rule, pageURL string, keyword string) ([]domain.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	itemSelector := rule.Listing.Item
	var items *goquery.Selection
	if itemSelector != "" {
		items = doc.Find(itemSelector)
	} else {
		items = doc.Find("a[href]")
	}

	var out []domain.Candidate
	items.Each(func(_ int, item *goquery.Selection) {
		link := item
		if goquery.NodeName(item) != "a" {
			linkSelector := rule.Listing.Title
			if linkSelector == "" {
				linkSelector = "a"
			}
			link = item.Find(linkSelector).First()
		}
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if href == "" {
			return
		}
		if rule.Listing.LinkHrefContains != "" && !strings.Contains(href, rule.Listing.LinkHrefContains) {
			return
		}

		title := strings.TrimSpace(link.AttrOr("title", ""))
		if title == "" {
			title = squish(link.Text())
		}
		if title == "" {
			return
		}

		surrounding := item
		if itemSelector == "" {
			// Generic mode: the anchor alone rarely holds the date, its
			// parent row usually does.
			if parent := item.Parent(); parent.Length() > 0 {
				surrounding = parent
			}
		}
		combined := squish(surrounding.Text())

		if rule.MatchKeywordEnabled() {
			matchText := combined
			if rule.Listing.MatchInTitleOnly {
				matchText = title
			}
			if !MatchesKeyword(matchText, keyword) {
				return
			}
		}

		rawDate := ""
		var published *time.Time
		if rule.Listing.Date != "" {
			rawDate = squish(item.Find(rule.Listing.Date).First().Text())
			published = MineDate(rawDate, rule.DateFormats)
		}
		if published == nil && rule.Listing.DateFromItem {
			published = MineDate(combined+" "+href, rule.DateFormats)
			if rawDate == "" {
				rawDate = combined
			}
		}

		out = append(out, domain.Candidate{
			Title:     title,
			URL:       resolveURL(base, href),
			RawDate:   rawDate,
			Published: published,
		})
	})
	return out, nil
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
