// Package extract parses listing and detail pages under a site's declarative
// rules: candidate items from search results, refined titles and attachment
// links from detail pages, and publish dates mined out of surrounding text.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"docwatch-engine/internal/domain"
)

var dateRegexes = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}[./-]\d{1,2}[./-]\d{1,2}(?:[ T]\d{1,2}:\d{2}(?::\d{2})?)?`),
	regexp.MustCompile(`\d{4}年\d{1,2}月\d{1,2}日`),
}

// defaultDateFormats is the ordered accepted-format list, date-time variants
// before date-only ones. Rules may override it with date_formats.
var defaultDateFormats = []string{
	"2006-1-2 15:4:5",
	"2006-1-2 15:4",
	"2006-1-2",
	"2006/1/2 15:4:5",
	"2006/1/2",
	"2006.1.2",
	"2006年1月2日",
}

// ParseDate parses one date string against the accepted formats, falling back
// to a fuzzy parse. Returns nil when nothing matches: unparseable dates
// exclude a candidate, they never error or get a guessed default.
func ParseDate(value string, formats []string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if len(formats) == 0 {
		formats = defaultDateFormats
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	if t, err := dateparse.ParseAny(value); err == nil {
		return &t
	}
	return nil
}

// MineDate pulls every date-looking substring out of text and returns the
// latest one that parses. Listing rows often carry several dates (published,
// effective, expiry); the newest is the publish date in practice.
func MineDate(text string, formats []string) *time.Time {
	var best *time.Time
	for _, re := range dateRegexes {
		for _, match := range re.FindAllString(text, -1) {
			t := ParseDate(match, formats)
			if t == nil {
				continue
			}
			if best == nil || t.After(*best) {
				best = t
			}
		}
	}
	return best
}

// FilterNewer keeps candidates published strictly after baseline. Ties and
// dateless candidates are excluded — already-known publications are never
// re-downloaded, which is what makes repeated runs no-ops.
func FilterNewer(candidates []domain.Candidate, baseline time.Time) []domain.Candidate {
	var out []domain.Candidate
	for _, c := range candidates {
		if c.Published == nil {
			continue
		}
		if c.Published.After(baseline) {
			out = append(out, c)
		}
	}
	return out
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func normalizeForMatch(value string) string {
	return strings.ToLower(whitespaceRe.ReplaceAllString(value, ""))
}

// MatchesKeyword tests for the keyword as a substring, ignoring all
// whitespace and case on both sides. Site listings routinely break a file
// name across spans, so a plain Contains would miss them.
func MatchesKeyword(text, keyword string) bool {
	k := normalizeForMatch(keyword)
	if k == "" {
		return false
	}
	return strings.Contains(normalizeForMatch(text), k)
}

func squish(value string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(value, " "))
}
