package extract

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"docwatch-engine/internal/adapter"
	"docwatch-engine/internal/domain"
)

var attachmentPrefixRe = regexp.MustCompile(`^\s*附件\s*\d*\s*[:：]?\s*`)

// defaultDetailDateRegexes find labeled publish dates like "发布日期：2024-01-01".
var defaultDetailDateRegexes = []string{
	`(?:发布日期|发布时间|日期)[：:\s]*([0-9]{4}[./-][0-9]{1,2}[./-][0-9]{1,2})`,
	`(?:发布日期|发布时间|日期)[：:\s]*([0-9]{4}年[0-9]{1,2}月[0-9]{1,2}日)`,
}

// Detail extracts a refined title and the attachment set from a detail page.
// Title selectors are tried in order, first non-empty wins; attachments are
// the union across all attachment selectors, deduplicated by resolved URL and
// filtered to the rule's allowed extensions.
func Detail(html string, rule adapter.Rule, pageURL string, fallbackTitle string) (string, []domain.Attachment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fallbackTitle, nil, err
	}

	title := Title(doc, rule.TitleSelectors())
	if title == "" {
		title = fallbackTitle
	}
	return title, Attachments(doc, rule, pageURL), nil
}

// Title resolves a page title through the selector cascade, then og:title,
// then the document title.
func Title(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		node := doc.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		if text := nodeText(node); text != "" {
			return text
		}
	}
	if content, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if text := strings.TrimSpace(content); text != "" {
			return text
		}
	}
	return squish(doc.Find("title").First().Text())
}

func nodeText(node *goquery.Selection) string {
	if goquery.NodeName(node) == "meta" {
		return strings.TrimSpace(node.AttrOr("content", ""))
	}
	return squish(node.Text())
}

// Attachments collects attachment links under the rule's selectors.
func Attachments(doc *goquery.Document, rule adapter.Rule, pageURL string) []domain.Attachment {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}
	extensions := rule.Extensions()
	keywords := normalizedKeywords(rule.Detail.TextKeywords)

	seen := make(map[string]bool)
	var out []domain.Attachment
	for _, selector := range rule.AttachmentSelectors() {
		doc.Find(selector).Each(func(_ int, node *goquery.Selection) {
			href := strings.TrimSpace(node.AttrOr("href", ""))
			if href == "" {
				return
			}
			abs := resolveURL(base, href)
			if !IsAttachmentURL(abs, extensions) {
				return
			}
			if len(keywords) > 0 && !matchesAnyKeyword(node, keywords) {
				return
			}
			if seen[abs] {
				return
			}
			seen[abs] = true

			name := squish(node.Text())
			if name == "" {
				name = strings.TrimSpace(node.AttrOr("title", ""))
			}
			if name == "" {
				name = strings.TrimSpace(node.AttrOr("aria-label", ""))
			}
			out = append(out, domain.Attachment{
				URL:  abs,
				Name: cleanAttachmentName(name),
				Ext:  ExtensionOf(abs),
			})
		})
	}
	return out
}

func matchesAnyKeyword(node *goquery.Selection, keywords []string) bool {
	combined := strings.ToLower(squish(node.Text()) + " " + squish(node.Parent().Text()))
	for _, k := range keywords {
		if strings.Contains(combined, k) {
			return true
		}
	}
	return false
}

func normalizedKeywords(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// IsAttachmentURL reports whether a resolved URL points at a downloadable
// file under the allowed extension set. The extension comes from the URL path
// with any query string already excluded; as a fallback, a ".ext" anywhere in
// the URL counts, which catches download handlers like /down.ashx?file=x.pdf.
func IsAttachmentURL(raw string, extensions map[string]bool) bool {
	if raw == "" {
		return false
	}
	lowered := strings.ToLower(raw)
	if strings.HasPrefix(lowered, "javascript:") ||
		strings.HasPrefix(lowered, "mailto:") ||
		strings.HasPrefix(lowered, "#") {
		return false
	}
	if ext := ExtensionOf(raw); ext != "" && extensions[ext] {
		return true
	}
	for ext := range extensions {
		if strings.Contains(lowered, "."+ext) {
			return true
		}
	}
	return false
}

// ExtensionOf returns the lowercased extension of the URL path, without the
// dot and with the query string stripped.
func ExtensionOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
}

func cleanAttachmentName(name string) string {
	return strings.TrimSpace(attachmentPrefixRe.ReplaceAllString(name, ""))
}

// DetailDate mines a publish date from a detail page for candidates whose
// listing row carried none: configured selectors first, then labeled-date
// regexes over the raw HTML, then any date-labeled line of text.
func DetailDate(html string, rule adapter.Rule) *time.Time {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	for _, selector := range rule.DetailDate.Selectors {
		node := doc.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		if t := MineDate(nodeText(node), rule.DateFormats); t != nil {
			return t
		}
	}

	patterns := rule.DetailDate.Regexes
	if len(patterns) == 0 {
		patterns = defaultDetailDateRegexes
	}
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			if t := ParseDate(m[1], rule.DateFormats); t != nil {
				return t
			}
		}
	}

	for _, line := range strings.Split(doc.Text(), "\n") {
		if !strings.Contains(line, "日期") && !strings.Contains(line, "发布时间") {
			continue
		}
		if t := MineDate(line, rule.DateFormats); t != nil {
			return t
		}
	}
	return nil
}
