package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docwatch-engine/internal/adapter"
)

// Detail page with report.pdf, notes.txt and report.PDF?v=2; allowed
// extensions {pdf, doc}. Expected: both pdf links kept as distinct URLs,
// notes.txt discarded.
func TestDetailExtensionFilterScenario(t *testing.T) {
	html := `
<html><body>
<h1>policy X full text</h1>
<div class="attachments">
  <a href="report.pdf">report</a>
  <a href="notes.txt">notes</a>
  <a href="report.PDF?v=2">report v2</a>
</div>
</body></html>`

	rule := adapter.Rule{}
	rule.Detail.AttachmentExtensions = []string{"pdf", "doc"}

	title, atts, err := Detail(html, rule, "https://example.org/articles/1.html", "listing title")
	require.NoError(t, err)
	assert.Equal(t, "policy X full text", title)

	require.Len(t, atts, 2)
	assert.Equal(t, "https://example.org/articles/report.pdf", atts[0].URL)
	assert.Equal(t, "pdf", atts[0].Ext)
	assert.Equal(t, "https://example.org/articles/report.PDF?v=2", atts[1].URL)
	assert.Equal(t, "pdf", atts[1].Ext, "extension compare is case-insensitive with the query stripped")
}

func TestDetailTitleCascade(t *testing.T) {
	rule := adapter.Rule{}
	rule.Detail.TitleSelectors = []string{"h1.missing", "h2.sub"}

	html := `<html><head><title>doc title</title></head>
<body><h2 class="sub">refined heading</h2></body></html>`
	title, _, err := Detail(html, rule, "https://example.org/", "listing title")
	require.NoError(t, err)
	assert.Equal(t, "refined heading", title, "first selector that yields text wins")

	html = `<html><head><title>doc title</title>
<meta property="og:title" content="og heading"/></head><body></body></html>`
	title, _, err = Detail(html, rule, "https://example.org/", "listing title")
	require.NoError(t, err)
	assert.Equal(t, "og heading", title)

	title, _, err = Detail("<html><body></body></html>", rule, "https://example.org/", "listing title")
	require.NoError(t, err)
	assert.Equal(t, "listing title", title, "falls back to the listing-page title")
}

func TestAttachmentsUnionAndDedupe(t *testing.T) {
	html := `
<div class="primary"><a href="/files/a.pdf">附件1：year report</a></div>
<div class="secondary"><a href="/files/a.pdf">year report again</a>
<a href="/files/b.xlsx">data sheet</a></div>`

	rule := adapter.Rule{}
	rule.Detail.AttachmentSelectors = []string{"div.primary a[href]", "div.secondary a[href]"}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	atts := Attachments(doc, rule, "https://example.org/x")
	require.Len(t, atts, 2, "union across selectors, deduplicated by resolved URL")
	assert.Equal(t, "year report", atts[0].Name, "附件 prefix is stripped from the display name")
	assert.Equal(t, "data sheet", atts[1].Name)
}

func TestAttachmentsTextKeywordFilter(t *testing.T) {
	html := `
<p><a href="/files/keep.pdf">正式附件下载</a></p>
<p><a href="/files/drop.pdf">unrelated banner</a></p>`

	rule := adapter.Rule{}
	rule.Detail.TextKeywords = []string{"下载"}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	atts := Attachments(doc, rule, "https://example.org/")
	require.Len(t, atts, 1)
	assert.Contains(t, atts[0].URL, "keep.pdf")
}

func TestIsAttachmentURL(t *testing.T) {
	exts := map[string]bool{"pdf": true, "zip": true}

	assert.True(t, IsAttachmentURL("https://x.org/a/report.pdf", exts))
	assert.True(t, IsAttachmentURL("https://x.org/a/report.PDF?v=2", exts))
	assert.True(t, IsAttachmentURL("https://x.org/down.ashx?file=pack.zip", exts), "download handlers count via the .ext fallback")
	assert.False(t, IsAttachmentURL("https://x.org/a/notes.txt", exts))
	assert.False(t, IsAttachmentURL("javascript:void(0)", exts))
	assert.False(t, IsAttachmentURL("mailto:someone@example.org", exts))
	assert.False(t, IsAttachmentURL("#top", exts))
	assert.False(t, IsAttachmentURL("", exts))
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, "pdf", ExtensionOf("https://x.org/a/report.PDF?v=2"))
	assert.Equal(t, "docx", ExtensionOf("https://x.org/file.docx"))
	assert.Equal(t, "", ExtensionOf("https://x.org/page"))
}

func TestDetailDate(t *testing.T) {
	rule := adapter.Rule{}
	rule.DetailDate.Selectors = []string{"div.meta"}

	html := `<html><body><div class="meta">发布时间：2025-02-01</div></body></html>`
	got := DetailDate(html, rule)
	require.NotNil(t, got)
	assert.Equal(t, "2025-02-01", got.Format("2006-01-02"))

	// No selector hit: the labeled-date regexes over the raw HTML still find it.
	html = `<html><body><p>发布日期：2025年2月1日</p></body></html>`
	got = DetailDate(html, adapter.Rule{})
	require.NotNil(t, got)
	assert.Equal(t, "2025-02-01", got.Format("2006-01-02"))

	assert.Nil(t, DetailDate("<html><body><p>no dates</p></body></html>", adapter.Rule{}))
}
