package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docwatch-engine/internal/domain"
	"docwatch-engine/internal/index"
)

func testJob() domain.Job {
	return domain.Job{Keyword: "policy X", SiteURL: "https://example.org"}
}

func testCandidate() domain.Candidate {
	pub := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return domain.Candidate{Title: "policy X notice", URL: "https://example.org/articles/1.html", Published: &pub}
}

func newTestManager(t *testing.T, idx *index.Store) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), "docwatch-test", 5*time.Second, idx, nil)
}

func openTestIndex(t *testing.T) *index.Store {
	t.Helper()
	s, err := index.Open(filepath.Join(t.TempDir(), "downloads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDownloadWritesFileAndIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4 content"))
	}))
	defer srv.Close()

	idx := openTestIndex(t)
	m := newTestManager(t, idx)

	att := domain.Attachment{URL: srv.URL + "/files/report.pdf", Name: "report", Ext: "pdf"}
	outcome := m.Download(context.Background(), testJob(), testCandidate(), att, "example.org")

	assert.Equal(t, domain.StatusSuccess, outcome.Status)
	assert.Equal(t, "downloaded", outcome.Reason)
	assert.Equal(t, "report.pdf", outcome.Filename, "URL extension appended to the display name")

	dest := filepath.Join(m.DestDir("example.org", testCandidate()), "report.pdf")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 content", string(data))

	seen, err := idx.HasURL(context.Background(), att.URL)
	require.NoError(t, err)
	assert.True(t, seen)
}

// Attachment already at the destination: success "already present" and no
// network fetch issued.
func TestDownloadAlreadyPresentSkipsFetch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	m := newTestManager(t, nil)
	cand := testCandidate()
	destDir := m.DestDir("example.org", cand)
	require.NoError(t, os.MkdirAll(destDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "report.pdf"), []byte("old"), 0o644))

	att := domain.Attachment{URL: srv.URL + "/report.pdf", Name: "report", Ext: "pdf"}
	outcome := m.Download(context.Background(), testJob(), cand, att, "example.org")

	assert.Equal(t, domain.StatusSuccess, outcome.Status)
	assert.Equal(t, "already present", outcome.Reason)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDownloadIndexedURLSkipsFetch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	idx := openTestIndex(t)
	m := newTestManager(t, idx)

	att := domain.Attachment{URL: srv.URL + "/report.pdf", Name: "report", Ext: "pdf"}
	first := m.Download(context.Background(), testJob(), testCandidate(), att, "example.org")
	require.Equal(t, "downloaded", first.Reason)
	require.Equal(t, int32(1), calls.Load())

	// Remove the file; the URL stays in the index, so no re-fetch.
	require.NoError(t, os.Remove(filepath.Join(m.DestDir("example.org", testCandidate()), "report.pdf")))

	second := m.Download(context.Background(), testJob(), testCandidate(), att, "example.org")
	assert.Equal(t, domain.StatusSuccess, second.Status)
	assert.Equal(t, "already recorded in index", second.Reason)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownloadDuplicateContentDiscarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("identical bytes"))
	}))
	defer srv.Close()

	idx := openTestIndex(t)
	m := newTestManager(t, idx)

	first := m.Download(context.Background(), testJob(), testCandidate(),
		domain.Attachment{URL: srv.URL + "/a.pdf", Name: "a", Ext: "pdf"}, "example.org")
	require.Equal(t, "downloaded", first.Reason)

	second := m.Download(context.Background(), testJob(), testCandidate(),
		domain.Attachment{URL: srv.URL + "/b.pdf", Name: "b", Ext: "pdf"}, "example.org")
	assert.Equal(t, domain.StatusSuccess, second.Status)
	assert.Equal(t, "duplicate content, discarded", second.Reason)
	assert.NoFileExists(t, filepath.Join(m.DestDir("example.org", testCandidate()), "b.pdf"))
}

func TestDownloadFailureClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/forbidden.pdf":
			w.WriteHeader(http.StatusForbidden)
		case "/flaky.pdf":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	m := newTestManager(t, nil)

	forbidden := m.Download(context.Background(), testJob(), testCandidate(),
		domain.Attachment{URL: srv.URL + "/forbidden.pdf", Ext: "pdf"}, "example.org")
	assert.Equal(t, domain.StatusFailure, forbidden.Status)
	assert.Contains(t, forbidden.Reason, "forbidden:")

	network := m.Download(context.Background(), testJob(), testCandidate(),
		domain.Attachment{URL: srv.URL + "/flaky.pdf", Ext: "pdf"}, "example.org")
	assert.Equal(t, domain.StatusFailure, network.Status)
	assert.Contains(t, network.Reason, "network:")

	unknown := m.Download(context.Background(), testJob(), testCandidate(),
		domain.Attachment{URL: srv.URL + "/odd.pdf", Ext: "pdf"}, "example.org")
	assert.Equal(t, domain.StatusFailure, unknown.Status)
	assert.Contains(t, unknown.Reason, "unknown:")
}

func TestDestDirLayout(t *testing.T) {
	m := newTestManager(t, nil)
	dir := m.DestDir("example.org", testCandidate())
	assert.Equal(t, filepath.Join(m.Root, "example.org", "20250201", "policy X notice"), dir)

	dateless := domain.Candidate{Title: "no/date: item?"}
	dir = m.DestDir("example.org", dateless)
	assert.Equal(t, filepath.Join(m.Root, "example.org", "unknown_date", "nodate item"), dir)
}

func TestFilenameFor(t *testing.T) {
	assert.Equal(t, "report.pdf", FilenameFor(domain.Attachment{Name: "report", Ext: "pdf"}))
	assert.Equal(t, "report.pdf", FilenameFor(domain.Attachment{Name: "report.pdf", Ext: "pdf"}))
	assert.Equal(t, "a.pdf", FilenameFor(domain.Attachment{URL: "https://x.org/files/a.pdf", Ext: "pdf"}))
	assert.Equal(t, "attachment.pdf", FilenameFor(domain.Attachment{URL: "https://x.org/", Ext: "pdf"}))
	assert.Equal(t, "attachment", FilenameFor(domain.Attachment{URL: "https://x.org/"}))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "abc", SafeFilename(`a\b/c`))
	assert.Equal(t, "file", SafeFilename("  "))
	assert.Equal(t, "report 2025", SafeFilename(`report: 2025?`))
}
