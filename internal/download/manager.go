// Package download persists attachments under the download root and records
// one outcome per attempt. It is the only component with filesystem side
// effects besides the ledgers.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docwatch-engine/internal/domain"
	"docwatch-engine/internal/fetch"
	"docwatch-engine/internal/index"
)

// Failure reasons are prefixed with a class so operators can grep the
// failure ledger by cause.
const (
	classNetwork   = "network"
	classForbidden = "forbidden"
	classUnknown   = "unknown"
)

type Manager struct {
	Root      string
	UserAgent string
	Index     *index.Store
	Limiter   *fetch.HostLimiter

	hc *http.Client
}

func NewManager(root, userAgent string, timeout time.Duration, idx *index.Store, limiter *fetch.HostLimiter) *Manager {
	return &Manager{
		Root:      root,
		UserAgent: userAgent,
		Index:     idx,
		Limiter:   limiter,
		hc:        &http.Client{Timeout: timeout},
	}
}

// DestDir is the per-candidate folder: root/<domain>/<YYYYMMDD>/<title>.
// Grouping by site and date keeps unrelated jobs from colliding on filenames.
func (m *Manager) DestDir(host string, cand domain.Candidate) string {
	date := "unknown_date"
	if cand.Published != nil {
		date = cand.Published.Format("20060102")
	}
	title := SafeFilename(cand.Title)
	return filepath.Join(m.Root, host, date, title)
}

// Fetch one attachment to its destination. Idempotent: a file already at the
// destination, a URL already in the index, or content whose hash is already
// indexed all short-circuit to a success outcome without (re)writing.
func (m *Manager) Download(ctx context.Context, job domain.Job, cand domain.Candidate, att domain.Attachment, host string) domain.Outcome {
	destDir := m.DestDir(host, cand)
	filename := FilenameFor(att)
	destPath := filepath.Join(destDir, filename)

	if _, err := os.Stat(destPath); err == nil {
		return domain.SuccessOutcome(job, cand, att, filename, "already present")
	}

	if m.Index != nil {
		if seen, err := m.Index.HasURL(ctx, att.URL); err == nil && seen {
			return domain.SuccessOutcome(job, cand, att, filename, "already recorded in index")
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return domain.FailureOutcome(job, cand, att, fmt.Sprintf("%s: mkdir: %v", classUnknown, err))
	}

	sha, err := m.fetchToFile(ctx, att.URL, destPath)
	if err != nil {
		return domain.FailureOutcome(job, cand, att, classify(err))
	}

	if m.Index != nil {
		if dup, err := m.Index.HasHash(ctx, sha); err == nil && dup {
			_ = os.Remove(destPath)
			return domain.SuccessOutcome(job, cand, att, filename, "duplicate content, discarded")
		}
		_ = m.Index.Record(ctx, index.Item{
			URL:       att.URL,
			SHA256:    sha,
			Path:      destPath,
			Title:     cand.Title,
			Published: cand.Published,
			Kind:      "attachment",
		})
	}
	return domain.SuccessOutcome(job, cand, att, filename, "downloaded")
}

// SaveDetailHTML writes a detail page alongside the candidate's attachments
// when the site rule asks for it.
func (m *Manager) SaveDetailHTML(ctx context.Context, job domain.Job, cand domain.Candidate, host, html string) error {
	destDir := m.DestDir(host, cand)
	filename := "detail_" + SafeFilename(cand.Title) + ".html"
	destPath := filepath.Join(destDir, filename)

	if _, err := os.Stat(destPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(destPath, []byte(html), 0o644); err != nil {
		return err
	}
	if m.Index != nil {
		sum := sha256.Sum256([]byte(html))
		_ = m.Index.Record(ctx, index.Item{
			URL:       cand.URL,
			SHA256:    hex.EncodeToString(sum[:]),
			Path:      destPath,
			Title:     cand.Title,
			Published: cand.Published,
			Kind:      "detail_html",
		})
	}
	return nil
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string { return fmt.Sprintf("status %d", e.status) }

func (m *Manager) fetchToFile(ctx context.Context, rawURL, destPath string) (string, error) {
	if m.Limiter != nil {
		if err := m.Limiter.WaitURL(ctx, rawURL); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	if m.UserAgent != "" {
		req.Header.Set("User-Agent", m.UserAgent)
	}

	res, err := m.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", &httpStatusError{status: res.StatusCode}
	}

	f, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	hasher := sha256.New()
	_, copyErr := io.Copy(f, io.TeeReader(res.Body, hasher))
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(destPath)
		if copyErr != nil {
			return "", copyErr
		}
		return "", closeErr
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func classify(err error) string {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.status {
		case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
			return fmt.Sprintf("%s: %v", classForbidden, err)
		}
		if statusErr.status >= 500 {
			return fmt.Sprintf("%s: %v", classNetwork, err)
		}
		return fmt.Sprintf("%s: %v", classUnknown, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s: %v", classNetwork, err)
	}
	return fmt.Sprintf("%s: %v", classUnknown, err)
}

// FilenameFor derives a deterministic filename for an attachment: the link's
// display name (with the URL extension appended when the name has none),
// else the URL path basename.
func FilenameFor(att domain.Attachment) string {
	if strings.TrimSpace(att.Name) != "" {
		name := SafeFilename(att.Name)
		if filepath.Ext(name) == "" && att.Ext != "" {
			return name + "." + att.Ext
		}
		return name
	}
	if u, err := url.Parse(att.URL); err == nil {
		if base := filepath.Base(u.Path); base != "." && base != "/" && base != "" {
			return SafeFilename(base)
		}
	}
	if att.Ext != "" {
		return "attachment." + att.Ext
	}
	return "attachment"
}

// SafeFilename strips characters that are illegal on common filesystems.
func SafeFilename(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "file"
	}
	return out
}
