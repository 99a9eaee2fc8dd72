package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "downloads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pub := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, Item{
		URL:       "https://example.org/a.pdf",
		SHA256:    "abc123",
		Path:      "/tmp/a.pdf",
		Title:     "notice",
		Published: &pub,
		Kind:      "attachment",
	}))

	seen, err := s.HasURL(ctx, "https://example.org/a.pdf")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.HasURL(ctx, "https://example.org/other.pdf")
	require.NoError(t, err)
	assert.False(t, seen)

	dup, err := s.HasHash(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = s.HasHash(ctx, "different")
	require.NoError(t, err)
	assert.False(t, dup)
}

// Recording the same URL twice is a no-op, not an error: the index is
// append-only and re-run safe.
func TestRecordIgnoresDuplicateURL(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	item := Item{URL: "https://example.org/a.pdf", SHA256: "h1", Path: "/tmp/a.pdf"}
	require.NoError(t, s.Record(ctx, item))

	item.SHA256 = "h2"
	require.NoError(t, s.Record(ctx, item))

	dup, err := s.HasHash(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, dup, "first record wins")

	dup, err = s.HasHash(ctx, "h2")
	require.NoError(t, err)
	assert.False(t, dup)
}
