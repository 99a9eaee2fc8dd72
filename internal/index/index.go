// Package index keeps the cross-run download index: which URLs were fetched
// and the content hashes that landed on disk. It is what lets a re-run skip
// everything it already has.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

type Item struct {
	URL          string
	SHA256       string
	Path         string
	Title        string
	Published    *time.Time
	Kind         string // attachment | direct_file | detail_html
	DownloadedAt time.Time
}

func Open(path string) (*Store, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1) // sqlite typically wants 1 writer
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS downloads (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  url TEXT NOT NULL UNIQUE,
  sha256 TEXT NOT NULL,
  path TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  published TEXT,
  kind TEXT NOT NULL DEFAULT 'attachment',
  downloaded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_downloads_sha256 ON downloads(sha256);
`)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) HasURL(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM downloads WHERE url = ? LIMIT 1;`, url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) HasHash(ctx context.Context, sha string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM downloads WHERE sha256 = ? LIMIT 1;`, sha).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record inserts a download entry; a URL seen before is ignored, keeping the
// index append-only and re-run safe.
func (s *Store) Record(ctx context.Context, item Item) error {
	if item.DownloadedAt.IsZero() {
		item.DownloadedAt = time.Now().UTC()
	}
	var published any
	if item.Published != nil {
		published = item.Published.Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO downloads(url, sha256, path, title, published, kind, downloaded_at)
VALUES(?,?,?,?,?,?,?);`,
		item.URL,
		item.SHA256,
		item.Path,
		item.Title,
		published,
		item.Kind,
		item.DownloadedAt.Format(time.RFC3339),
	)
	return err
}
