// Package ledger appends outcome records to the success and failure CSV
// files. All appends funnel through one mutex so records from parallel job
// pipelines never interleave.
package ledger

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"docwatch-engine/internal/domain"
)

var header = []string{
	"keyword", "site", "title", "published",
	"attachment_url", "filename", "status", "reason", "time",
}

type Ledger struct {
	mu           sync.Mutex
	successPath  string
	failuresPath string
}

func New(successPath, failuresPath string) *Ledger {
	return &Ledger{successPath: successPath, failuresPath: failuresPath}
}

// Record appends one outcome to the ledger matching its status.
func (l *Ledger) Record(o domain.Outcome) error {
	path := l.successPath
	if o.Status == domain.StatusFailure {
		path = l.failuresPath
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	published := ""
	if o.Published != nil {
		published = o.Published.Format(time.RFC3339)
	}
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	if err := w.Write([]string{
		o.Keyword, o.Site, o.Title, published,
		o.AttachmentURL, o.Filename, string(o.Status), o.Reason,
		at.Format(time.RFC3339),
	}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
