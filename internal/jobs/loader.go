// Package jobs loads the operator spreadsheet: one row per (keyword, site,
// baseline date). Rows that are incomplete or carry an unparseable date are
// skipped with a warning — they never fail a run.
package jobs

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"docwatch-engine/internal/domain"
	"docwatch-engine/internal/extract"
)

// Load reads jobs from an .xlsx or .csv file, picked by extension.
func Load(path string) ([]domain.Job, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadExcel(path)
	case ".csv":
		return loadCSV(path)
	default:
		return nil, fmt.Errorf("jobs file %s: unsupported format (want .xlsx or .csv)", path)
	}
}

func loadExcel(path string) ([]domain.Job, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func loadCSV(path string) ([]domain.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]domain.Job, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	keywordCol, urlCol, dateCol := resolveColumns(rows[0])
	if keywordCol < 0 || urlCol < 0 || dateCol < 0 {
		return nil, fmt.Errorf("jobs file is missing a keyword, url or publish-time column")
	}

	var out []domain.Job
	for i, row := range rows[1:] {
		keyword := cell(row, keywordCol)
		siteURL := cell(row, urlCol)
		baseline := parseBaseline(cell(row, dateCol))
		if keyword == "" || siteURL == "" || baseline == nil {
			log.Printf("[jobs] skipping row %d: empty field or unparseable date (%q, %q, %q)",
				i+2, keyword, siteURL, cell(row, dateCol))
			continue
		}
		out = append(out, domain.Job{Keyword: keyword, SiteURL: siteURL, Baseline: *baseline})
	}
	return out, nil
}

// resolveColumns finds the three required columns by fuzzy header match; the
// operator sheets use Chinese headers, English ones are accepted too.
func resolveColumns(header []string) (keyword, url, date int) {
	keyword, url, date = -1, -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case keyword < 0 && (strings.Contains(name, "文件名") || strings.Contains(name, "keyword") || strings.Contains(name, "file")):
			keyword = i
		case url < 0 && (strings.Contains(name, "网址") || strings.Contains(name, "网站") || strings.Contains(name, "链接") || strings.Contains(name, "url") || strings.Contains(name, "site")):
			url = i
		case date < 0 && (strings.Contains(name, "发布") || strings.Contains(name, "时间") || strings.Contains(name, "date") || strings.Contains(name, "time")):
			date = i
		}
	}
	return keyword, url, date
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseBaseline(value string) *time.Time {
	if value == "" {
		return nil
	}
	// Excel can hand back the raw day serial when the cell has no format.
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial < 1 || serial > 300000 {
			return nil
		}
		t := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(serial))
		return &t
	}
	return extract.ParseDate(value, nil)
}
