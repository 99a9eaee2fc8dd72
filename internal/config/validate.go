package config

import (
	"errors"
	"fmt"
	"strings"

	"docwatch-engine/internal/adapter"
)

func Validate(cfg Config) error {
	var errs []string

	if cfg.Crawl.JobsPath == "" {
		errs = append(errs, "crawl.jobs_path is required")
	}
	if cfg.Crawl.DownloadRoot == "" {
		errs = append(errs, "crawl.download_root is required")
	}
	if cfg.Crawl.SuccessPath == "" {
		errs = append(errs, "crawl.success_path is required")
	}
	if cfg.Crawl.FailuresPath == "" {
		errs = append(errs, "crawl.failures_path is required")
	}

	for domain, rule := range cfg.SiteOverrides {
		if strings.TrimSpace(domain) == "" {
			errs = append(errs, "site_overrides contains an empty domain key")
		}
		switch rule.FetchMode {
		case "", adapter.FetchStatic, adapter.FetchDynamic:
		default:
			errs = append(errs, fmt.Sprintf("site_overrides[%s].fetch_mode must be static or dynamic", domain))
		}
		switch rule.Detail.FetchMode {
		case "", adapter.FetchStatic, adapter.FetchDynamic:
		default:
			errs = append(errs, fmt.Sprintf("site_overrides[%s].detail_page.fetch_mode must be static or dynamic", domain))
		}
		switch rule.QueryEncoding {
		case "", adapter.EncodeSingle, adapter.EncodeDouble, adapter.EncodeNone:
		default:
			errs = append(errs, fmt.Sprintf("site_overrides[%s].query_encoding must be single, double or none", domain))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}
