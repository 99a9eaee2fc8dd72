package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"docwatch-engine/internal/adapter"
)

type Config struct {
	App struct {
		DataDir string `yaml:"data_dir"`
		LogPath string `yaml:"log_path"`
	} `yaml:"app"`

	Crawl struct {
		JobsPath              string `yaml:"jobs_path"`
		DownloadRoot          string `yaml:"download_root"`
		IndexPath             string `yaml:"index_path"`
		SuccessPath           string `yaml:"success_path"`
		FailuresPath          string `yaml:"failures_path"`
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
		UserAgent             string `yaml:"user_agent"`
		DryRun                bool   `yaml:"dry_run"`
	} `yaml:"crawl"`

	Concurrency struct {
		Jobs            int     `yaml:"jobs"`
		BrowserSessions int     `yaml:"browser_sessions"`
		HostReqPerSec   float64 `yaml:"host_requests_per_second"`
		HostBurst       int     `yaml:"host_burst"`
	} `yaml:"concurrency"`

	SiteOverrides map[string]adapter.Rule `yaml:"site_overrides"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = "."
	}
	if cfg.Crawl.RequestTimeoutSeconds <= 0 {
		cfg.Crawl.RequestTimeoutSeconds = 20
	}
	if cfg.Crawl.UserAgent == "" {
		cfg.Crawl.UserAgent = "Mozilla/5.0 (compatible; docwatch/1.0)"
	}
	if cfg.Concurrency.Jobs <= 0 {
		cfg.Concurrency.Jobs = 4
	}
	if cfg.Concurrency.BrowserSessions <= 0 {
		cfg.Concurrency.BrowserSessions = 2
	}
	if cfg.Concurrency.HostReqPerSec <= 0 {
		cfg.Concurrency.HostReqPerSec = 1.0
	}
	if cfg.Concurrency.HostBurst <= 0 {
		cfg.Concurrency.HostBurst = 2
	}
}
