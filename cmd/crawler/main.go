package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"docwatch-engine/internal/adapter"
	"docwatch-engine/internal/config"
	"docwatch-engine/internal/download"
	"docwatch-engine/internal/fetch"
	"docwatch-engine/internal/index"
	"docwatch-engine/internal/jobs"
	"docwatch-engine/internal/ledger"
	"docwatch-engine/internal/run"
)

func main() {
	cfgFlag := flag.String("config", "", "path to config.yml (default: <data dir>/config.yml)")
	dryRun := flag.Bool("dry-run", false, "discover and filter candidates but download nothing")
	flag.Parse()

	// Data dir: env wins (the launcher passes one), else local folder.
	dataDir := os.Getenv("DOCWATCH_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	cfgPath := *cfgFlag
	if cfgPath == "" {
		p, err := config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			log.Fatalf("config bootstrap failed: %v", err)
		}
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", cfgPath, err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal(err)
	}
	if *dryRun {
		cfg.Crawl.DryRun = true
	}

	if cfg.App.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.App.LogPath), 0o755); err != nil {
			log.Fatal(err)
		}
		logFile, err := os.OpenFile(cfg.App.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatal(err)
		}
		defer logFile.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	}

	// One run at a time per data dir, so ledger and index writes from two
	// processes can't interleave.
	lock := flock.New(filepath.Join(dataDir, "docwatch.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("run lock: %v", err)
	}
	if !locked {
		log.Fatalf("another run holds %s", lock.Path())
	}
	defer lock.Unlock()

	jobList, err := jobs.Load(cfg.Crawl.JobsPath)
	if err != nil {
		log.Fatalf("jobs load failed (%s): %v", cfg.Crawl.JobsPath, err)
	}
	if len(jobList) == 0 {
		log.Printf("no valid jobs in %s, nothing to do", cfg.Crawl.JobsPath)
		return
	}

	indexPath := cfg.Crawl.IndexPath
	if indexPath == "" {
		indexPath = filepath.Join(dataDir, "downloads.db")
	}
	idx, err := index.Open(indexPath)
	if err != nil {
		log.Fatalf("index open failed (%s): %v", indexPath, err)
	}
	defer idx.Close()

	timeout := time.Duration(cfg.Crawl.RequestTimeoutSeconds) * time.Second
	limiter := fetch.NewHostLimiter(cfg.Concurrency.HostReqPerSec, cfg.Concurrency.HostBurst)

	deps := run.Deps{
		Registry: adapter.NewRegistry(cfg.SiteOverrides),
		Fetchers: &fetch.Pool{
			Static:  fetch.NewStatic(timeout, limiter),
			Dynamic: fetch.NewDynamic(int64(cfg.Concurrency.BrowserSessions)),
		},
		Manager:   download.NewManager(cfg.Crawl.DownloadRoot, cfg.Crawl.UserAgent, timeout, idx, limiter),
		Ledger:    ledger.New(cfg.Crawl.SuccessPath, cfg.Crawl.FailuresPath),
		Timeout:   timeout,
		UserAgent: cfg.Crawl.UserAgent,
		DryRun:    cfg.Crawl.DryRun,
		JobLimit:  cfg.Concurrency.Jobs,
	}
	defer deps.Fetchers.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("starting run: %d jobs, dry_run=%v", len(jobList), cfg.Crawl.DryRun)
	summary := run.Run(ctx, jobList, deps)
	log.Printf("run complete: %s", summary)
}
