// Command arachned crawls the sites named in a YAML configuration file
// and keeps a local search index of their directory listings current.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/arachnesearch/arachne/config"
	"github.com/arachnesearch/arachne/supervisor"
)

func main() {
	configPath := flag.String("config", "arachne.yaml", "path to the site configuration file")
	spoolDir := flag.String("spool-dir", "spool", "directory for task/result queue state")
	indexPath := flag.String("index", filepath.Join("database", "index", "index.db"), "path to the search index database")
	numCrawlers := flag.Int("crawlers", 4, "number of concurrent crawler workers")
	flag.Parse()

	f, err := os.Open(*configPath)
	if err != nil {
		log.Fatalf("arachned: open config: %v", err)
	}
	cfg, err := config.Decode(f)
	f.Close()
	if err != nil {
		log.Fatalf("arachned: decode config: %v", err)
	}
	sites, err := config.ToSites(cfg)
	if err != nil {
		log.Fatalf("arachned: resolve sites: %v", err)
	}

	tasksDir := cfg.TasksDir
	if tasksDir == "" {
		tasksDir = filepath.Join(*spoolDir, "tasks")
	}
	resultsDir := cfg.ResultsDir
	if resultsDir == "" {
		resultsDir = filepath.Join(*spoolDir, "results")
	}
	index := cfg.IndexPath
	if index == "" {
		index = *indexPath
	}
	if err := os.MkdirAll(filepath.Dir(index), 0o755); err != nil {
		log.Fatalf("arachned: create index directory: %v", err)
	}

	workers := cfg.NumCrawlers
	if workers == 0 {
		workers = *numCrawlers
	}

	sup, err := supervisor.New(supervisor.Config{
		TasksDir:    tasksDir,
		ResultsDir:  resultsDir,
		IndexPath:   index,
		NumCrawlers: workers,
		Sites:       sites,
	})
	if err != nil {
		log.Fatalf("arachned: start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchStop, err := supervisor.WatchConfig(sup, *configPath)
	if err != nil {
		log.Printf("arachned: config watch disabled: %v", err)
	} else {
		defer watchStop()
	}

	sup.Start(ctx)
	log.Printf("arachned: running %d site(s) with %d worker(s)", len(sites), workers)

	<-ctx.Done()
	log.Printf("arachned: shutting down")

	if err := sup.Stop(context.Background()); err != nil {
		log.Fatalf("arachned: shutdown: %v", err)
	}
}
