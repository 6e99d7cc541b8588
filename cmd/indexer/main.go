package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"wikirag/internal/config"
	"wikirag/internal/indexer"
	"wikirag/internal/service"
)

func main() {
	var (
		cfgPath  string
		skipSync bool
		schedule string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/wikirag/config.yaml)")
	flag.BoolVar(&skipSync, "skip-sync", false, "Index the existing checkout without cloning or pulling the wiki")
	flag.StringVar(&schedule, "schedule", "", "Cron schedule for repeated rebuilds, e.g. \"0 2 * * *\" (overrides index.schedule)")
	flag.Parse()

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if schedule != "" {
		cfg.Index.Schedule = schedule
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	builder, err := service.NewBuilder(cfg, skipSync)
	if err != nil {
		log.Fatalf("failed to set up indexer: %v", err)
	}

	log.Printf("Wiki Indexer: %s/%s", cfg.Wiki.Organization, cfg.Wiki.Project)
	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := builder.Run(ctx)
	if err != nil {
		if errors.Is(err, indexer.ErrLocked) {
			log.Fatalf("another indexer is running: %v", err)
		}
		log.Fatalf("indexing failed: %v", err)
	}
	log.Printf("✓ Done! %d documents, %d chunks indexed into %s", res.Documents, res.Chunks, res.IndexPath)
	if res.Summary != "" {
		log.Printf("Summary: %s", res.Summary)
	}

	if cfg.Index.Schedule == "" {
		return
	}
	sched, err := indexer.NewScheduler(cfg.Index.Schedule, builder)
	if err != nil {
		log.Fatalf("%v", err)
	}
	sched.Start(ctx)
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, used, err := config.LoadDefault()
	if err == nil {
		log.Printf("Using config %s", used)
	}
	return cfg, err
}
