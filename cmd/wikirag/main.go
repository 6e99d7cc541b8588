package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"wikirag/internal/api"
	"wikirag/internal/config"
	"wikirag/internal/mcpserver"
	"wikirag/internal/service"
	"wikirag/internal/tui"
)

const version = "0.3.0"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/wikirag/config.yaml)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [--config=config.yaml] [tui|serve|mcp]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	mode := "tui"
	if flag.NArg() > 0 {
		mode = flag.Arg(0)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	rc := service.NewContext(cfg, service.Factories{})
	defer func() {
		if err := rc.Close(); err != nil {
			log.Printf("Error closing index: %v", err)
		}
	}()
	svc := service.NewRAGService(cfg, rc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "tui":
		err = runTUI(ctx, svc)
	case "serve":
		router := api.NewRouter(svc, api.RouterOptions{Version: version, AllowedOrigins: cfg.Server.AllowedOrigins})
		err = api.Serve(ctx, cfg.Server.Addr, router)
	case "mcp":
		err = mcpserver.Run(ctx, svc, version)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runTUI(ctx context.Context, svc *service.RAGService) error {
	var summary string
	if m, err := svc.Manifest(ctx); err == nil {
		summary = fmt.Sprintf("%d pages, %d chunks (%s, built %s)", m.Documents, m.Chunks, m.Embedder, m.BuiltAt.Format("2006-01-02 15:04"))
		if m.Summary != "" {
			summary += "\n" + m.Summary
		}
	} else {
		summary = "Index unavailable: " + err.Error()
	}
	_, err := tea.NewProgram(tui.New(svc, summary), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
