package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/audit"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/config"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		outputFile = flag.String("output", "", "Output Parquet file path")
		recent     = flag.Int("recent", 0, "Print the N most recent events instead of exporting")
	)
	flag.Parse()

	if *outputFile == "" && *recent <= 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --output audit.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --recent 20\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Audit.DatabaseURL == "" {
		fmt.Fprintf(os.Stderr, "audit.database_url is not configured\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling")
		cancel()
	}()

	store, err := audit.NewStore(cfg.Audit, log.WithComponent("audit").Logger)
	if err != nil {
		log.Fatal("Failed to open audit store", zap.Error(err))
	}
	defer store.Close()

	if *recent > 0 {
		events, err := store.Recent(ctx, *recent)
		if err != nil {
			log.Fatal("Failed to query audit events", zap.Error(err))
		}
		for _, e := range events {
			fmt.Printf("%s  %-16s map=%s tokens=%d strategy=%s %.2fms\n",
				e.OccurredAt.Format(time.RFC3339), e.Operation, e.MapID,
				e.TokenCount, e.Strategy, e.DurationMS)
		}
		return
	}

	rows, err := store.ExportParquet(ctx, *outputFile)
	if err != nil {
		log.Fatal("Export failed", zap.Error(err))
	}

	log.Info("Export complete",
		zap.String("output", *outputFile),
		zap.Int("rows", rows),
	)
}
