package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/audit"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/config"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/engine"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/events"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/logger"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("anon-infer-proxy %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting anon-infer-proxy",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	eng, err := engine.New(cfg.Engine, log.WithComponent("engine").Logger)
	if err != nil {
		log.Fatal("Failed to create anonymization engine", zap.Error(err))
	}
	defer eng.Close()

	hub := events.NewHub(cfg.Events, log.WithComponent("events").Logger)

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.NewStore(cfg.Audit, log.WithComponent("audit").Logger)
		if err != nil {
			log.Fatal("Failed to create audit store", zap.Error(err))
		}
		defer auditStore.Close()
	}

	srv := server.New(cfg, log, eng, hub, auditStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartLimiterCleanup(ctx)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck probes the running server and exits accordingly.
func performHealthCheck() {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
