package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/rollup/internal/app"
	corecfg "github.com/aevon-lab/rollup/internal/core/config"
)

func main() {
	configPath := flag.String("config", "rollup.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))
	slog.Info("Loaded config", "path", *configPath, "policy", cfg.Aggregation.PolicyPath)

	// Signal handler triggers the shutdown sequence below.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Wire schema, aggregator and HTTP services
	a, err := app.Build(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	// 3. Serve until signalled
	if err := a.Run(ctx); err != nil {
		slog.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

func newLogger(c corecfg.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
