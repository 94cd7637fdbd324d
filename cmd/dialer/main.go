package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/acme/predictive-dialer/internal/api"
	"github.com/acme/predictive-dialer/internal/app"
	"github.com/acme/predictive-dialer/internal/telemetry"
)

func main() {
	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("dialer terminated: %v", err)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container, err := app.Build(ctx, configPath)
	if err != nil {
		return fmt.Errorf("bootstrap application: %w", err)
	}
	defer container.Close()

	cfg := container.Config
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), cfg.Telemetry.ShutdownTimeout)
		defer scancel()
		_ = shutdown(sctx)
	}()

	handlerSet, err := container.HandlerSet()
	if err != nil {
		return fmt.Errorf("build handlers: %w", err)
	}
	server := api.NewServer(cfg.HTTP, handlerSet)

	lg := container.Logger
	runErr := make(chan error, 1)
	go func() {
		runErr <- container.Run(ctx)
		cancel()
	}()

	lg.Info("dialer listening",
		zap.Int("port", cfg.HTTP.Port),
		zap.String("provider", cfg.Telephony.Provider),
		zap.String("lead_source", cfg.LeadSource.Kind),
	)
	if err := server.Start(ctx); err != nil {
		lg.Error("server terminated", zap.Error(err))
		cancel()
	}

	return <-runErr
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
