package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"todoapp/internal/shared/config"
	"todoapp/internal/shared/logger"
	"todoapp/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal("Application error", "err", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logOpts := logger.DefaultOptions("api")
	logOpts.Level = cfg.Log.Level
	logOpts.Format = cfg.Log.Format
	if _, err := logger.Setup(logOpts); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry is optional; the otel globals are no-ops without it
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				log.Error("Error shutting down telemetry", "err", err)
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	handler := SetupRoutes(deps, cfg)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(handler, cfg))

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	stop()

	// Hijacked watch connections are not tracked by Shutdown; closing the
	// broker sends them a going-away frame.
	deps.Broker.Close()
	GracefulShutdown(srv, redirectSrv, cfg.Server.ShutdownTimeout)
	return nil
}
