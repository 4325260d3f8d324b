package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/birbparty/kvdb/internal/emulator"
	"github.com/birbparty/kvdb/internal/telemetry"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load emulator configuration
	cfg, err := emulator.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	tcfg := telemetry.NewConfigFromEnv("kvdb-emulator")
	tcfg.LogLevel = cfg.LogLevel

	providers, err := telemetry.Init(context.Background(), tcfg, os.Stdout)
	if err != nil {
		logrus.Fatalf("Failed to initialize telemetry: %v", err)
	}
	log := providers.Log

	store, err := emulator.OpenStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer store.Close()
	log.WithField("store", cfg.Store).Info("Store ready")

	// logging runs inside the tracing span so entries carry trace ids
	server := emulator.NewServer(cfg, store,
		emulator.WithLogger(log),
		emulator.WithMiddleware(
			telemetry.FiberTracingMiddleware(providers.TracerProvider),
			telemetry.FiberLoggingMiddleware(providers.Log),
		),
	)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go emulator.NewSweeper(server.Grants(), cfg.SweepInterval, log).Start(sweepCtx)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down gracefully...")
		stopSweeper()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server forced to shutdown")
		}
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to flush telemetry")
		}
	}()

	log.WithFields(logrus.Fields{
		"address": cfg.Address(),
		"metrics": cfg.MetricsPath,
	}).Info("kvdb emulator listening")

	if err := server.Listen(cfg.Address()); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}
