package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/whookdev/inspector/internal/capture"
	"github.com/whookdev/inspector/internal/config"
	"github.com/whookdev/inspector/internal/endpoint"
	"github.com/whookdev/inspector/internal/handlers"
	"github.com/whookdev/inspector/internal/pubsub"
	"github.com/whookdev/inspector/internal/server"
	"github.com/whookdev/inspector/internal/storage/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := initiateApp(logger); err != nil {
		logger.Error("error in app lifecycle", "error", err)
		os.Exit(1)
	}
}

func initiateApp(logger *slog.Logger) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	store, err := sqlite.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	// Redis carries notifications across nodes; without it the in-process
	// broker serves single-node deployments.
	var broker pubsub.Broker
	if cfg.RedisURL != "" {
		redisBroker, err := pubsub.NewRedisBroker(cfg, logger)
		if err != nil {
			return fmt.Errorf("creating redis broker: %w", err)
		}
		if err := redisBroker.Start(ctx); err != nil {
			return fmt.Errorf("reaching redis server: %w", err)
		}
		defer redisBroker.Stop()
		broker = redisBroker
	} else {
		broker = pubsub.NewMemoryBroker(logger)
	}

	captures, err := capture.NewStore(store, broker, cfg.RetentionLimit, logger)
	if err != nil {
		return fmt.Errorf("creating capture store: %w", err)
	}

	endpoints, err := endpoint.NewService(store, cfg.RetentionLimit, logger)
	if err != nil {
		return fmt.Errorf("creating endpoint service: %w", err)
	}

	srv, err := server.New(cfg,
		handlers.NewIngestHandler(endpoints, captures, cfg.MaxBodyBytes, logger),
		handlers.NewEndpointHandler(endpoints, logger),
		handlers.NewLiveHandler(endpoints, broker, cfg.RetentionLimit, logger),
		logger,
	)
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	return nil
}
