package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/di"
	"github.com/mikey/supplier-mail-router/internal/ports"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	ingresses []ports.Ingress,
	llmClient core.LLMClient,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()

	started := make([]ports.Ingress, 0, len(ingresses))
	for _, in := range ingresses {
		if err := in.Start(); err != nil {
			logger.Error("Failed to start ingress", zap.Error(err))
			stopAll(logger, started)
			return err
		}
		started = append(started, in)
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	stopAll(logger, started)

	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}

func stopAll(logger *zap.Logger, ingresses []ports.Ingress) {
	for _, in := range ingresses {
		if err := in.Stop(); err != nil {
			logger.Error("Failed to stop ingress", zap.Error(err))
		}
	}
}
