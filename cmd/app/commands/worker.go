package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/allisson/fulfillment/internal/app"
	"github.com/allisson/fulfillment/internal/config"
)

// RunWorker starts the queue consumers that drive the fulfillment pipelines.
// One consumer runs per command queue, plus the dead-letter drainer when a
// dead-letter subscription is configured. Blocks until SIGINT/SIGTERM.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner, err := container.WorkerRunner(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize worker runner: %w", err)
	}

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker runner error: %w", err)
	}

	logger.Info("worker stopped")
	return nil
}
