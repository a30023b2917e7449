// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/fulfillment/cmd/app/commands"
	"github.com/allisson/fulfillment/internal/app"
	"github.com/allisson/fulfillment/internal/config"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Order fulfillment service",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP API server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "worker",
				Usage: "Start the queue consumers driving the fulfillment pipelines",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunWorker(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				},
			},
			{
				Name:  "enqueue-order",
				Usage: "Publish a process-order command for an order",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "partner-code",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Partner code the order belongs to",
					},
					&cli.StringFlag{
						Name:     "order-id",
						Aliases:  []string{"o"},
						Required: true,
						Usage:    "Order id to fulfill",
					},
					&cli.StringFlag{
						Name:    "assets",
						Aliases: []string{"a"},
						Value:   "{}",
						Usage:   "JSON object mapping line item ids to asset URLs",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunEnqueueOrder(
						ctx,
						cmd.String("partner-code"),
						cmd.String("order-id"),
						cmd.String("assets"),
						commands.DefaultIO(),
					)
				},
			},
			{
				Name:  "seed-sku-template",
				Usage: "Create or replace the template for a SKU",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "sku",
						Aliases:  []string{"s"},
						Required: true,
						Usage:    "Product code the template belongs to",
					},
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Required: true,
						Usage:    "Path to the template body file",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunSeedSKUTemplate(
						ctx,
						cmd.String("sku"),
						cmd.String("file"),
						commands.DefaultIO(),
					)
				},
			},
			{
				Name:  "hash-api-key",
				Usage: "Print the Argon2id hash of an API key for API_KEY_HASH",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Required: true,
						Usage:    "Plain API key to hash",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunHashAPIKey(cmd.String("key"), commands.DefaultIO())
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
