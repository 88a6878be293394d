package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/arjanchaudharyy/flowdeck/pkg/cmd"
	"github.com/arjanchaudharyy/flowdeck/pkg/log"
	"github.com/arjanchaudharyy/flowdeck/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowdeck-api",
		Usage:                 "Compile workflow graphs and manage runs over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "object-store",
				Usage:   "Blob store URL for node I/O spillover (directory or minio://)",
				Value:   "./data/blobs",
				Sources: cli.EnvVars("OBJECT_STORE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "approval-redis",
				Usage:   "Redis URL for approval signal delivery (in-memory if empty)",
				Sources: cli.EnvVars("APPROVAL_REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Flowdeck API")

			cfg := cmd.StackConfig{
				DatabaseURL:   command.String("database-url"),
				ObjectStore:   command.String("object-store"),
				EventBus:      command.String("event-bus"),
				ApprovalRedis: command.String("approval-redis"),
			}

			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				tracer, err := otelhelper.NewTracer(ctx, "flowdeck-api")
				if err != nil {
					return err
				}

				cfg.Tracer = tracer
			}

			stack, err := cmd.NewStack(ctx, logger, cfg)
			if err != nil {
				return err
			}

			defer stack.Close(ctx)

			api := NewAPI(logger, stack)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
