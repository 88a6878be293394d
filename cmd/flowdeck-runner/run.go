package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/arjanchaudharyy/flowdeck/pkg/cmd"
	"github.com/arjanchaudharyy/flowdeck/pkg/compiler"
	"github.com/arjanchaudharyy/flowdeck/pkg/engine"
	"github.com/arjanchaudharyy/flowdeck/pkg/log"
	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/otelhelper"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Compile a graph file and execute it to completion",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "graph",
				Aliases:  []string{"g"},
				Usage:    "Path to the workflow graph JSON file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "run-id",
				Usage:   "Custom run ID (auto-generated if not provided)",
				Sources: cli.EnvVars("RUN_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
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

			runID := command.String("run-id")
			if runID == "" {
				runID = uuid.New().String()[:8]
			}

			logger := log.WithModule("runner").With("run_id", runID)

			cfg := cmd.StackConfig{
				DatabaseURL:   command.String("database-url"),
				ObjectStore:   command.String("object-store"),
				EventBus:      command.String("event-bus"),
				ApprovalRedis: command.String("approval-redis"),
			}

			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				tracer, err := otelhelper.NewTracer(ctx, "flowdeck-runner")
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

			def, err := compileGraphFile(command.String("graph"), stack)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Executing definition", "title", def.Title, "actions", len(def.Actions))

			result, err := stack.Engine.Execute(ctx, def, engine.RunOptions{RunID: runID})
			if err != nil {
				return fmt.Errorf("run %s failed: %w", runID, err)
			}

			logger.InfoContext(ctx, "Run completed",
				"duration", result.Duration,
				"nodes_executed", result.NodesExecuted)

			return nil
		},
	}
}

func compileGraphFile(path string, stack *cmd.Stack) (*models.CompiledDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var graph models.WorkflowGraph
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("failed to parse graph file: %w", err)
	}

	return compiler.Compile(&graph, stack.Registry)
}
