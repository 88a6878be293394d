package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"

	"github.com/arjanchaudharyy/flowdeck/pkg/approvals"
	"github.com/arjanchaudharyy/flowdeck/pkg/cmd"
	"github.com/arjanchaudharyy/flowdeck/pkg/compiler"
	"github.com/arjanchaudharyy/flowdeck/pkg/components"
	"github.com/arjanchaudharyy/flowdeck/pkg/log"
	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence/file"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Compile a graph file and report the execution plan without running it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "graph",
				Aliases:  []string{"g"},
				Usage:    "Path to the workflow graph JSON file",
				Required: true,
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

			logger := log.WithModule("validate")

			data, err := os.ReadFile(command.String("graph"))
			if err != nil {
				return fmt.Errorf("failed to read graph file: %w", err)
			}

			var graph models.WorkflowGraph
			if err := json.Unmarshal(data, &graph); err != nil {
				return fmt.Errorf("failed to parse graph file: %w", err)
			}

			validate := validator.New(validator.WithRequiredStructEnabled())
			if err := validate.Struct(&graph); err != nil {
				return fmt.Errorf("invalid graph: %w", err)
			}

			// Validation never executes anything, so a throwaway approval
			// service is enough to register the gate component.
			scratch := file.NewPersistence(filepath.Join(os.TempDir(), "flowdeck-validate"))
			approvalService := approvals.NewService(scratch.ApprovalRepository(), approvals.NewMemoryResolver(), logger)

			reg, err := cmd.NewRegistry(logger, components.Deps{Approvals: approvalService})
			if err != nil {
				return err
			}

			def, err := compiler.Compile(&graph, reg)
			if err != nil {
				return fmt.Errorf("graph %q failed to compile: %w", graph.Name, err)
			}

			logger.InfoContext(ctx, "Graph compiled",
				"title", def.Title,
				"entrypoint", def.Entrypoint.Ref,
				"actions", len(def.Actions))

			for i, action := range def.Actions {
				logger.InfoContext(ctx, "Planned action",
					"order", i,
					"ref", action.Ref,
					"component", action.ComponentID,
					"depends_on", action.DependsOn)
			}

			return nil
		},
	}
}
