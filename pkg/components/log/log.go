// Package log provides the built-in log component.
package log

import (
	"context"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// Definition returns the log component registration. It writes a message to
// the run's logger at the configured level and echoes it as output.
func Definition() *models.Component {
	return &models.Component{
		ID:          "log",
		Name:        "Log",
		Description: "Logs a message at a specified level.",
		Category:    models.CategoryAction,
		Runner:      models.InlineRunner(),
		InputSchema: &models.SchemaDefinition{
			Title: "Log input",
			Fields: map[string]*models.Field{
				"message": {
					Type:        models.FieldTypeString,
					Description: "The message to log.",
					Required:    true,
				},
				"level": {
					Type:        models.FieldTypeString,
					Description: "Log level for the message.",
					Default:     "info",
					Enum:        []any{"debug", "info", "warn", "error"},
				},
			},
		},
		OutputSchema: &models.SchemaDefinition{
			Title: "Log output",
			Fields: map[string]*models.Field{
				"logged":  {Type: models.FieldTypeBoolean},
				"message": {Type: models.FieldTypeString},
			},
		},
		Execute: execute,
	}
}

func execute(ctx context.Context, params map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	message, _ := params["message"].(string)
	level, _ := params["level"].(string)

	logger := execCtx.Logger.With("component", "log")

	switch level {
	case "debug":
		logger.DebugContext(ctx, message)
	case "warn":
		logger.WarnContext(ctx, message)
	case "error":
		logger.ErrorContext(ctx, message)
	default:
		logger.InfoContext(ctx, message)
	}

	execCtx.Progress(message)

	return map[string]any{
		"logged":  true,
		"message": message,
	}, nil
}
