// Package agent provides the built-in agent component. An agent node gains
// access to the tool nodes wired to its tools handle and invokes them through
// the execution context.
package agent

import (
	"context"
	"fmt"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/schema"
)

// Definition returns the agent component registration. The agent runs a
// declared plan: an ordered list of tool invocations, each naming one of the
// connected tool nodes and the params to pass it.
func Definition() *models.Component {
	return &models.Component{
		ID:          "agent",
		Name:        "Agent",
		Description: "Invokes connected tool nodes according to a plan.",
		Category:    models.CategoryAgent,
		Runner:      models.InlineRunner(),
		InputSchema: &models.SchemaDefinition{
			Title: "Agent input",
			Fields: map[string]*models.Field{
				"plan": {
					Type:        models.FieldTypeArray,
					Description: "Ordered tool invocations.",
					Required:    true,
					Items: &models.Field{
						Type: models.FieldTypeObject,
						Properties: map[string]*models.Field{
							"tool":   {Type: models.FieldTypeString, Required: true},
							"params": {Type: models.FieldTypeObject},
						},
					},
				},
			},
		},
		OutputSchema: &models.SchemaDefinition{
			Title: "Agent output",
			Fields: map[string]*models.Field{
				"steps": {
					Type:  models.FieldTypeArray,
					Items: &models.Field{Type: models.FieldTypeObject},
				},
			},
		},
		Execute: execute,
	}
}

func execute(ctx context.Context, params map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	if execCtx.InvokeTool == nil {
		return nil, &schema.ConfigurationError{
			Key:     execCtx.ComponentRef,
			Message: "agent node has no tool invoker",
		}
	}

	plan, ok := params["plan"].([]any)
	if !ok {
		return nil, &schema.ConfigurationError{Key: "plan", Message: "agent requires a plan"}
	}

	connected := make(map[string]bool, len(execCtx.Tools))
	for _, tool := range execCtx.Tools {
		connected[tool] = true
	}

	steps := make([]any, 0, len(plan))

	for i, raw := range plan {
		step, ok := raw.(map[string]any)
		if !ok {
			return nil, &schema.ConfigurationError{
				Key:     fmt.Sprintf("plan[%d]", i),
				Message: "plan entries must be objects",
			}
		}

		tool, _ := step["tool"].(string)
		if !connected[tool] {
			return nil, &schema.ConfigurationError{
				Key:     fmt.Sprintf("plan[%d].tool", i),
				Message: fmt.Sprintf("tool %q is not connected to this agent", tool),
			}
		}

		toolParams, _ := step["params"].(map[string]any)

		execCtx.Progress(fmt.Sprintf("invoking tool %s", tool))

		outputs, err := execCtx.InvokeTool(ctx, tool, toolParams)
		if err != nil {
			return nil, fmt.Errorf("tool %s failed: %w", tool, err)
		}

		steps = append(steps, map[string]any{
			"tool":    tool,
			"outputs": outputs,
		})
	}

	return map[string]any{"steps": steps}, nil
}
