// Package transform provides the built-in template transform component.
package transform

import (
	"context"
	"fmt"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/schema"
	"github.com/arjanchaudharyy/flowdeck/pkg/template"
)

// Definition returns the transform component registration. It evaluates a
// template expression against the node's resolved inputs and returns the
// result under the "result" handle.
func Definition() *models.Component {
	return &models.Component{
		ID:          "transform",
		Name:        "Transform",
		Description: "Transforms input data using a template expression.",
		Category:    models.CategoryAction,
		Runner:      models.InlineRunner(),
		InputSchema: &models.SchemaDefinition{
			Title: "Transform input",
			Fields: map[string]*models.Field{
				"expression": {
					Type:        models.FieldTypeString,
					Description: "Template expression evaluated against the node inputs.",
					Required:    true,
				},
				"input": {
					Type:        models.FieldTypeAny,
					Description: "Data the expression is evaluated against.",
				},
			},
		},
		OutputSchema: &models.SchemaDefinition{
			Title: "Transform output",
			Fields: map[string]*models.Field{
				"result": {Type: models.FieldTypeAny},
			},
		},
		Execute: execute,
	}
}

func execute(_ context.Context, params map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	expression, _ := params["expression"].(string)
	if expression == "" {
		return nil, &schema.ConfigurationError{Key: "expression", Message: "transform requires an expression"}
	}

	inputs := map[string]any{}
	if input, ok := params["input"].(map[string]any); ok {
		inputs = input
	}

	result, err := template.Render(expression, template.Data{
		RunID:  execCtx.RunID,
		Inputs: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("transformation failed: %w", err)
	}

	return map[string]any{"result": result}, nil
}
