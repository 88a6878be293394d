// Package script provides the built-in javascript component.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/schema"
)

const defaultScriptTimeout = 10 * time.Second

// Definition returns the script component registration. The script receives
// its input bound to $ and whatever $ holds when the script finishes becomes
// the node's output.
func Definition() *models.Component {
	return &models.Component{
		ID:          "script",
		Name:        "Script",
		Description: "Runs a javascript snippet against the node input.",
		Category:    models.CategoryScript,
		Runner:      models.InlineRunner(),
		InputSchema: &models.SchemaDefinition{
			Title: "Script input",
			Fields: map[string]*models.Field{
				"code": {
					Type:        models.FieldTypeString,
					Description: "Javascript source. The input object is bound to $.",
					Required:    true,
				},
				"input": {
					Type:        models.FieldTypeObject,
					Description: "Object the script operates on.",
				},
			},
		},
		OutputSchema: &models.SchemaDefinition{
			Title: "Script output",
			Fields: map[string]*models.Field{
				"result": {Type: models.FieldTypeAny},
			},
		},
		Execute: execute,
	}
}

func execute(ctx context.Context, params map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	code, _ := params["code"].(string)
	if code == "" {
		return nil, &schema.ConfigurationError{Key: "code", Message: "script requires code"}
	}

	input := map[string]any{}
	if bound, ok := params["input"].(map[string]any); ok {
		input = bound
	}

	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding script input: %w", err)
	}

	vm := goja.New()

	// An interrupt timer bounds runaway scripts; goja has no preemption of
	// its own.
	timer := time.AfterFunc(defaultScriptTimeout, func() {
		vm.Interrupt("script timed out")
	})
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt("run cancelled")
	})
	defer stop()

	source := fmt.Sprintf("var $ = %s;\n%s", encoded, code)

	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("error executing javascript: %w", err)
	}

	value, err := vm.RunString("$")
	if err != nil {
		return nil, fmt.Errorf("error executing javascript: %w", err)
	}

	execCtx.Progress("script completed")

	return map[string]any{"result": value.Export()}, nil
}
