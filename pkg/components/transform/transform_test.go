package transform

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

func testExecCtx() *models.ExecutionContext {
	return &models.ExecutionContext{
		RunID:        "run-42",
		ComponentRef: "reshape",
		Logger:       slog.New(slog.DiscardHandler),
	}
}

func TestExecute_RendersExpression(t *testing.T) {
	component := Definition()

	outputs, err := component.Execute(context.Background(), map[string]any{
		"expression": "user {{.inputs.name}}",
		"input":      map[string]any{"name": "ada"},
	}, testExecCtx())
	require.NoError(t, err)

	assert.Equal(t, "user ada", outputs["result"])
}

func TestExecute_CoercesNumericResult(t *testing.T) {
	component := Definition()

	outputs, err := component.Execute(context.Background(), map[string]any{
		"expression": "{{.inputs.count}}",
		"input":      map[string]any{"count": 7},
	}, testExecCtx())
	require.NoError(t, err)

	assert.Equal(t, float64(7), outputs["result"])
}

func TestExecute_ProducesStructuredValue(t *testing.T) {
	component := Definition()

	outputs, err := component.Execute(context.Background(), map[string]any{
		"expression": `{"run": "{{.run.id}}", "tag": "{{.inputs.tag}}"}`,
		"input":      map[string]any{"tag": "nightly"},
	}, testExecCtx())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"run": "run-42", "tag": "nightly"}, outputs["result"])
}

func TestExecute_MissingExpression(t *testing.T) {
	component := Definition()

	_, err := component.Execute(context.Background(), map[string]any{
		"input": map[string]any{"name": "ada"},
	}, testExecCtx())

	require.Error(t, err)
	assert.Equal(t, models.KindConfiguration, models.KindOf(err))
}

func TestExecute_BrokenExpression(t *testing.T) {
	component := Definition()

	_, err := component.Execute(context.Background(), map[string]any{
		"expression": "{{.inputs.name",
	}, testExecCtx())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "transformation failed")
}
