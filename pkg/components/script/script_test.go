package script

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

func testExecCtx() *models.ExecutionContext {
	return &models.ExecutionContext{
		RunID:        "run-1",
		ComponentRef: "script",
		Logger:       slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
}

func TestExecute_MutatesBoundInput(t *testing.T) {
	component := Definition()

	outputs, err := component.Execute(context.Background(), map[string]any{
		"code":  "$.doubled = $.n * 2;",
		"input": map[string]any{"n": 21},
	}, testExecCtx())
	require.NoError(t, err)

	result, ok := outputs["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(42), result["doubled"])
}

func TestExecute_ReplacesBinding(t *testing.T) {
	component := Definition()

	outputs, err := component.Execute(context.Background(), map[string]any{
		"code":  "$ = { status: 'done' };",
		"input": map[string]any{"ignored": true},
	}, testExecCtx())
	require.NoError(t, err)

	result, ok := outputs["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "done", result["status"])
}

func TestExecute_EmptyInputDefaultsToObject(t *testing.T) {
	component := Definition()

	outputs, err := component.Execute(context.Background(), map[string]any{
		"code": "$.ok = true;",
	}, testExecCtx())
	require.NoError(t, err)

	result, ok := outputs["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, result["ok"])
}

func TestExecute_MissingCode(t *testing.T) {
	component := Definition()

	_, err := component.Execute(context.Background(), map[string]any{}, testExecCtx())

	require.Error(t, err)
	assert.Equal(t, models.KindConfiguration, models.KindOf(err))
}

func TestExecute_ScriptError(t *testing.T) {
	component := Definition()

	_, err := component.Execute(context.Background(), map[string]any{
		"code": "throw new Error('bad input')",
	}, testExecCtx())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")
}

func TestExecute_CancelledContextInterrupts(t *testing.T) {
	component := Definition()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := component.Execute(ctx, map[string]any{
		"code": "while (true) {}",
	}, testExecCtx())

	require.Error(t, err)
}
