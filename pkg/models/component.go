package models

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// ComponentCategory groups components for discovery and display.
type ComponentCategory string

const (
	CategoryAction ComponentCategory = "action"
	CategoryScript ComponentCategory = "script"
	CategoryAgent  ComponentCategory = "agent"
	CategoryGate   ComponentCategory = "gate"
)

// ExecuteFunc is the body of an inline component.
type ExecuteFunc func(ctx context.Context, params map[string]any, execCtx *ExecutionContext) (map[string]any, error)

// Component is an immutable registration of a reusable unit of work.
// Registered once at process start, looked up by ID during execution.
type Component struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Category     ComponentCategory `json:"category"`
	Runner       RunnerConfig      `json:"runner"`
	InputSchema  *SchemaDefinition `json:"input_schema,omitempty"`
	OutputSchema *SchemaDefinition `json:"output_schema,omitempty"`
	RetryPolicy  *RetryPolicy      `json:"retry_policy,omitempty"`
	Execute      ExecuteFunc       `json:"-"`
}

// SecretSource resolves named secrets for components and runners.
type SecretSource interface {
	Secret(ctx context.Context, name string) (string, error)
}

// BlobStore is the side channel oversized captured payloads spill to.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ToolInvoker lets an agent-type component call one of its connected tool
// nodes by ref.
type ToolInvoker func(ctx context.Context, toolRef string, params map[string]any) (map[string]any, error)

// ProgressUpdate is an intermediate signal a running component may emit.
type ProgressUpdate struct {
	Level   slog.Level     `json:"level"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Services are the injected collaborators available to a component body.
type Services struct {
	Secrets SecretSource
	Storage BlobStore
	HTTP    *http.Client
	Tracer  trace.Tracer
}

// ExecutionContext is the per-invocation handle passed to a component.
// Created fresh for each action invocation, discarded after.
type ExecutionContext struct {
	RunID        string
	ComponentRef string
	Logger       *slog.Logger
	EmitProgress func(ProgressUpdate)
	Services     *Services

	// Tools and InvokeTool are populated for agent-type actions from the
	// connected_tool_node_ids metadata of the compiled node.
	Tools      []string
	InvokeTool ToolInvoker
}

// Progress emits a plain info-level progress message. Safe on a context
// without an EmitProgress hook.
func (ec *ExecutionContext) Progress(message string) {
	if ec.EmitProgress != nil {
		ec.EmitProgress(ProgressUpdate{Level: slog.LevelInfo, Message: message})
	}
}
