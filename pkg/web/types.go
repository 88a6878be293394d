// Package web provides HTTP request and response types for the run API.
package web

import (
	"time"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// CompileRequest carries a workflow graph to compile.
type CompileRequest struct {
	Graph *models.WorkflowGraph `json:"graph" validate:"required"`
}

// StartRunRequest carries a workflow graph to compile and execute.
type StartRunRequest struct {
	Graph *models.WorkflowGraph `json:"graph"  validate:"required"`
	RunID string                `json:"run_id" validate:"omitempty,min=4,max=64"`
}

// StartRunResponse acknowledges an accepted run.
type StartRunResponse struct {
	RunID      string `json:"run_id"`
	Definition string `json:"definition"`
	Actions    int    `json:"actions"`
	Status     string `json:"status"`
}

// ResolveApprovalRequest carries an external actor's decision on a pending
// approval request.
type ResolveApprovalRequest struct {
	Approved     *bool          `json:"approved"      validate:"required"`
	RespondedBy  string         `json:"responded_by"  validate:"required,min=1"`
	ResponseNote string         `json:"response_note"`
	ResponseData map[string]any `json:"response_data"`
}

// ComponentResponse is the discovery view of a registered component.
type ComponentResponse struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Category    models.ComponentCategory `json:"category"`
	RunnerKind  models.RunnerKind        `json:"runner_kind"`
	InputSchema map[string]any           `json:"input_schema,omitempty"`
}

// NodeIOResponse is the API view of one captured invocation.
type NodeIOResponse struct {
	RunID       string         `json:"run_id"`
	NodeRef     string         `json:"node_ref"`
	ComponentID string         `json:"component_id"`
	Status      models.IOStatus `json:"status"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
}

// TransformNodeIOResponse maps a stored record to its API view.
func TransformNodeIOResponse(record *models.NodeIORecord) NodeIOResponse {
	return NodeIOResponse{
		RunID:       record.RunID,
		NodeRef:     record.NodeRef,
		ComponentID: record.ComponentID,
		Status:      record.Status,
		Inputs:      record.Inputs,
		Outputs:     record.Outputs,
		StartedAt:   record.StartedAt,
		CompletedAt: record.CompletedAt,
		DurationMS:  record.DurationMS,
		Error:       record.Error,
		ErrorKind:   record.ErrorKind,
	}
}
