// Package approval provides the built-in human-input gate component.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/arjanchaudharyy/flowdeck/pkg/approvals"
	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

const defaultTimeoutSeconds = 24 * 60 * 60

// RejectedError reports a gate that was explicitly rejected by the responder.
// Distinct from a timeout, which surfaces as an approvals.TimeoutError.
type RejectedError struct {
	RequestID   string
	RespondedBy string
	Note        string
}

func (e *RejectedError) Error() string {
	if e.Note != "" {
		return fmt.Sprintf("approval %s rejected by %s: %s", e.RequestID, e.RespondedBy, e.Note)
	}

	return fmt.Sprintf("approval %s rejected by %s", e.RequestID, e.RespondedBy)
}

// Definition returns the approval gate registration. The action blocks until
// an external actor resolves the request or it times out; dependents only run
// on an approved resolution.
func Definition(service *approvals.Service) *models.Component {
	return &models.Component{
		ID:          "approval",
		Name:        "Approval",
		Description: "Blocks the run until a human approves or rejects.",
		Category:    models.CategoryGate,
		Runner:      models.InlineRunner(),
		RetryPolicy: &models.RetryPolicy{
			MaxAttempts: 1,
		},
		InputSchema: &models.SchemaDefinition{
			Title: "Approval input",
			Fields: map[string]*models.Field{
				"title": {
					Type:        models.FieldTypeString,
					Description: "Short summary shown to the approver.",
				},
				"message": {
					Type:        models.FieldTypeString,
					Description: "Full request text shown to the approver.",
					Required:    true,
				},
				"timeout_seconds": {
					Type:        models.FieldTypeInteger,
					Description: "How long to wait before the request expires.",
					Default:     defaultTimeoutSeconds,
				},
			},
		},
		OutputSchema: &models.SchemaDefinition{
			Title: "Approval output",
			Fields: map[string]*models.Field{
				"approved":      {Type: models.FieldTypeBoolean},
				"responded_by":  {Type: models.FieldTypeString},
				"response_note": {Type: models.FieldTypeString},
				"response_data": {Type: models.FieldTypeObject},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
			return execute(ctx, service, params, execCtx)
		},
	}
}

func execute(ctx context.Context, service *approvals.Service, params map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	title, _ := params["title"].(string)
	message, _ := params["message"].(string)

	timeout := time.Duration(defaultTimeoutSeconds) * time.Second
	if seconds, ok := params["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	request, err := service.Request(ctx, approvals.RequestSpec{
		RunID:   execCtx.RunID,
		NodeRef: execCtx.ComponentRef,
		Title:   title,
		Message: message,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	execCtx.Progress(fmt.Sprintf("waiting for approval %s", request.ID))

	signal, err := service.Wait(ctx, request)
	if err != nil {
		return nil, err
	}

	if !signal.Approved {
		return nil, &RejectedError{
			RequestID:   request.ID,
			RespondedBy: signal.RespondedBy,
			Note:        signal.ResponseNote,
		}
	}

	return map[string]any{
		"approved":      true,
		"responded_by":  signal.RespondedBy,
		"response_note": signal.ResponseNote,
		"response_data": signal.ResponseData,
	}, nil
}
