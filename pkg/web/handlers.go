// Package web provides HTTP handlers and REST API endpoints for compiling
// graphs, starting runs and inspecting captured node I/O.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/arjanchaudharyy/flowdeck/pkg/approvals"
	"github.com/arjanchaudharyy/flowdeck/pkg/capture"
	"github.com/arjanchaudharyy/flowdeck/pkg/compiler"
	"github.com/arjanchaudharyy/flowdeck/pkg/engine"
	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
	"github.com/arjanchaudharyy/flowdeck/pkg/registry"
	"github.com/arjanchaudharyy/flowdeck/pkg/schema"
)

// RunStatus is the coarse state of a run as seen by the API.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

type APIHandlers struct {
	engine      *engine.Engine
	registry    *registry.Registry
	recorder    *capture.Recorder
	persistence persistence.Persistence
	approvals   *approvals.Service
	validator   *validator.Validate
	logger      *slog.Logger

	mu   sync.Mutex
	runs map[string]*runHandle
}

type runHandle struct {
	status RunStatus
	cancel context.CancelFunc
}

func NewAPIHandlers(
	eng *engine.Engine,
	reg *registry.Registry,
	recorder *capture.Recorder,
	store persistence.Persistence,
	approvalService *approvals.Service,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		registry:    reg,
		recorder:    recorder,
		persistence: store,
		approvals:   approvalService,
		validator:   validate,
		logger:      logger.With("module", "web"),
		runs:        make(map[string]*runHandle),
	}
}

// CompileDefinition validates and lowers a graph without executing it.
func (h *APIHandlers) CompileDefinition(c fiber.Ctx) error {
	var req CompileRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.validator.Struct(req.Graph); err != nil {
		return badRequest(c, err.Error())
	}

	def, err := compiler.Compile(req.Graph, h.registry)
	if err != nil {
		return handleTaxonomyError(c, err)
	}

	return c.JSON(def)
}

// StartRun compiles a graph and executes it in the background. The response
// acknowledges acceptance; progress is observable through the node I/O
// endpoints and the event bus.
func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	var req StartRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.validator.Struct(req.Graph); err != nil {
		return badRequest(c, err.Error())
	}

	def, err := compiler.Compile(req.Graph, h.registry)
	if err != nil {
		return handleTaxonomyError(c, err)
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()[:8]
	}

	// Runs may suspend on approvals for days, so execution is detached
	// from the request context and cancellable through DELETE /runs/:id.
	runCtx, cancel := context.WithCancel(context.Background())

	h.mu.Lock()
	if _, exists := h.runs[runID]; exists {
		h.mu.Unlock()
		cancel()

		return badRequest(c, "Run ID already in use")
	}

	h.runs[runID] = &runHandle{status: RunStatusRunning, cancel: cancel}
	h.mu.Unlock()

	go func() {
		defer cancel()

		_, err := h.engine.Execute(runCtx, def, engine.RunOptions{RunID: runID})

		status := RunStatusCompleted

		switch {
		case err == nil:
		case runCtx.Err() != nil:
			status = RunStatusCancelled
		default:
			status = RunStatusFailed
		}

		h.mu.Lock()
		h.runs[runID].status = status
		h.mu.Unlock()
	}()

	return c.Status(fiber.StatusAccepted).JSON(StartRunResponse{
		RunID:      runID,
		Definition: def.Title,
		Actions:    len(def.Actions),
		Status:     string(RunStatusRunning),
	})
}

// GetRun reports the coarse status and captured records of a run.
func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	runID := c.Params("id")
	if runID == "" {
		return badRequest(c, "Run ID is required")
	}

	records, err := h.persistence.NodeIORepository().RecordsByRun(c.Context(), runID)
	if err != nil {
		return internalError(c, err)
	}

	h.mu.Lock()
	handle := h.runs[runID]
	h.mu.Unlock()

	if handle == nil && len(records) == 0 {
		return notFound(c, "Run not found")
	}

	status := RunStatusCompleted
	if handle != nil {
		status = handle.status
	}

	nodes := make([]NodeIOResponse, 0, len(records))
	for _, record := range records {
		nodes = append(nodes, TransformNodeIOResponse(record))
	}

	return c.JSON(fiber.Map{
		"run_id": runID,
		"status": status,
		"nodes":  nodes,
	})
}

// CancelRun stops dispatching new batches of a running run.
func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	runID := c.Params("id")
	if runID == "" {
		return badRequest(c, "Run ID is required")
	}

	h.mu.Lock()
	handle := h.runs[runID]
	h.mu.Unlock()

	if handle == nil {
		return notFound(c, "Run not found")
	}

	handle.cancel()

	return c.SendStatus(fiber.StatusAccepted)
}

// GetNodeIO returns the captured inputs and outputs of one node, with spill
// markers resolved back to their payloads.
func (h *APIHandlers) GetNodeIO(c fiber.Ctx) error {
	runID := c.Params("id")
	nodeRef := c.Params("ref")

	if runID == "" || nodeRef == "" {
		return badRequest(c, "Run ID and node ref are required")
	}

	record, err := h.recorder.Fetch(c.Context(), runID, nodeRef)
	if err != nil {
		if persistence.IsRecordNotFound(err) {
			return notFound(c, "Node I/O record not found")
		}

		return internalError(c, err)
	}

	return c.JSON(TransformNodeIOResponse(record))
}

// GetComponents lists the registered components for discovery.
func (h *APIHandlers) GetComponents(c fiber.Ctx) error {
	components := h.registry.Components()

	responses := make([]ComponentResponse, 0, len(components))
	for _, component := range components {
		responses = append(responses, ComponentResponse{
			ID:          component.ID,
			Name:        component.Name,
			Description: component.Description,
			Category:    component.Category,
			RunnerKind:  component.Runner.Kind,
			InputSchema: schema.JSONSchema(component.InputSchema),
		})
	}

	return c.JSON(fiber.Map{"components": responses})
}

// GetPendingApprovals lists pending approval requests, optionally scoped to
// one run.
func (h *APIHandlers) GetPendingApprovals(c fiber.Ctx) error {
	requests, err := h.approvals.Pending(c.Context(), c.Query("run_id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"approvals": requests})
}

// ResolveApproval delivers an external actor's decision on a pending request.
func (h *APIHandlers) ResolveApproval(c fiber.Ctx) error {
	requestID := c.Params("id")
	if requestID == "" {
		return badRequest(c, "Approval request ID is required")
	}

	var req ResolveApprovalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.approvals.Resolve(c.Context(), models.ApprovalSignal{
		RequestID:    requestID,
		Approved:     *req.Approved,
		RespondedBy:  req.RespondedBy,
		ResponseNote: req.ResponseNote,
		RespondedAt:  time.Now().UTC(),
		ResponseData: req.ResponseData,
	})
	if err != nil {
		if persistence.IsApprovalNotFound(err) {
			return notFound(c, "Approval request not found")
		}

		return handleTaxonomyError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// HealthCheck reports the persistence health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError

		h.logger.ErrorContext(c.Context(), "Health check failed", "error", err)
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// Register mounts every API route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/components", h.GetComponents)

	definitions := app.Group("/definitions")
	definitions.Post("/compile", h.CompileDefinition)

	runs := app.Group("/runs")
	runs.Post("/", h.StartRun)
	runs.Get("/:id", h.GetRun)
	runs.Delete("/:id", h.CancelRun)
	runs.Get("/:id/nodes/:ref/io", h.GetNodeIO)

	approvalRoutes := app.Group("/approvals")
	approvalRoutes.Get("/", h.GetPendingApprovals)
	approvalRoutes.Post("/:id/resolve", h.ResolveApproval)
}
