// Package engine executes compiled definitions: it resolves data flow
// between actions, validates payloads against component schemas, dispatches
// each action through its runner and records every invocation.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/arjanchaudharyy/flowdeck/pkg/capture"
	"github.com/arjanchaudharyy/flowdeck/pkg/eventbus"
	"github.com/arjanchaudharyy/flowdeck/pkg/events"
	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/otelhelper"
	"github.com/arjanchaudharyy/flowdeck/pkg/registry"
	"github.com/arjanchaudharyy/flowdeck/pkg/runner"
	"github.com/arjanchaudharyy/flowdeck/pkg/scheduler"
	"github.com/arjanchaudharyy/flowdeck/pkg/schema"
	"github.com/arjanchaudharyy/flowdeck/pkg/template"
)

// Config wires the engine's collaborators.
type Config struct {
	Registry *registry.Registry
	Runner   *runner.Runner
	Recorder *capture.Recorder
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Services *models.Services
	EventBus eventbus.EventPublisher
}

// Engine drives full runs of compiled definitions.
type Engine struct {
	registry  *registry.Registry
	runner    *runner.Runner
	recorder  *capture.Recorder
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
	tracer    trace.Tracer
	services  *models.Services
	eventBus  eventbus.EventPublisher
}

// NewEngine creates an engine. A nil tracer selects a no-op tracer.
func NewEngine(cfg Config) *Engine {
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("flowdeck")
	}

	return &Engine{
		registry:  cfg.Registry,
		runner:    cfg.Runner,
		recorder:  cfg.Recorder,
		scheduler: scheduler.NewScheduler(cfg.Logger),
		logger:    cfg.Logger.With("module", "engine"),
		tracer:    cfg.Tracer,
		services:  cfg.Services,
		eventBus:  cfg.EventBus,
	}
}

// RunOptions tunes one execution.
type RunOptions struct {
	// RunID identifies the run; generated when empty.
	RunID string
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	RunID         string
	Results       map[string]*models.NodeResult
	Duration      time.Duration
	NodesExecuted int
}

// run carries the mutable state of one execution.
type run struct {
	engine  *Engine
	def     *models.CompiledDefinition
	runID   string
	logger  *slog.Logger
	mu      sync.Mutex
	results map[string]*models.NodeResult
}

// Execute runs every action of the definition to completion. On the first
// failed action no further batches are dispatched and the failure is
// returned; cancellation of ctx stops dispatching and tears down in-flight
// containers through their lifecycle contexts.
func (e *Engine) Execute(ctx context.Context, def *models.CompiledDefinition, opts RunOptions) (*RunResult, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()[:8]
	}

	if def.Config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(def.Config.TimeoutSeconds)*time.Second)

		defer cancel()
	}

	logger := e.logger.With("run_id", runID, "definition", def.Title)

	r := &run{
		engine:  e,
		def:     def,
		runID:   runID,
		logger:  logger,
		results: make(map[string]*models.NodeResult, len(def.Actions)),
	}

	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute",
		attribute.String(otelhelper.RunIDKey, runID),
		attribute.String(otelhelper.DefinitionKey, def.Title),
		attribute.String(otelhelper.EnvironmentKey, def.Config.Environment),
	)
	defer span.End()

	logger.InfoContext(ctx, "Run started", "actions", len(def.Actions))

	startedEvent := events.RunStarted{
		BaseEvent:       events.NewBaseEvent(events.RunStartedEvent, runID),
		DefinitionTitle: def.Title,
		Environment:     def.Config.Environment,
		TotalActions:    len(def.Actions),
	}
	e.publish(ctx, runID, startedEvent)

	err := e.scheduler.Run(ctx, def, r.invoke)
	duration := time.Since(started)

	result := &RunResult{
		RunID:         runID,
		Results:       r.snapshot(),
		Duration:      duration,
		NodesExecuted: len(r.results),
	}

	switch {
	case err == nil:
		logger.InfoContext(ctx, "Run completed",
			"duration", duration.String(), "nodes", result.NodesExecuted)
		e.publish(ctx, runID, events.RunCompleted{
			BaseEvent:     events.NewBaseEvent(events.RunCompletedEvent, runID),
			DurationMs:    duration.Milliseconds(),
			NodesExecuted: result.NodesExecuted,
		})

		return result, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logger.InfoContext(ctx, "Run cancelled", "duration", duration.String())
		otelhelper.SetError(span, err)
		e.publish(ctx, runID, events.RunCancelled{
			BaseEvent:     events.NewBaseEvent(events.RunCancelledEvent, runID),
			DurationMs:    duration.Milliseconds(),
			Reason:        err.Error(),
			NodesExecuted: result.NodesExecuted,
		})

		return result, err
	default:
		var actionErr *scheduler.ActionError

		failedRef := ""
		if errors.As(err, &actionErr) {
			failedRef = actionErr.Ref
		}

		logger.ErrorContext(ctx, "Run failed",
			"node_ref", failedRef, "error", err, "error_kind", string(models.KindOf(err)))
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.NodeRefKey, failedRef),
			attribute.String(otelhelper.ErrorKindKey, string(models.KindOf(err))))
		e.publish(ctx, runID, events.RunFailed{
			BaseEvent:     events.NewBaseEvent(events.RunFailedEvent, runID),
			DurationMs:    duration.Milliseconds(),
			NodeRef:       failedRef,
			Error:         err.Error(),
			ErrorKind:     string(models.KindOf(err)),
			NodesExecuted: result.NodesExecuted,
		})

		return result, err
	}
}

// invoke runs a single ready action: resolve inputs, validate, capture,
// dispatch, validate outputs, store the result.
func (r *run) invoke(ctx context.Context, ref string) error {
	action := r.def.ActionByRef(ref)
	if action == nil {
		return &scheduler.DeadlockError{Blocked: []string{ref}}
	}

	component, err := r.engine.registry.Get(action.ComponentID)
	if err != nil {
		return err
	}

	meta := r.def.Nodes[ref]

	ctx, span := otelhelper.StartSpan(ctx, r.engine.tracer, "engine.invoke",
		attribute.String(otelhelper.RunIDKey, r.runID),
		attribute.String(otelhelper.NodeRefKey, ref),
		attribute.String(otelhelper.ComponentIDKey, component.ID),
		attribute.String(otelhelper.RunnerKindKey, string(component.Runner.Kind)),
	)
	defer span.End()

	params, err := r.resolveParams(action, component)
	if err != nil {
		r.failWithoutRecord(ctx, ref, component, err)

		return err
	}

	rec, err := r.engine.recorder.Begin(ctx, r.runID, ref, component.ID, component, params)
	if err != nil {
		return err
	}

	r.engine.publish(ctx, r.runID, events.NodeStarted{
		BaseEvent:   events.NewBaseEvent(events.NodeStartedEvent, r.runID),
		NodeRef:     ref,
		ComponentID: component.ID,
		Attempt:     1,
	})

	execCtx := r.executionContext(ref, meta)

	policy := models.DefaultRetryPolicy()
	if component.RetryPolicy != nil {
		policy = *component.RetryPolicy
	}

	started := time.Now()

	outputs, err := r.engine.runner.RunWithRetry(ctx, component.Runner, policy, component.Execute, params, execCtx)
	if err == nil && component.OutputSchema != nil {
		err = schema.Validate(component.OutputSchema, ref+" output", outputs)
	}

	nodeDuration := time.Since(started)

	if err != nil {
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.ErrorKindKey, string(models.KindOf(err))))

		if saveErr := rec.Fail(ctx, err); saveErr != nil {
			r.logger.ErrorContext(ctx, "Failed to record node failure",
				"node_ref", ref, "error", saveErr)
		}

		r.engine.publish(ctx, r.runID, events.NodeFailed{
			BaseEvent:   events.NewBaseEvent(events.NodeFailedEvent, r.runID),
			NodeRef:     ref,
			ComponentID: component.ID,
			Error:       err.Error(),
			ErrorKind:   string(models.KindOf(err)),
			DurationMs:  nodeDuration.Milliseconds(),
		})

		return err
	}

	if err := rec.Complete(ctx, outputs); err != nil {
		return err
	}

	r.store(ref, outputs)

	r.engine.publish(ctx, r.runID, events.NodeCompleted{
		BaseEvent:   events.NewBaseEvent(events.NodeCompletedEvent, r.runID),
		NodeRef:     ref,
		ComponentID: component.ID,
		Outputs:     schema.Mask(component.OutputSchema, outputs),
		DurationMs:  nodeDuration.Milliseconds(),
	})

	return nil
}

// resolveParams merges the action's static params with values routed in from
// completed upstream actions, renders templates, applies schema defaults and
// validates the final payload.
func (r *run) resolveParams(action *models.Action, component *models.Component) (map[string]any, error) {
	params := make(map[string]any, len(action.Params)+len(action.InputMappings))
	for key, value := range action.Params {
		params[key] = value
	}

	for input, mapping := range action.InputMappings {
		source := r.result(mapping.SourceRef)

		value, ok := source.Output(mapping.SourceHandle)
		if !ok {
			return nil, &schema.ValidationError{
				Subject: action.Ref,
				FieldErrors: map[string][]string{
					input: {"no output " + mapping.SourceHandle + " from node " + mapping.SourceRef},
				},
			}
		}

		params[input] = value
	}

	rendered, err := template.RenderParams(params, template.Data{
		RunID:       r.runID,
		Environment: r.def.Config.Environment,
		Nodes:       r.nodeOutputs(),
		Inputs:      params,
	})
	if err != nil {
		return nil, &schema.ValidationError{
			Subject:     action.Ref,
			FieldErrors: map[string][]string{"(template)": {err.Error()}},
		}
	}

	rendered = schema.ApplyDefaults(component.InputSchema, rendered)

	if component.InputSchema != nil {
		if err := schema.Validate(component.InputSchema, action.Ref, rendered); err != nil {
			return nil, err
		}
	}

	return rendered, nil
}

// executionContext builds the per-invocation handle. Agent nodes additionally
// get their connected tool refs and a tool invoker.
func (r *run) executionContext(ref string, meta *models.NodeMetadata) *models.ExecutionContext {
	execCtx := &models.ExecutionContext{
		RunID:        r.runID,
		ComponentRef: ref,
		Logger:       r.logger.With("node_ref", ref),
		Services:     r.engine.services,
		EmitProgress: func(update models.ProgressUpdate) {
			r.engine.publish(context.Background(), r.runID, events.NodeProgress{
				BaseEvent: events.NewBaseEvent(events.NodeProgressEvent, r.runID),
				NodeRef:   ref,
				Level:     update.Level.String(),
				Message:   update.Message,
				Data:      update.Data,
			})
		},
	}

	if meta != nil && len(meta.ConnectedToolNodeIDs) > 0 {
		execCtx.Tools = meta.ConnectedToolNodeIDs
		execCtx.InvokeTool = r.invokeTool
	}

	return execCtx
}

// invokeTool runs a tool node's component on demand for an agent. Tool
// invocations reuse the tool action's static params overlaid with the
// caller's arguments; they are not separately captured.
func (r *run) invokeTool(ctx context.Context, toolRef string, callParams map[string]any) (map[string]any, error) {
	action := r.def.ActionByRef(toolRef)
	if action == nil {
		return nil, &schema.ConfigurationError{Key: toolRef, Message: "unknown tool node"}
	}

	component, err := r.engine.registry.Get(action.ComponentID)
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(action.Params)+len(callParams))
	for key, value := range action.Params {
		params[key] = value
	}

	for key, value := range callParams {
		params[key] = value
	}

	params = schema.ApplyDefaults(component.InputSchema, params)

	if component.InputSchema != nil {
		if err := schema.Validate(component.InputSchema, toolRef, params); err != nil {
			return nil, err
		}
	}

	policy := models.DefaultRetryPolicy()
	if component.RetryPolicy != nil {
		policy = *component.RetryPolicy
	}

	execCtx := &models.ExecutionContext{
		RunID:        r.runID,
		ComponentRef: toolRef,
		Logger:       r.logger.With("node_ref", toolRef, "tool", true),
		Services:     r.engine.services,
	}

	return r.engine.runner.RunWithRetry(ctx, component.Runner, policy, component.Execute, params, execCtx)
}

func (r *run) failWithoutRecord(ctx context.Context, ref string, component *models.Component, err error) {
	r.logger.ErrorContext(ctx, "Node input resolution failed",
		"node_ref", ref, "error", err)

	r.engine.publish(ctx, r.runID, events.NodeFailed{
		BaseEvent:   events.NewBaseEvent(events.NodeFailedEvent, r.runID),
		NodeRef:     ref,
		ComponentID: component.ID,
		Error:       err.Error(),
		ErrorKind:   string(models.KindOf(err)),
	})
}

func (r *run) store(ref string, outputs map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results[ref] = &models.NodeResult{
		NodeRef:   ref,
		Outputs:   outputs,
		Timestamp: time.Now().UTC(),
	}
}

func (r *run) result(ref string) *models.NodeResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.results[ref]
}

func (r *run) nodeOutputs() map[string]map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	outputs := make(map[string]map[string]any, len(r.results))
	for ref, result := range r.results {
		outputs[ref] = result.Outputs
	}

	return outputs
}

func (r *run) snapshot() map[string]*models.NodeResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make(map[string]*models.NodeResult, len(r.results))
	for ref, result := range r.results {
		results[ref] = result
	}

	return results
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", string(event.GetType()), "error", err)
	}
}
