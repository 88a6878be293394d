// Package capture wraps action invocations to persist their inputs and
// outputs. Secret fields are masked before anything leaves the process, and
// payloads over the spill threshold are moved to a blob store with an inline
// marker left in their place.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
	"github.com/arjanchaudharyy/flowdeck/pkg/schema"
)

// DefaultSpillThreshold is the serialized payload size above which inputs or
// outputs are spilled to the blob store.
const DefaultSpillThreshold = 100 * 1024

// Recorder persists node I/O records for a run.
type Recorder struct {
	records   persistence.NodeIORepository
	blobs     models.BlobStore
	logger    *slog.Logger
	threshold int
}

// NewRecorder creates a recorder. blobs may be nil, in which case oversized
// payloads are stored inline. threshold <= 0 selects DefaultSpillThreshold.
func NewRecorder(records persistence.NodeIORepository, blobs models.BlobStore, logger *slog.Logger, threshold int) *Recorder {
	if threshold <= 0 {
		threshold = DefaultSpillThreshold
	}

	return &Recorder{
		records:   records,
		blobs:     blobs,
		logger:    logger.With("module", "capture"),
		threshold: threshold,
	}
}

// Capture tracks one action invocation from start to finalization.
type Capture struct {
	recorder  *Recorder
	record    models.NodeIORecord
	outSchema *models.SchemaDefinition
}

// Begin masks and persists the inputs of an invocation that is starting and
// returns the capture handle used to finalize it.
func (r *Recorder) Begin(
	ctx context.Context,
	runID, nodeRef, componentID string,
	component *models.Component,
	inputs map[string]any,
) (*Capture, error) {
	var inSchema, outSchema *models.SchemaDefinition
	if component != nil {
		inSchema = component.InputSchema
		outSchema = component.OutputSchema
	}

	masked := schema.Mask(inSchema, inputs)

	stored, err := r.maybeSpill(ctx, masked, spillKey(runID, nodeRef, "inputs"))
	if err != nil {
		return nil, err
	}

	record := models.NodeIORecord{
		RunID:       runID,
		NodeRef:     nodeRef,
		ComponentID: componentID,
		Status:      models.IOStatusRunning,
		Inputs:      stored,
		StartedAt:   time.Now().UTC(),
	}

	if err := r.records.SaveRecord(ctx, &record); err != nil {
		return nil, err
	}

	return &Capture{recorder: r, record: record, outSchema: outSchema}, nil
}

// Complete finalizes the capture with the invocation's outputs.
func (c *Capture) Complete(ctx context.Context, outputs map[string]any) error {
	masked := schema.Mask(c.outSchema, outputs)

	stored, err := c.recorder.maybeSpill(ctx, masked,
		spillKey(c.record.RunID, c.record.NodeRef, "outputs"))
	if err != nil {
		return err
	}

	c.record.Outputs = stored

	return c.finalize(ctx, models.IOStatusCompleted, "", "")
}

// Fail finalizes the capture with the invocation's error.
func (c *Capture) Fail(ctx context.Context, invocationErr error) error {
	return c.finalize(ctx, models.IOStatusFailed,
		invocationErr.Error(), string(models.KindOf(invocationErr)))
}

// Skip finalizes the capture for an action that never ran.
func (c *Capture) Skip(ctx context.Context) error {
	return c.finalize(ctx, models.IOStatusSkipped, "", "")
}

func (c *Capture) finalize(ctx context.Context, status models.IOStatus, errMessage, errKind string) error {
	now := time.Now().UTC()

	c.record.Status = status
	c.record.CompletedAt = &now
	c.record.DurationMS = now.Sub(c.record.StartedAt).Milliseconds()
	c.record.Error = errMessage
	c.record.ErrorKind = errKind

	return c.recorder.records.SaveRecord(ctx, &c.record)
}

// Fetch loads a record and resolves its spill markers back to the inline
// payloads. A spilled payload that can no longer be fetched degrades to an
// inline error placeholder instead of failing the whole read.
func (r *Recorder) Fetch(ctx context.Context, runID, nodeRef string) (*models.NodeIORecord, error) {
	record, err := r.records.RecordByRun(ctx, runID, nodeRef)
	if err != nil {
		return nil, err
	}

	record.Inputs = r.resolveSpill(ctx, record.Inputs)
	record.Outputs = r.resolveSpill(ctx, record.Outputs)

	return record, nil
}

func (r *Recorder) maybeSpill(ctx context.Context, payload map[string]any, key string) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding captured payload: %w", err)
	}

	if len(encoded) <= r.threshold || r.blobs == nil {
		return payload, nil
	}

	if err := r.blobs.Put(ctx, key, encoded); err != nil {
		return nil, fmt.Errorf("spilling captured payload to %s: %w", key, err)
	}

	r.logger.InfoContext(ctx, "Spilled oversized payload",
		"key", key, "size", len(encoded))

	marker := models.SpillMarker{Spilled: true, Size: len(encoded), Ref: key}

	return map[string]any{
		models.SpillMarkerKey: marker.Spilled,
		"size":                marker.Size,
		"ref":                 marker.Ref,
	}, nil
}

func (r *Recorder) resolveSpill(ctx context.Context, payload map[string]any) map[string]any {
	if !models.IsSpillMarker(payload) {
		return payload
	}

	ref, _ := payload["ref"].(string)

	if r.blobs == nil {
		return spillPlaceholder(ref, "no blob store configured")
	}

	data, err := r.blobs.Get(ctx, ref)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch spilled payload",
			"ref", ref, "error", err)

		return spillPlaceholder(ref, err.Error())
	}

	var resolved map[string]any
	if err := json.Unmarshal(data, &resolved); err != nil {
		return spillPlaceholder(ref, err.Error())
	}

	return resolved
}

func spillPlaceholder(ref, reason string) map[string]any {
	return map[string]any{
		models.SpillMarkerKey: true,
		"ref":                 ref,
		"error":               "spilled payload unavailable: " + reason,
	}
}

func spillKey(runID, nodeRef, part string) string {
	return fmt.Sprintf("node-io/%s/%s/%s.json", runID, nodeRef, part)
}
