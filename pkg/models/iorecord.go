package models

import "time"

// IOStatus is the lifecycle state of a node I/O record.
type IOStatus string

const (
	IOStatusRunning   IOStatus = "running"
	IOStatusCompleted IOStatus = "completed"
	IOStatusFailed    IOStatus = "failed"
	IOStatusSkipped   IOStatus = "skipped"
)

// SpillMarkerKey flags a captured payload that was moved to external storage.
const SpillMarkerKey = "_spilled"

// SpillMarker replaces an oversized captured payload inline. The full content
// lives in the blob store under Ref.
type SpillMarker struct {
	Spilled bool   `json:"_spilled"`
	Size    int    `json:"size"`
	Ref     string `json:"ref"`
}

// IsSpillMarker reports whether a stored payload is a spill marker.
func IsSpillMarker(payload map[string]any) bool {
	if payload == nil {
		return false
	}

	spilled, ok := payload[SpillMarkerKey].(bool)

	return ok && spilled
}

// NodeIORecord is the persisted capture of one action invocation, keyed by
// (RunID, NodeRef). Created at action start, finalized at completion, never
// mutated afterwards; finalized records are safe for concurrent readers.
type NodeIORecord struct {
	RunID       string         `json:"run_id"`
	NodeRef     string         `json:"node_ref"`
	ComponentID string         `json:"component_id"`
	Status      IOStatus       `json:"status"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
}
