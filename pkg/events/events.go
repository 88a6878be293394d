// Package events defines event types and structures for run lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const RunTopic = "flowdeck.runs"           // Topic for run lifecycle events
const NodeTopic = "flowdeck.nodes"         // Topic for node level events
const ApprovalTopic = "flowdeck.approvals" // Topic for approval request events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"

	// Node level events.
	NodeStartedEvent   EventType = "node.started"
	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"
	NodeProgressEvent  EventType = "node.progress"

	// Approval events.
	ApprovalRequestedEvent EventType = "approval.requested"
	ApprovalResolvedEvent  EventType = "approval.resolved"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, runID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Metadata:  make(map[string]any),
	}
}

type RunStarted struct {
	BaseEvent

	DefinitionTitle string `json:"definition_title"`
	Environment     string `json:"environment,omitempty"`
	TotalActions    int    `json:"total_actions"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	DurationMs    int64 `json:"duration_ms"`
	NodesExecuted int   `json:"nodes_executed"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	DurationMs    int64  `json:"duration_ms"`
	NodeRef       string `json:"node_ref,omitempty"`
	Error         string `json:"error"`
	ErrorKind     string `json:"error_kind"`
	NodesExecuted int    `json:"nodes_executed"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunCancelled struct {
	BaseEvent

	DurationMs    int64  `json:"duration_ms"`
	Reason        string `json:"reason,omitempty"`
	NodesExecuted int    `json:"nodes_executed"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

type NodeStarted struct {
	BaseEvent

	NodeRef     string `json:"node_ref"`
	ComponentID string `json:"component_id"`
	Attempt     int    `json:"attempt"`
}

func (e NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

type NodeCompleted struct {
	BaseEvent

	NodeRef     string         `json:"node_ref"`
	ComponentID string         `json:"component_id"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	NodeRef     string `json:"node_ref"`
	ComponentID string `json:"component_id"`
	Error       string `json:"error"`
	ErrorKind   string `json:"error_kind"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type NodeProgress struct {
	BaseEvent

	NodeRef string         `json:"node_ref"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (e NodeProgress) GetType() EventType {
	return NodeProgressEvent
}

type ApprovalRequested struct {
	BaseEvent

	RequestID string     `json:"request_id"`
	NodeRef   string     `json:"node_ref"`
	Title     string     `json:"title,omitempty"`
	Message   string     `json:"message,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (e ApprovalRequested) GetType() EventType {
	return ApprovalRequestedEvent
}

type ApprovalResolved struct {
	BaseEvent

	RequestID   string `json:"request_id"`
	NodeRef     string `json:"node_ref"`
	Approved    bool   `json:"approved"`
	RespondedBy string `json:"responded_by"`
}

func (e ApprovalResolved) GetType() EventType {
	return ApprovalResolvedEvent
}
