package models

import "time"

// ApprovalStatus is the state machine of a human-input request:
// pending -> resolved | expired | cancelled.
type ApprovalStatus string

const (
	ApprovalStatusPending   ApprovalStatus = "pending"
	ApprovalStatusResolved  ApprovalStatus = "resolved"
	ApprovalStatusExpired   ApprovalStatus = "expired"
	ApprovalStatusCancelled ApprovalStatus = "cancelled"
)

// ApprovalRequest is created when a gate-type action executes. The action
// blocks until the request is resolved by an external actor or times out.
type ApprovalRequest struct {
	ID            string         `json:"id"`
	RunID         string         `json:"run_id"`
	NodeRef       string         `json:"node_ref"`
	Title         string         `json:"title,omitempty"`
	Message       string         `json:"message,omitempty"`
	Status        ApprovalStatus `json:"status"`
	RequestedAt   time.Time      `json:"requested_at"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	Approved      *bool          `json:"approved,omitempty"`
	RespondedBy   string         `json:"responded_by,omitempty"`
	ResponseNote  string         `json:"response_note,omitempty"`
	RespondedAt   *time.Time     `json:"responded_at,omitempty"`
	ResponseData  map[string]any `json:"response_data,omitempty"`
}

// ApprovalSignal is the resolution payload delivered by an external actor.
type ApprovalSignal struct {
	RequestID    string         `json:"request_id"`
	NodeRef      string         `json:"node_ref"`
	Approved     bool           `json:"approved"`
	RespondedBy  string         `json:"responded_by"`
	ResponseNote string         `json:"response_note,omitempty"`
	RespondedAt  time.Time      `json:"responded_at"`
	ResponseData map[string]any `json:"response_data,omitempty"`
}
