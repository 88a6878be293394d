// Package persistence provides the storage abstraction for node I/O records
// and approval requests.
package persistence

import (
	"context"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// NodeIORepository stores per-(run, node) capture records. A record is
// exclusively owned by the action that created it until finalized; finalized
// records are immutable and safe for concurrent readers.
type NodeIORepository interface {
	SaveRecord(ctx context.Context, record *models.NodeIORecord) error
	RecordByRun(ctx context.Context, runID, nodeRef string) (*models.NodeIORecord, error)
	RecordsByRun(ctx context.Context, runID string) ([]*models.NodeIORecord, error)
}

// ApprovalRepository stores human-input requests and their resolutions.
type ApprovalRepository interface {
	SaveApproval(ctx context.Context, request *models.ApprovalRequest) error
	ApprovalByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	PendingApprovals(ctx context.Context, runID string) ([]*models.ApprovalRequest, error)
}

// Persistence bundles the repositories behind one connection lifecycle.
type Persistence interface {
	NodeIORepository() NodeIORepository
	ApprovalRepository() ApprovalRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
