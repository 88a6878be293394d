// Package file provides file-based persistence for local runs and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
// Layout: {root}/runs/{runID}/io/{nodeRef}.json and {root}/approvals/{id}.json.
type Persistence struct {
	root         string
	ioRepo       *NodeIORepository
	approvalRepo *ApprovalRepository
}

// NewPersistence creates a file persistence layer rooted at the given path.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		ioRepo:       NewNodeIORepository(cleanRoot),
		approvalRepo: NewApprovalRepository(cleanRoot),
	}
}

// NodeIORepository returns the node I/O record repository.
func (p *Persistence) NodeIORepository() persistence.NodeIORepository {
	return p.ioRepo
}

// ApprovalRepository returns the approval request repository.
func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return p.approvalRepo
}

// HealthCheck verifies the root directory is usable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(p.root, 0o750); err != nil {
		return err
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
