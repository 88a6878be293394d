package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
)

// ApprovalRepository stores one JSON file per approval request.
type ApprovalRepository struct {
	root string
	mu   sync.Mutex
}

// NewApprovalRepository creates a file-backed approval repository.
func NewApprovalRepository(root string) *ApprovalRepository {
	return &ApprovalRepository{root: root}
}

func (r *ApprovalRepository) requestPath(id string) string {
	return filepath.Join(r.root, "approvals", sanitize(id)+".json")
}

// SaveApproval writes or overwrites an approval request.
func (r *ApprovalRepository) SaveApproval(_ context.Context, request *models.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.requestPath(request.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &persistence.ApprovalError{Op: "SaveApproval", RequestID: request.ID, Err: err}
	}

	data, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return &persistence.ApprovalError{Op: "SaveApproval", RequestID: request.ID, Err: err}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &persistence.ApprovalError{Op: "SaveApproval", RequestID: request.ID, Err: err}
	}

	return nil
}

// ApprovalByID loads one approval request.
func (r *ApprovalRepository) ApprovalByID(_ context.Context, id string) (*models.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.readRequest(id)
}

// PendingApprovals lists pending requests, optionally filtered by run.
func (r *ApprovalRepository) PendingApprovals(_ context.Context, runID string) ([]*models.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.root, "approvals")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.ApprovalRequest{}, nil
		}

		return nil, &persistence.ApprovalError{Op: "PendingApprovals", Err: err}
	}

	requests := make([]*models.ApprovalRequest, 0)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		request, err := r.readRequest(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		if request.Status != models.ApprovalStatusPending {
			continue
		}

		if runID != "" && request.RunID != runID {
			continue
		}

		requests = append(requests, request)
	}

	sort.Slice(requests, func(i, j int) bool { return requests[i].RequestedAt.Before(requests[j].RequestedAt) })

	return requests, nil
}

func (r *ApprovalRepository) readRequest(id string) (*models.ApprovalRequest, error) {
	data, err := os.ReadFile(r.requestPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &persistence.ApprovalError{Op: "ApprovalByID", RequestID: id, Err: persistence.ErrApprovalNotFound}
		}

		return nil, &persistence.ApprovalError{Op: "ApprovalByID", RequestID: id, Err: err}
	}

	var request models.ApprovalRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return nil, &persistence.ApprovalError{Op: "ApprovalByID", RequestID: id, Err: err}
	}

	return &request, nil
}
