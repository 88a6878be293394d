package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
)

// NodeIORepository stores one JSON file per (run, node) record.
type NodeIORepository struct {
	root string
	mu   sync.Mutex
}

// NewNodeIORepository creates a file-backed node I/O repository.
func NewNodeIORepository(root string) *NodeIORepository {
	return &NodeIORepository{root: root}
}

func (r *NodeIORepository) recordPath(runID, nodeRef string) string {
	return filepath.Join(r.root, "runs", sanitize(runID), "io", sanitize(nodeRef)+".json")
}

// SaveRecord writes or overwrites the record for its (run, node) key.
// Writes against an already-finalized record are rejected.
func (r *NodeIORepository) SaveRecord(ctx context.Context, record *models.NodeIORecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.readRecord(record.RunID, record.NodeRef)
	if err == nil && existing.Status != models.IOStatusRunning {
		return &persistence.RecordError{
			Op: "SaveRecord", RunID: record.RunID, NodeRef: record.NodeRef,
			Err: persistence.ErrRecordFinalized,
		}
	}

	path := r.recordPath(record.RunID, record.NodeRef)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &persistence.RecordError{Op: "SaveRecord", RunID: record.RunID, NodeRef: record.NodeRef, Err: err}
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return &persistence.RecordError{Op: "SaveRecord", RunID: record.RunID, NodeRef: record.NodeRef, Err: err}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &persistence.RecordError{Op: "SaveRecord", RunID: record.RunID, NodeRef: record.NodeRef, Err: err}
	}

	return ctx.Err()
}

// RecordByRun loads a single record.
func (r *NodeIORepository) RecordByRun(_ context.Context, runID, nodeRef string) (*models.NodeIORecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.readRecord(runID, nodeRef)
	if err != nil {
		return nil, &persistence.RecordError{Op: "RecordByRun", RunID: runID, NodeRef: nodeRef, Err: err}
	}

	return record, nil
}

// RecordsByRun loads all records of a run sorted by node ref.
func (r *NodeIORepository) RecordsByRun(_ context.Context, runID string) ([]*models.NodeIORecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.root, "runs", sanitize(runID), "io")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.NodeIORecord{}, nil
		}

		return nil, &persistence.RecordError{Op: "RecordsByRun", RunID: runID, Err: err}
	}

	records := make([]*models.NodeIORecord, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		record, err := r.readRecord(runID, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, &persistence.RecordError{Op: "RecordsByRun", RunID: runID, Err: err}
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].NodeRef < records[j].NodeRef })

	return records, nil
}

func (r *NodeIORepository) readRecord(runID, nodeRef string) (*models.NodeIORecord, error) {
	data, err := os.ReadFile(r.recordPath(runID, nodeRef))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrRecordNotFound
		}

		return nil, err
	}

	var record models.NodeIORecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	return &record, nil
}

func sanitize(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")

	return replacer.Replace(name)
}
