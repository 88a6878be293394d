package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
)

// NodeIORepository stores node I/O records in the node_io_records table.
type NodeIORepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewNodeIORepository creates a PostgreSQL-backed node I/O repository.
func NewNodeIORepository(db *sql.DB, logger *slog.Logger) *NodeIORepository {
	return &NodeIORepository{db: db, logger: logger}
}

// SaveRecord upserts the record for its (run, node) key. Finalized rows are
// never overwritten.
func (r *NodeIORepository) SaveRecord(ctx context.Context, record *models.NodeIORecord) error {
	inputs, err := json.Marshal(record.Inputs)
	if err != nil {
		return &persistence.RecordError{Op: "SaveRecord", RunID: record.RunID, NodeRef: record.NodeRef, Err: err}
	}

	outputs, err := json.Marshal(record.Outputs)
	if err != nil {
		return &persistence.RecordError{Op: "SaveRecord", RunID: record.RunID, NodeRef: record.NodeRef, Err: err}
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO node_io_records
			(run_id, node_ref, component_id, status, inputs, outputs, started_at, completed_at, duration_ms, error, error_kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, node_ref) DO UPDATE SET
			status = EXCLUDED.status,
			outputs = EXCLUDED.outputs,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms,
			error = EXCLUDED.error,
			error_kind = EXCLUDED.error_kind
		WHERE node_io_records.status = 'running'`,
		record.RunID, record.NodeRef, record.ComponentID, record.Status,
		inputs, outputs, record.StartedAt, record.CompletedAt,
		record.DurationMS, record.Error, record.ErrorKind,
	)
	if err != nil {
		return &persistence.RecordError{Op: "SaveRecord", RunID: record.RunID, NodeRef: record.NodeRef, Err: err}
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return &persistence.RecordError{
			Op: "SaveRecord", RunID: record.RunID, NodeRef: record.NodeRef,
			Err: persistence.ErrRecordFinalized,
		}
	}

	return nil
}

// RecordByRun loads a single record.
func (r *NodeIORepository) RecordByRun(ctx context.Context, runID, nodeRef string) (*models.NodeIORecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT run_id, node_ref, component_id, status, inputs, outputs,
		       started_at, completed_at, duration_ms, error, error_kind
		FROM node_io_records WHERE run_id = $1 AND node_ref = $2`,
		runID, nodeRef,
	)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrRecordNotFound
		}

		return nil, &persistence.RecordError{Op: "RecordByRun", RunID: runID, NodeRef: nodeRef, Err: err}
	}

	return record, nil
}

// RecordsByRun loads all records of a run ordered by node ref.
func (r *NodeIORepository) RecordsByRun(ctx context.Context, runID string) ([]*models.NodeIORecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, node_ref, component_id, status, inputs, outputs,
		       started_at, completed_at, duration_ms, error, error_kind
		FROM node_io_records WHERE run_id = $1 ORDER BY node_ref`,
		runID,
	)
	if err != nil {
		return nil, &persistence.RecordError{Op: "RecordsByRun", RunID: runID, Err: err}
	}

	defer func() {
		_ = rows.Close()
	}()

	records := make([]*models.NodeIORecord, 0)

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, &persistence.RecordError{Op: "RecordsByRun", RunID: runID, Err: err}
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, &persistence.RecordError{Op: "RecordsByRun", RunID: runID, Err: err}
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.NodeIORecord, error) {
	var (
		record      models.NodeIORecord
		inputs      []byte
		outputs     []byte
		completedAt sql.NullTime
	)

	err := row.Scan(
		&record.RunID, &record.NodeRef, &record.ComponentID, &record.Status,
		&inputs, &outputs, &record.StartedAt, &completedAt,
		&record.DurationMS, &record.Error, &record.ErrorKind,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		completed := completedAt.Time.UTC()
		record.CompletedAt = &completed
	}

	record.StartedAt = record.StartedAt.UTC()

	if err := unmarshalPayload(inputs, &record.Inputs); err != nil {
		return nil, err
	}

	if err := unmarshalPayload(outputs, &record.Outputs); err != nil {
		return nil, err
	}

	return &record, nil
}

func unmarshalPayload(data []byte, target *map[string]any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	return json.Unmarshal(data, target)
}
