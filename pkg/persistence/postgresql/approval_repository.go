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

// ApprovalRepository stores approval requests in the approval_requests table.
type ApprovalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewApprovalRepository creates a PostgreSQL-backed approval repository.
func NewApprovalRepository(db *sql.DB, logger *slog.Logger) *ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

// SaveApproval upserts an approval request keyed by its id.
func (r *ApprovalRepository) SaveApproval(ctx context.Context, request *models.ApprovalRequest) error {
	responseData, err := json.Marshal(request.ResponseData)
	if err != nil {
		return &persistence.ApprovalError{Op: "SaveApproval", RequestID: request.ID, Err: err}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO approval_requests
			(id, run_id, node_ref, title, message, status, requested_at, expires_at,
			 approved, responded_by, response_note, responded_at, response_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			approved = EXCLUDED.approved,
			responded_by = EXCLUDED.responded_by,
			response_note = EXCLUDED.response_note,
			responded_at = EXCLUDED.responded_at,
			response_data = EXCLUDED.response_data`,
		request.ID, request.RunID, request.NodeRef, request.Title, request.Message,
		request.Status, request.RequestedAt, request.ExpiresAt,
		request.Approved, request.RespondedBy, request.ResponseNote,
		request.RespondedAt, responseData,
	)
	if err != nil {
		return &persistence.ApprovalError{Op: "SaveApproval", RequestID: request.ID, Err: err}
	}

	return nil
}

// ApprovalByID loads a single approval request.
func (r *ApprovalRepository) ApprovalByID(ctx context.Context, requestID string) (*models.ApprovalRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, run_id, node_ref, title, message, status, requested_at, expires_at,
		       approved, responded_by, response_note, responded_at, response_data
		FROM approval_requests WHERE id = $1`,
		requestID,
	)

	request, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrApprovalNotFound
		}

		return nil, &persistence.ApprovalError{Op: "ApprovalByID", RequestID: requestID, Err: err}
	}

	return request, nil
}

// PendingApprovals lists pending requests, optionally filtered by run.
func (r *ApprovalRepository) PendingApprovals(ctx context.Context, runID string) ([]*models.ApprovalRequest, error) {
	query := `
		SELECT id, run_id, node_ref, title, message, status, requested_at, expires_at,
		       approved, responded_by, response_note, responded_at, response_data
		FROM approval_requests WHERE status = $1`
	args := []any{models.ApprovalStatusPending}

	if runID != "" {
		query += " AND run_id = $2"
		args = append(args, runID)
	}

	query += " ORDER BY requested_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &persistence.ApprovalError{Op: "PendingApprovals", Err: err}
	}

	defer func() {
		_ = rows.Close()
	}()

	requests := make([]*models.ApprovalRequest, 0)

	for rows.Next() {
		request, err := scanApproval(rows)
		if err != nil {
			return nil, &persistence.ApprovalError{Op: "PendingApprovals", Err: err}
		}

		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, &persistence.ApprovalError{Op: "PendingApprovals", Err: err}
	}

	return requests, nil
}

func scanApproval(row rowScanner) (*models.ApprovalRequest, error) {
	var (
		request      models.ApprovalRequest
		expiresAt    sql.NullTime
		approved     sql.NullBool
		respondedAt  sql.NullTime
		responseData []byte
	)

	err := row.Scan(
		&request.ID, &request.RunID, &request.NodeRef, &request.Title, &request.Message,
		&request.Status, &request.RequestedAt, &expiresAt,
		&approved, &request.RespondedBy, &request.ResponseNote, &respondedAt, &responseData,
	)
	if err != nil {
		return nil, err
	}

	request.RequestedAt = request.RequestedAt.UTC()

	if expiresAt.Valid {
		expires := expiresAt.Time.UTC()
		request.ExpiresAt = &expires
	}

	if approved.Valid {
		value := approved.Bool
		request.Approved = &value
	}

	if respondedAt.Valid {
		responded := respondedAt.Time.UTC()
		request.RespondedAt = &responded
	}

	if err := unmarshalPayload(responseData, &request.ResponseData); err != nil {
		return nil, err
	}

	return &request, nil
}
