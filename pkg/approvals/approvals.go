// Package approvals implements the human-input gate: a pending request is
// persisted, the action blocks until an external actor resolves it or the
// request times out, and the outcome is written back.
package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
)

// TimeoutError reports a request that expired before anyone resolved it.
// Distinct from an explicit rejection, which arrives as a normal signal with
// approved=false.
type TimeoutError struct {
	RequestID string
	NodeRef   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("approval request %s for node %s timed out", e.RequestID, e.NodeRef)
}

// Kind implements models.Kinder.
func (e *TimeoutError) Kind() models.ErrorKind {
	return models.KindTimeout
}

// RequestSpec describes the gate being opened.
type RequestSpec struct {
	RunID   string
	NodeRef string
	Title   string
	Message string
	Timeout time.Duration
}

// Service owns the approval request lifecycle.
type Service struct {
	requests persistence.ApprovalRepository
	resolver Resolver
	logger   *slog.Logger
}

// NewService creates an approval service.
func NewService(requests persistence.ApprovalRepository, resolver Resolver, logger *slog.Logger) *Service {
	return &Service{
		requests: requests,
		resolver: resolver,
		logger:   logger.With("module", "approvals"),
	}
}

// Request persists a new pending approval request and returns it.
func (s *Service) Request(ctx context.Context, spec RequestSpec) (*models.ApprovalRequest, error) {
	now := time.Now().UTC()

	request := &models.ApprovalRequest{
		ID:          uuid.New().String(),
		RunID:       spec.RunID,
		NodeRef:     spec.NodeRef,
		Title:       spec.Title,
		Message:     spec.Message,
		Status:      models.ApprovalStatusPending,
		RequestedAt: now,
	}

	if spec.Timeout > 0 {
		expires := now.Add(spec.Timeout)
		request.ExpiresAt = &expires
	}

	if err := s.requests.SaveApproval(ctx, request); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Approval requested",
		"request_id", request.ID, "run_id", spec.RunID, "node_ref", spec.NodeRef)

	return request, nil
}

// Wait blocks until the request is resolved, times out, or the context is
// cancelled. Nothing but a channel is held while waiting, so suspensions can
// safely last hours.
func (s *Service) Wait(ctx context.Context, request *models.ApprovalRequest) (*models.ApprovalSignal, error) {
	signals, release, err := s.resolver.Await(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	var expiry <-chan time.Time
	if request.ExpiresAt != nil {
		timer := time.NewTimer(time.Until(*request.ExpiresAt))
		defer timer.Stop()

		expiry = timer.C
	}

	select {
	case signal := <-signals:
		if err := s.markResolved(ctx, request, &signal); err != nil {
			return nil, err
		}

		return &signal, nil
	case <-expiry:
		if err := s.markTerminal(ctx, request, models.ApprovalStatusExpired); err != nil {
			return nil, err
		}

		return nil, &TimeoutError{RequestID: request.ID, NodeRef: request.NodeRef}
	case <-ctx.Done():
		// Best-effort: the run is being torn down and the original context
		// is no longer usable for persistence.
		cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.markTerminal(cancelCtx, request, models.ApprovalStatusCancelled); err != nil {
			s.logger.ErrorContext(cancelCtx, "Failed to mark approval cancelled",
				"request_id", request.ID, "error", err)
		}

		return nil, ctx.Err()
	}
}

// Resolve delivers an external actor's decision. The request must still be
// pending.
func (s *Service) Resolve(ctx context.Context, signal models.ApprovalSignal) error {
	request, err := s.requests.ApprovalByID(ctx, signal.RequestID)
	if err != nil {
		return err
	}

	if request.Status != models.ApprovalStatusPending {
		return &persistence.ApprovalError{
			Op:        "Resolve",
			RequestID: signal.RequestID,
			Err:       fmt.Errorf("request is %s, not pending", request.Status),
		}
	}

	if signal.RespondedAt.IsZero() {
		signal.RespondedAt = time.Now().UTC()
	}

	return s.resolver.Resolve(ctx, signal)
}

// Pending lists pending requests, optionally scoped to one run.
func (s *Service) Pending(ctx context.Context, runID string) ([]*models.ApprovalRequest, error) {
	return s.requests.PendingApprovals(ctx, runID)
}

func (s *Service) markResolved(ctx context.Context, request *models.ApprovalRequest, signal *models.ApprovalSignal) error {
	approved := signal.Approved

	request.Status = models.ApprovalStatusResolved
	request.Approved = &approved
	request.RespondedBy = signal.RespondedBy
	request.ResponseNote = signal.ResponseNote
	request.ResponseData = signal.ResponseData

	respondedAt := signal.RespondedAt
	if respondedAt.IsZero() {
		respondedAt = time.Now().UTC()
	}

	request.RespondedAt = &respondedAt

	return s.requests.SaveApproval(ctx, request)
}

func (s *Service) markTerminal(ctx context.Context, request *models.ApprovalRequest, status models.ApprovalStatus) error {
	request.Status = status

	return s.requests.SaveApproval(ctx, request)
}
