// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrRecordNotFound indicates no node I/O record exists for the key.
	ErrRecordNotFound = errors.New("node io record not found")

	// ErrApprovalNotFound indicates no approval request exists for the id.
	ErrApprovalNotFound = errors.New("approval request not found")

	// ErrRecordFinalized indicates a write against an already-finalized record.
	ErrRecordFinalized = errors.New("node io record already finalized")
)

// RecordError wraps node I/O record errors with operation context.
type RecordError struct {
	Op      string
	RunID   string
	NodeRef string
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s failed for record %s/%s: %v", e.Op, e.RunID, e.NodeRef, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ApprovalError wraps approval request errors with operation context.
type ApprovalError struct {
	Op        string
	RequestID string
	Err       error
}

func (e *ApprovalError) Error() string {
	return fmt.Sprintf("%s failed for approval %s: %v", e.Op, e.RequestID, e.Err)
}

func (e *ApprovalError) Unwrap() error {
	return e.Err
}

func (e *ApprovalError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsRecordNotFound checks if an error indicates a missing node I/O record.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsApprovalNotFound checks if an error indicates a missing approval request.
func IsApprovalNotFound(err error) bool {
	return errors.Is(err, ErrApprovalNotFound)
}

// IsRecordFinalized checks if an error indicates a write to a finalized record.
func IsRecordFinalized(err error) bool {
	return errors.Is(err, ErrRecordFinalized)
}
