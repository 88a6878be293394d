package approvals

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence/file"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewService(file.NewApprovalRepository(t.TempDir()), NewMemoryResolver(), logger)
}

func TestService_RequestPersistsPending(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	request, err := service.Request(ctx, RequestSpec{
		RunID:   "run-1",
		NodeRef: "gate",
		Title:   "Ship it?",
		Timeout: time.Hour,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, request.ID)
	assert.Equal(t, models.ApprovalStatusPending, request.Status)
	require.NotNil(t, request.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), *request.ExpiresAt, time.Minute)

	pending, err := service.Pending(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, request.ID, pending[0].ID)
}

func TestService_WaitReceivesApproval(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	request, err := service.Request(ctx, RequestSpec{RunID: "run-1", NodeRef: "gate", Timeout: time.Minute})
	require.NoError(t, err)

	// The waiter registers before the resolver fires.
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = service.Resolve(ctx, models.ApprovalSignal{
			RequestID:   request.ID,
			NodeRef:     "gate",
			Approved:    true,
			RespondedBy: "ops@example.com",
		})
	}()

	signal, err := service.Wait(ctx, request)
	require.NoError(t, err)
	assert.True(t, signal.Approved)
	assert.Equal(t, "ops@example.com", signal.RespondedBy)

	stored, err := service.requests.ApprovalByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusResolved, stored.Status)
	require.NotNil(t, stored.Approved)
	assert.True(t, *stored.Approved)
	assert.NotNil(t, stored.RespondedAt)
}

func TestService_WaitReceivesRejection(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	request, err := service.Request(ctx, RequestSpec{RunID: "run-1", NodeRef: "gate", Timeout: time.Minute})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = service.Resolve(ctx, models.ApprovalSignal{
			RequestID:    request.ID,
			Approved:     false,
			RespondedBy:  "ops@example.com",
			ResponseNote: "not during the freeze",
		})
	}()

	signal, err := service.Wait(ctx, request)
	require.NoError(t, err)

	// A rejection is a normal resolution, not an error.
	assert.False(t, signal.Approved)
	assert.Equal(t, "not during the freeze", signal.ResponseNote)
}

func TestService_WaitTimesOut(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	request, err := service.Request(ctx, RequestSpec{RunID: "run-1", NodeRef: "gate", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = service.Wait(ctx, request)

	var timeoutErr *TimeoutError

	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, request.ID, timeoutErr.RequestID)
	assert.Equal(t, models.KindTimeout, models.KindOf(err))

	stored, err := service.requests.ApprovalByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusExpired, stored.Status)
}

func TestService_WaitCancelled(t *testing.T) {
	service := newTestService(t)

	request, err := service.Request(context.Background(), RequestSpec{RunID: "run-1", NodeRef: "gate", Timeout: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = service.Wait(ctx, request)
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := service.requests.ApprovalByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusCancelled, stored.Status)
}

func TestService_ResolveRejectsNonPending(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	request, err := service.Request(ctx, RequestSpec{RunID: "run-1", NodeRef: "gate", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = service.Wait(ctx, request)
	require.Error(t, err)

	err = service.Resolve(ctx, models.ApprovalSignal{RequestID: request.ID, Approved: true})
	assert.Error(t, err)
}

func TestService_ResolveUnknownRequest(t *testing.T) {
	service := newTestService(t)

	err := service.Resolve(context.Background(), models.ApprovalSignal{RequestID: "ghost", Approved: true})
	assert.Error(t, err)
}

func TestMemoryResolver_DropsSignalWithoutWaiter(t *testing.T) {
	resolver := NewMemoryResolver()

	// No waiter registered; the signal is dropped, not an error.
	err := resolver.Resolve(context.Background(), models.ApprovalSignal{RequestID: "nobody"})
	assert.NoError(t, err)
}

func TestMemoryResolver_ReleaseStopsDelivery(t *testing.T) {
	resolver := NewMemoryResolver()

	signals, release, err := resolver.Await(context.Background(), "req-1")
	require.NoError(t, err)

	release()

	require.NoError(t, resolver.Resolve(context.Background(), models.ApprovalSignal{RequestID: "req-1"}))

	select {
	case <-signals:
		t.Fatal("released waiter must not receive signals")
	default:
	}
}
