package approvals

import (
	"context"
	"sync"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// Resolver carries resolution signals from external actors to the waiting
// gate action. Await must be cheap to hold open for hours, so resolvers are
// channel-based rather than polling.
type Resolver interface {
	// Await returns a channel that delivers the resolution signal for the
	// request, plus a release function the caller must invoke when done.
	Await(ctx context.Context, requestID string) (<-chan models.ApprovalSignal, func(), error)

	// Resolve delivers a signal to whoever is awaiting its request.
	Resolve(ctx context.Context, signal models.ApprovalSignal) error
}

// MemoryResolver routes signals inside a single process.
type MemoryResolver struct {
	mu      sync.Mutex
	waiters map[string]chan models.ApprovalSignal
}

// NewMemoryResolver creates an in-process resolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{waiters: make(map[string]chan models.ApprovalSignal)}
}

// Await implements Resolver.
func (r *MemoryResolver) Await(_ context.Context, requestID string) (<-chan models.ApprovalSignal, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan models.ApprovalSignal, 1)
	r.waiters[requestID] = ch

	release := func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		delete(r.waiters, requestID)
	}

	return ch, release, nil
}

// Resolve implements Resolver. Signals for requests nobody awaits are
// dropped; the request state in persistence is the source of truth.
func (r *MemoryResolver) Resolve(_ context.Context, signal models.ApprovalSignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.waiters[signal.RequestID]; ok {
		select {
		case ch <- signal:
		default:
		}
	}

	return nil
}
