// Package scheduler walks a compiled definition at run time, firing actions
// as soon as their join condition is satisfied and running independent
// branches concurrently in cooperative batches.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// InvokeFunc performs the actual dispatch of one ready action. The scheduler
// supplies the ref; the caller owns validation, capture, and the runner.
type InvokeFunc func(ctx context.Context, actionRef string) error

// DeadlockError reports an empty ready queue before the run completed. This
// is a fatal internal-consistency failure: a validated definition can never
// starve the queue.
type DeadlockError struct {
	Completed int
	Total     int
	Blocked   []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf(
		"scheduler deadlock: %d of %d actions completed, blocked nodes: %s",
		e.Completed, e.Total, strings.Join(e.Blocked, ", "),
	)
}

// Kind implements models.Kinder.
func (e *DeadlockError) Kind() models.ErrorKind {
	return models.KindSchedulerDeadlock
}

// ActionError wraps a failed action with its node reference.
type ActionError struct {
	Ref string
	Err error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q failed: %v", e.Ref, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// nodeState tracks per-node scheduling progress.
type nodeState struct {
	remaining int
	triggered bool
	completed bool
}

// Scheduler drives one run of a compiled definition.
type Scheduler struct {
	logger *slog.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger.With("module", "scheduler")}
}

// Run executes every action of the definition exactly once, respecting join
// strategy. Independent ready actions run concurrently within a batch; the
// batch resolves only when every member resolves (no orphaned invocations).
// On the first failed action no further batches are dispatched and the
// failure propagates; siblings already in flight finish first.
func (s *Scheduler) Run(ctx context.Context, def *models.CompiledDefinition, invoke InvokeFunc) error {
	total := len(def.Actions)
	if total == 0 {
		return nil
	}

	order := make(map[string]int, total)
	states := make(map[string]*nodeState, total)
	dependents := make(map[string][]string)

	for i, action := range def.Actions {
		order[action.Ref] = i
		states[action.Ref] = &nodeState{remaining: def.DependencyCounts[action.Ref]}

		for _, parent := range action.DependsOn {
			dependents[parent] = append(dependents[parent], action.Ref)
		}
	}

	ready := make([]string, 0, total)

	for _, action := range def.Actions {
		state := states[action.Ref]
		if state.remaining == 0 {
			// Zero-dependency nodes are always triggered at start,
			// regardless of join strategy.
			state.triggered = true
			ready = append(ready, action.Ref)
		}
	}

	completed := 0

	for completed < total {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(ready) == 0 {
			return &DeadlockError{
				Completed: completed,
				Total:     total,
				Blocked:   s.blockedRefs(def, states),
			}
		}

		batch := ready
		ready = nil

		sort.Slice(batch, func(i, j int) bool { return order[batch[i]] < order[batch[j]] })

		s.logger.DebugContext(ctx, "Dispatching batch", "size", len(batch), "refs", batch)

		if err := s.runBatch(ctx, batch, invoke); err != nil {
			return err
		}

		for _, ref := range batch {
			states[ref].completed = true
			completed++

			for _, dependent := range dependents[ref] {
				if s.onParentCompleted(def, states[dependent], dependent) {
					ready = append(ready, dependent)
				}
			}
		}
	}

	return nil
}

// onParentCompleted advances a dependent's state after one of its parents
// finished and reports whether it just became ready.
func (s *Scheduler) onParentCompleted(def *models.CompiledDefinition, state *nodeState, ref string) bool {
	join := models.JoinAll
	if meta := def.Nodes[ref]; meta != nil && meta.JoinStrategy != "" {
		join = meta.JoinStrategy
	}

	switch join {
	case models.JoinAny, models.JoinFirst:
		// First-wins: the first completing parent triggers the node, later
		// parents are silently ignored. There is no cancellation of the
		// losing branches.
		if state.triggered {
			return false
		}

		state.triggered = true
		state.remaining = 0

		return true
	default:
		state.remaining--
		if state.remaining == 0 && !state.triggered {
			state.triggered = true

			return true
		}

		return false
	}
}

// runBatch invokes every action of the batch concurrently and waits for all
// of them. The first error (in batch order) wins.
func (s *Scheduler) runBatch(ctx context.Context, batch []string, invoke InvokeFunc) error {
	if len(batch) == 1 {
		if err := invoke(ctx, batch[0]); err != nil {
			return &ActionError{Ref: batch[0], Err: err}
		}

		return nil
	}

	errs := make([]error, len(batch))

	var wg sync.WaitGroup

	for i, ref := range batch {
		wg.Add(1)

		go func(i int, ref string) {
			defer wg.Done()

			errs[i] = invoke(ctx, ref)
		}(i, ref)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return &ActionError{Ref: batch[i], Err: err}
		}
	}

	return nil
}

func (s *Scheduler) blockedRefs(def *models.CompiledDefinition, states map[string]*nodeState) []string {
	blocked := make([]string, 0)

	for _, action := range def.Actions {
		state := states[action.Ref]
		if !state.completed && !state.triggered {
			blocked = append(blocked, action.Ref)
		}
	}

	return blocked
}
