package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

// recorder collects invocations in dispatch order, safe for concurrent batches.
type recorder struct {
	mu   sync.Mutex
	refs []string
}

func (r *recorder) invoke(_ context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refs = append(r.refs, ref)

	return nil
}

func (r *recorder) invoked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.refs...)
}

func action(ref string, dependsOn ...string) *models.Action {
	return &models.Action{Ref: ref, ComponentID: "log", DependsOn: dependsOn}
}

func definition(actions ...*models.Action) *models.CompiledDefinition {
	def := &models.CompiledDefinition{
		Version:          models.DefinitionVersion,
		Nodes:            make(map[string]*models.NodeMetadata),
		DependencyCounts: make(map[string]int),
		Actions:          actions,
	}

	for _, a := range actions {
		def.Nodes[a.Ref] = &models.NodeMetadata{Ref: a.Ref, JoinStrategy: models.JoinAll}
		def.DependencyCounts[a.Ref] = len(a.DependsOn)
	}

	return def
}

func TestRun_LinearOrder(t *testing.T) {
	rec := &recorder{}
	def := definition(action("a"), action("b", "a"), action("c", "b"))

	err := newTestScheduler().Run(context.Background(), def, rec.invoke)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, rec.invoked())
}

func TestRun_EmptyDefinition(t *testing.T) {
	err := newTestScheduler().Run(context.Background(), definition(), nil)
	assert.NoError(t, err)
}

func TestRun_DiamondRunsEveryActionOnce(t *testing.T) {
	rec := &recorder{}
	def := definition(action("a"), action("b", "a"), action("c", "a"), action("d", "b", "c"))

	err := newTestScheduler().Run(context.Background(), def, rec.invoke)
	require.NoError(t, err)

	invoked := rec.invoked()
	assert.Len(t, invoked, 4)
	assert.Equal(t, "a", invoked[0])
	assert.Equal(t, "d", invoked[3])
	assert.ElementsMatch(t, []string{"b", "c"}, invoked[1:3])
}

func TestRun_JoinAllWaitsForEveryParent(t *testing.T) {
	rec := &recorder{}
	def := definition(action("a"), action("b", "a"), action("c", "a"), action("join", "b", "c"))

	err := newTestScheduler().Run(context.Background(), def, rec.invoke)
	require.NoError(t, err)

	invoked := rec.invoked()
	assert.Equal(t, "join", invoked[len(invoked)-1])
	assert.Equal(t, 1, countOf(invoked, "join"))
}

func TestRun_JoinAnyTriggersExactlyOnce(t *testing.T) {
	for _, strategy := range []models.JoinStrategy{models.JoinAny, models.JoinFirst} {
		t.Run(string(strategy), func(t *testing.T) {
			rec := &recorder{}
			def := definition(action("a"), action("b", "a"), action("c", "a"), action("join", "b", "c"))
			def.Nodes["join"].JoinStrategy = strategy
			def.DependencyCounts["join"] = 1

			err := newTestScheduler().Run(context.Background(), def, rec.invoke)
			require.NoError(t, err)

			invoked := rec.invoked()
			assert.Len(t, invoked, 4)
			assert.Equal(t, 1, countOf(invoked, "join"))
		})
	}
}

func TestRun_FailFast(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")

	invoke := func(ctx context.Context, ref string) error {
		_ = rec.invoke(ctx, ref)
		if ref == "b" {
			return boom
		}

		return nil
	}

	def := definition(action("a"), action("b", "a"), action("c", "b"), action("d", "c"))

	err := newTestScheduler().Run(context.Background(), def, invoke)

	var actionErr *ActionError

	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "b", actionErr.Ref)
	assert.ErrorIs(t, err, boom)

	// Nothing downstream of the failure is dispatched.
	assert.Equal(t, []string{"a", "b"}, rec.invoked())
}

func TestRun_FailureLetsSiblingsFinish(t *testing.T) {
	rec := &recorder{}

	invoke := func(ctx context.Context, ref string) error {
		_ = rec.invoke(ctx, ref)
		if ref == "b" {
			return errors.New("boom")
		}

		return nil
	}

	def := definition(action("a"), action("b", "a"), action("c", "a"), action("d", "b", "c"))

	err := newTestScheduler().Run(context.Background(), def, invoke)
	require.Error(t, err)

	// The batch resolves fully: the sibling c still ran, d never did.
	invoked := rec.invoked()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, invoked)
}

func TestRun_Deadlock(t *testing.T) {
	def := definition(action("a"), action("b", "a"))
	// A dependency count the graph can never satisfy starves the queue.
	def.DependencyCounts["b"] = 2

	err := newTestScheduler().Run(context.Background(), def, (&recorder{}).invoke)

	var deadlockErr *DeadlockError

	require.ErrorAs(t, err, &deadlockErr)
	assert.Equal(t, 1, deadlockErr.Completed)
	assert.Equal(t, 2, deadlockErr.Total)
	assert.Equal(t, []string{"b"}, deadlockErr.Blocked)
	assert.Equal(t, models.KindSchedulerDeadlock, models.KindOf(err))
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	invoke := func(_ context.Context, ref string) error {
		if ref == "a" {
			cancel()
		}

		return nil
	}

	def := definition(action("a"), action("b", "a"))

	err := newTestScheduler().Run(ctx, def, invoke)
	assert.ErrorIs(t, err, context.Canceled)
}

func countOf(list []string, item string) int {
	n := 0

	for _, v := range list {
		if v == item {
			n++
		}
	}

	return n
}
