package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

func newRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func inlineComponent(id string) *models.Component {
	return &models.Component{
		ID:       id,
		Name:     id,
		Category: models.CategoryAction,
		Runner:   models.InlineRunner(),
		Execute: func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := newRegistry()

	require.NoError(t, reg.Register(inlineComponent("log")))

	component, err := reg.Get("log")
	require.NoError(t, err)
	assert.Equal(t, "log", component.ID)
	assert.True(t, reg.Has("log"))
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := newRegistry()

	_, err := reg.Get("missing")

	var unknownErr *UnknownComponentError

	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "missing", unknownErr.ComponentID)
	assert.Equal(t, models.KindUnknownComponent, models.KindOf(err))
	assert.False(t, reg.Has("missing"))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := newRegistry()

	require.NoError(t, reg.Register(inlineComponent("log")))
	assert.Error(t, reg.Register(inlineComponent("log")))
}

func TestRegistry_RejectsInvalidRunnerConfig(t *testing.T) {
	reg := newRegistry()

	component := inlineComponent("broken")
	component.Runner = models.RunnerConfig{Kind: "quantum"}

	assert.Error(t, reg.Register(component))
}

func TestRegistry_RejectsMissingID(t *testing.T) {
	reg := newRegistry()

	assert.Error(t, reg.Register(&models.Component{}))
	assert.Error(t, reg.Register(nil))
}

func TestRegistry_ComponentsSorted(t *testing.T) {
	reg := newRegistry()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(inlineComponent(id)))
	}

	components := reg.Components()
	require.Len(t, components, 3)
	assert.Equal(t, "alpha", components[0].ID)
	assert.Equal(t, "mid", components[1].ID)
	assert.Equal(t, "zeta", components[2].ID)
}
