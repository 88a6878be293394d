// Package registry holds the process-wide component registry. It is built at
// startup, append-only afterwards, and passed explicitly into the compiler
// and engine so tests can construct isolated registries.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// UnknownComponentError names a component id no registration exists for.
type UnknownComponentError struct {
	ComponentID string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("component %q is not registered", e.ComponentID)
}

// Kind implements models.Kinder.
func (e *UnknownComponentError) Kind() models.ErrorKind {
	return models.KindUnknownComponent
}

// Registry maps component ids to their immutable registrations.
type Registry struct {
	logger *slog.Logger

	mu         sync.RWMutex
	components map[string]*models.Component
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:     logger.With("module", "registry"),
		components: make(map[string]*models.Component),
	}
}

// Register adds a component. Registering an id twice or a component with an
// invalid runner config is a programming error and returns one.
func (r *Registry) Register(component *models.Component) error {
	if component == nil || component.ID == "" {
		return fmt.Errorf("component registration requires an id")
	}

	if err := component.Runner.Validate(); err != nil {
		return fmt.Errorf("component %q runner config: %w", component.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[component.ID]; exists {
		return fmt.Errorf("component %q is already registered", component.ID)
	}

	r.components[component.ID] = component
	r.logger.Debug("Registered component", "component_id", component.ID, "category", component.Category)

	return nil
}

// MustRegister registers a component and panics on failure. For process
// startup wiring where a bad registration is unrecoverable.
func (r *Registry) MustRegister(component *models.Component) {
	if err := r.Register(component); err != nil {
		panic(err)
	}
}

// Get looks up a component by id.
func (r *Registry) Get(componentID string) (*models.Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	component, ok := r.components[componentID]
	if !ok {
		return nil, &UnknownComponentError{ComponentID: componentID}
	}

	return component, nil
}

// Has reports whether a component id is registered.
func (r *Registry) Has(componentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.components[componentID]

	return ok
}

// Components returns a snapshot of all registrations sorted by id.
func (r *Registry) Components() []*models.Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Component, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}
