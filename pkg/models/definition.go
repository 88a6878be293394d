package models

// DefinitionVersion identifies the compiled artifact layout.
const DefinitionVersion = "1"

// InputMapping routes one input of an action to an output handle of an
// earlier action. Mappings are resolved at invocation time by the engine,
// never by the scheduler.
type InputMapping struct {
	SourceRef    string `json:"source_ref"`
	SourceHandle string `json:"source_handle"`
}

// Action is a compiled, run-ready unit of work. Immutable for the life of a run.
type Action struct {
	Ref           string                  `json:"ref"`
	ComponentID   string                  `json:"component_id"`
	Params        map[string]any          `json:"params,omitempty"`
	DependsOn     []string                `json:"depends_on"`
	InputMappings map[string]InputMapping `json:"input_mappings,omitempty"`
}

// NodeMetadata carries per-node scheduling metadata into the compiled definition.
type NodeMetadata struct {
	Ref                  string       `json:"ref"`
	Label                string       `json:"label,omitempty"`
	JoinStrategy         JoinStrategy `json:"join_strategy,omitempty"`
	MaxConcurrency       int          `json:"max_concurrency,omitempty"`
	GroupID              string       `json:"group_id,omitempty"`
	ConnectedToolNodeIDs []string     `json:"connected_tool_node_ids,omitempty"`
}

// Entrypoint names the first action of a compiled definition.
type Entrypoint struct {
	Ref string `json:"ref"`
}

// DefinitionConfig carries run-level settings of a compiled definition.
type DefinitionConfig struct {
	Environment    string `json:"environment,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// CompiledDefinition is the validated, topologically-ordered execution plan
// produced by the compiler. Invariants: actions are a valid topological order
// of the dependency graph; every DependsOn ref appears earlier in Actions;
// DependencyCounts[ref] equals len(DependsOn) unless the node joins on
// any/first, in which case it is 1.
type CompiledDefinition struct {
	Version          string                   `json:"version"`
	Title            string                   `json:"title"`
	Entrypoint       Entrypoint               `json:"entrypoint"`
	Nodes            map[string]*NodeMetadata `json:"nodes"`
	Edges            []*GraphEdge             `json:"edges"`
	DependencyCounts map[string]int           `json:"dependency_counts"`
	Actions          []*Action                `json:"actions"`
	Config           DefinitionConfig         `json:"config"`
}

// ActionByRef returns the compiled action with the given ref, or nil.
func (d *CompiledDefinition) ActionByRef(ref string) *Action {
	for _, a := range d.Actions {
		if a.Ref == ref {
			return a
		}
	}

	return nil
}
