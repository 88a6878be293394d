// Package models defines the core domain models for node-based workflow execution.
package models

// JoinStrategy is the rule for when a node with multiple dependencies becomes ready.
type JoinStrategy string

const (
	// JoinAll waits for every parent to complete before the node is ready.
	JoinAll JoinStrategy = "all"
	// JoinAny makes the node ready on the first completing parent.
	JoinAny JoinStrategy = "any"
	// JoinFirst behaves like JoinAny; later parent completions are ignored.
	JoinFirst JoinStrategy = "first"
)

// EdgeKind distinguishes the success and error paths out of a node.
type EdgeKind string

const (
	EdgeKindSuccess EdgeKind = "success"
	EdgeKindError   EdgeKind = "error"
)

// ToolsHandle is the reserved source handle that marks an edge as a tool
// attachment rather than a data-flow dependency. The source node becomes a
// callable capability of the (agent-type) target node.
const ToolsHandle = "tools"

// Position is the cosmetic placement of a node in the editor canvas.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NodeConfig holds the user-authored configuration of a graph node.
type NodeConfig struct {
	Label          string                    `json:"label"`
	Params         map[string]any            `json:"params,omitempty"`
	InputOverrides map[string]map[string]any `json:"input_overrides,omitempty"`
	JoinStrategy   JoinStrategy              `json:"join_strategy,omitempty"`
	MaxConcurrency int                       `json:"max_concurrency,omitempty"`
	GroupID        string                    `json:"group_id,omitempty"`
}

// NodeData wraps the label and config the editor attaches to a node.
type NodeData struct {
	Label  string     `json:"label"`
	Config NodeConfig `json:"config"`
}

// GraphNode is a user-placed vertex of a workflow graph. It is immutable once
// compiled into an action.
type GraphNode struct {
	ID       string   `json:"id"   validate:"required"`
	Type     string   `json:"type" validate:"required"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// GraphEdge connects a source node/output handle to a target node/input handle.
type GraphEdge struct {
	ID           string   `json:"id"`
	Source       string   `json:"source" validate:"required"`
	Target       string   `json:"target" validate:"required"`
	SourceHandle string   `json:"source_handle,omitempty"`
	TargetHandle string   `json:"target_handle,omitempty"`
	Kind         EdgeKind `json:"kind,omitempty"`
}

// IsToolEdge reports whether the edge attaches its source as a tool of the target.
func (e *GraphEdge) IsToolEdge() bool {
	return e.SourceHandle == ToolsHandle || e.TargetHandle == ToolsHandle
}

// WorkflowGraph is the user-authored graph handed to the compiler.
type WorkflowGraph struct {
	Name        string       `json:"name" validate:"required,min=3"`
	Description string       `json:"description,omitempty"`
	Entrypoint  string       `json:"entrypoint,omitempty"`
	Nodes       []*GraphNode `json:"nodes" validate:"required,min=1,dive"`
	Edges       []*GraphEdge `json:"edges" validate:"dive"`
}

// NodeByID returns the node with the given id, or nil.
func (g *WorkflowGraph) NodeByID(id string) *GraphNode {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}
