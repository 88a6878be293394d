package compiler

import (
	"fmt"
	"sort"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/registry"
)

// Compile validates a workflow graph against the registry and lowers it into
// a compiled definition. It is a pure function: the same graph always
// produces the same definition, and no partial definition is ever returned.
func Compile(graph *models.WorkflowGraph, reg *registry.Registry) (*models.CompiledDefinition, error) {
	if graph == nil || len(graph.Nodes) == 0 {
		return nil, &GraphError{Message: "graph has no nodes"}
	}

	index := make(map[string]int, len(graph.Nodes))

	for i, node := range graph.Nodes {
		if node.ID == "" {
			return nil, &GraphError{Message: fmt.Sprintf("node at position %d has no id", i)}
		}

		if _, dup := index[node.ID]; dup {
			return nil, &GraphError{Message: fmt.Sprintf("duplicate node id %q", node.ID)}
		}

		index[node.ID] = i

		if _, err := reg.Get(node.Type); err != nil {
			return nil, err
		}
	}

	for _, edge := range graph.Edges {
		if _, ok := index[edge.Source]; !ok {
			return nil, &GraphError{Message: fmt.Sprintf("edge %q references unknown source node %q", edge.ID, edge.Source)}
		}

		if _, ok := index[edge.Target]; !ok {
			return nil, &GraphError{Message: fmt.Sprintf("edge %q references unknown target node %q", edge.ID, edge.Target)}
		}

		if edge.Source == edge.Target {
			return nil, &GraphError{Message: fmt.Sprintf("edge %q is self-referential on node %q", edge.ID, edge.Source)}
		}
	}

	deps, tools := collectEdges(graph)

	order, err := topoSort(graph, index, deps)
	if err != nil {
		return nil, err
	}

	entry, err := findEntrypoint(graph, deps, tools)
	if err != nil {
		return nil, err
	}

	def := &models.CompiledDefinition{
		Version:          models.DefinitionVersion,
		Title:            graph.Name,
		Entrypoint:       models.Entrypoint{Ref: entry},
		Nodes:            make(map[string]*models.NodeMetadata, len(graph.Nodes)),
		Edges:            graph.Edges,
		DependencyCounts: make(map[string]int, len(graph.Nodes)),
		Actions:          make([]*models.Action, 0, len(graph.Nodes)),
	}

	mappings := collectInputMappings(graph)

	for _, node := range graph.Nodes {
		join := node.Data.Config.JoinStrategy
		if join == "" {
			join = models.JoinAll
		}

		def.Nodes[node.ID] = &models.NodeMetadata{
			Ref:                  node.ID,
			Label:                nodeLabel(node),
			JoinStrategy:         join,
			MaxConcurrency:       node.Data.Config.MaxConcurrency,
			GroupID:              node.Data.Config.GroupID,
			ConnectedToolNodeIDs: tools[node.ID],
		}

		count := len(deps[node.ID])
		if (join == models.JoinAny || join == models.JoinFirst) && count > 1 {
			count = 1
		}

		def.DependencyCounts[node.ID] = count
	}

	for _, id := range order {
		node := graph.Nodes[index[id]]

		def.Actions = append(def.Actions, &models.Action{
			Ref:           id,
			ComponentID:   node.Type,
			Params:        copyParams(node.Data.Config.Params),
			DependsOn:     deps[id],
			InputMappings: mappings[id],
		})
	}

	return def, nil
}

// collectEdges splits the edge list into dependency edges (ordered, deduped,
// per target) and tool attachments (source refs per agent target). Tool
// edges grant a capability; they never gate readiness.
func collectEdges(graph *models.WorkflowGraph) (map[string][]string, map[string][]string) {
	deps := make(map[string][]string)
	tools := make(map[string][]string)
	seen := make(map[string]map[string]bool)

	for _, edge := range graph.Edges {
		if edge.IsToolEdge() {
			if !contains(tools[edge.Target], edge.Source) {
				tools[edge.Target] = append(tools[edge.Target], edge.Source)
			}

			continue
		}

		if seen[edge.Target] == nil {
			seen[edge.Target] = make(map[string]bool)
		}

		if seen[edge.Target][edge.Source] {
			continue
		}

		seen[edge.Target][edge.Source] = true
		deps[edge.Target] = append(deps[edge.Target], edge.Source)
	}

	return deps, tools
}

// collectInputMappings records, per target node, where each concrete input
// handle gets its value from. Only success-kind edges carry data.
func collectInputMappings(graph *models.WorkflowGraph) map[string]map[string]models.InputMapping {
	mappings := make(map[string]map[string]models.InputMapping)

	for _, edge := range graph.Edges {
		if edge.IsToolEdge() || edge.TargetHandle == "" {
			continue
		}

		if edge.Kind != "" && edge.Kind != models.EdgeKindSuccess {
			continue
		}

		if mappings[edge.Target] == nil {
			mappings[edge.Target] = make(map[string]models.InputMapping)
		}

		mappings[edge.Target][edge.TargetHandle] = models.InputMapping{
			SourceRef:    edge.Source,
			SourceHandle: edge.SourceHandle,
		}
	}

	return mappings
}

// topoSort runs a stable Kahn sort over the dependency edges, breaking ties
// by original node order. Leftover nodes form a cycle.
func topoSort(graph *models.WorkflowGraph, index map[string]int, deps map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(graph.Nodes))
	dependents := make(map[string][]string)

	for _, node := range graph.Nodes {
		indegree[node.ID] = len(deps[node.ID])
	}

	for target, sources := range deps {
		for _, source := range sources {
			dependents[source] = append(dependents[source], target)
		}
	}

	ready := make([]string, 0, len(graph.Nodes))
	for _, node := range graph.Nodes {
		if indegree[node.ID] == 0 {
			ready = append(ready, node.ID)
		}
	}

	order := make([]string, 0, len(graph.Nodes))

	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return index[ready[i]] < index[ready[j]] })

		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(graph.Nodes) {
		ordered := make(map[string]bool, len(order))
		for _, id := range order {
			ordered[id] = true
		}

		members := make([]string, 0)

		for _, node := range graph.Nodes {
			if !ordered[node.ID] {
				members = append(members, node.ID)
			}
		}

		return nil, &CycleError{Members: members}
	}

	return order, nil
}

// findEntrypoint resolves the run's starting node. An explicitly designated
// entrypoint must be a root; otherwise the graph must have exactly one root.
// Nodes that exist purely as tool attachments are not entrypoint candidates.
func findEntrypoint(graph *models.WorkflowGraph, deps map[string][]string, tools map[string][]string) (string, error) {
	toolOnly := pureToolSources(graph, deps)

	roots := make([]string, 0)

	for _, node := range graph.Nodes {
		if len(deps[node.ID]) == 0 && !toolOnly[node.ID] {
			roots = append(roots, node.ID)
		}
	}

	if graph.Entrypoint != "" {
		for _, root := range roots {
			if root == graph.Entrypoint {
				return root, nil
			}
		}

		return "", &GraphError{Message: fmt.Sprintf("designated entrypoint %q is not a root node", graph.Entrypoint)}
	}

	switch len(roots) {
	case 1:
		return roots[0], nil
	case 0:
		return "", &GraphError{Message: "graph has no entrypoint node"}
	default:
		return "", &GraphError{Message: fmt.Sprintf("graph has %d root nodes, exactly one entrypoint required", len(roots))}
	}
}

// pureToolSources flags nodes whose only connections are outgoing tool edges.
func pureToolSources(graph *models.WorkflowGraph, deps map[string][]string) map[string]bool {
	hasToolOut := make(map[string]bool)
	hasDataEdge := make(map[string]bool)

	for _, edge := range graph.Edges {
		if edge.IsToolEdge() {
			hasToolOut[edge.Source] = true

			continue
		}

		hasDataEdge[edge.Source] = true
		hasDataEdge[edge.Target] = true
	}

	out := make(map[string]bool)

	for _, node := range graph.Nodes {
		if hasToolOut[node.ID] && !hasDataEdge[node.ID] && len(deps[node.ID]) == 0 {
			out[node.ID] = true
		}
	}

	return out
}

func nodeLabel(node *models.GraphNode) string {
	if node.Data.Config.Label != "" {
		return node.Data.Config.Label
	}

	return node.Data.Label
}

func copyParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}

	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}

	return out
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}

	return false
}
