package models

import "time"

// NodeResult is the in-memory outcome of one completed action, keyed by
// output handle when the component exposes multiple outputs.
type NodeResult struct {
	NodeRef   string         `json:"node_ref"`
	Outputs   map[string]any `json:"outputs"`
	Timestamp time.Time      `json:"timestamp"`
}

// Output returns the payload for the given handle. The empty handle and
// "success" both resolve to the whole output map when no per-handle payload
// was recorded.
func (r *NodeResult) Output(handle string) (any, bool) {
	if r == nil {
		return nil, false
	}

	if v, ok := r.Outputs[handle]; ok {
		return v, true
	}

	if handle == "" || handle == string(EdgeKindSuccess) {
		return r.Outputs, r.Outputs != nil
	}

	return nil, false
}
