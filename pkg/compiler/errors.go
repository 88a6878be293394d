// Package compiler lowers a user-authored workflow graph into a validated,
// topologically-ordered compiled definition.
package compiler

import (
	"fmt"
	"strings"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// CycleError reports that the graph is not a DAG. Members lists the node ids
// that could not be ordered, in original graph order.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("workflow graph contains a cycle involving nodes: %s", strings.Join(e.Members, ", "))
}

// Kind implements models.Kinder.
func (e *CycleError) Kind() models.ErrorKind {
	return models.KindCycle
}

// GraphError reports a structurally invalid graph (duplicate ids, dangling
// edges, missing or ambiguous entrypoint).
type GraphError struct {
	Message string
}

func (e *GraphError) Error() string {
	return "invalid workflow graph: " + e.Message
}

// Kind implements models.Kinder.
func (e *GraphError) Kind() models.ErrorKind {
	return models.KindValidation
}
