// Package components registers the built-in component set.
package components

import (
	"github.com/arjanchaudharyy/flowdeck/pkg/approvals"
	"github.com/arjanchaudharyy/flowdeck/pkg/components/agent"
	"github.com/arjanchaudharyy/flowdeck/pkg/components/approval"
	"github.com/arjanchaudharyy/flowdeck/pkg/components/httprequest"
	"github.com/arjanchaudharyy/flowdeck/pkg/components/log"
	"github.com/arjanchaudharyy/flowdeck/pkg/components/script"
	"github.com/arjanchaudharyy/flowdeck/pkg/components/transform"
	"github.com/arjanchaudharyy/flowdeck/pkg/registry"
)

// Deps carries the services built-in components need at registration time.
type Deps struct {
	Approvals *approvals.Service
}

// RegisterBuiltins registers every built-in component. The approval gate is
// only registered when an approval service is available.
func RegisterBuiltins(reg *registry.Registry, deps Deps) error {
	builtins := []func() error{
		func() error { return reg.Register(log.Definition()) },
		func() error { return reg.Register(httprequest.Definition()) },
		func() error { return reg.Register(transform.Definition()) },
		func() error { return reg.Register(script.Definition()) },
		func() error { return reg.Register(agent.Definition()) },
	}

	for _, register := range builtins {
		if err := register(); err != nil {
			return err
		}
	}

	if deps.Approvals != nil {
		if err := reg.Register(approval.Definition(deps.Approvals)); err != nil {
			return err
		}
	}

	return nil
}
