// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/arjanchaudharyy/flowdeck/pkg/components"
	"github.com/arjanchaudharyy/flowdeck/pkg/registry"
)

func NewRegistry(logger *slog.Logger, deps components.Deps) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	if err := components.RegisterBuiltins(reg, deps); err != nil {
		return nil, err
	}

	return reg, nil
}
