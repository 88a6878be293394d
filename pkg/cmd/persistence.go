package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence/file"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence/postgresql"
)

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql", "postgres":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		root := strings.TrimPrefix(databaseURL, "file://")
		if root == "" {
			return nil, fmt.Errorf("file persistence requires a directory path")
		}

		return file.NewPersistence(root), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
