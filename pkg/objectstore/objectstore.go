// Package objectstore provides the side channel that oversized captured
// payloads spill to. The minio implementation backs production deployments;
// the file implementation backs local runs and tests.
package objectstore

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// Store reads and writes opaque blobs by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
