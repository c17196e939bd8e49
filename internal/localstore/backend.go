// Package localstore is the client-local persistent store: the theme
// preference and, in the local-only variant, the whole post collection.
package localstore

import (
	"context"
	"fmt"
	"strings"
)

// Backend defines the interface for key/value implementations
type Backend interface {
	// Get retrieves a value
	// Returns (value, found, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// Close releases the backend
	Close() error
}

// Open returns the backend named by kind: "memory", "file" or "redis".
// target is the file path for "file" and the redis URL for "redis".
func Open(ctx context.Context, kind, target string) (Backend, error) {
	switch strings.ToLower(kind) {
	case "", "memory":
		return NewMemoryBackend(), nil
	case "file":
		if target == "" {
			return nil, fmt.Errorf("file backend needs a path")
		}
		return NewFileBackend(target)
	case "redis":
		return NewRedisBackend(ctx, target, "gardencircle:")
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}
