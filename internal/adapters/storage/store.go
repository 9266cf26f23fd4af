// Package storage persists extracted frames in an object store.
package storage

import "context"

// ObjectStore is the object storage contract. Put returns a URL the AI provider can fetch.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, keys ...string) (int, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
