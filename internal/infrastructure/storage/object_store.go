// Package storage persists report documents and the report index as
// objects, either in a local directory or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrObjectNotFound is returned by Get when no object exists under the key
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for an empty key or one escaping the store root
	ErrInvalidKey = errors.New("invalid object key")
)

// ObjectStore is a flat key/value blob store. Keys use forward slashes.
// Put replaces the whole object or leaves the previous one untouched.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
