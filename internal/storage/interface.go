package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when a key has no backing object
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object. The key doubles as its virtual path.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	URL          string
}

// ObjectStore defines the interface for the flat key/value blob store.
// Key comparisons are case-insensitive.
type ObjectStore interface {
	// Put streams content to the given key
	Put(ctx context.Context, key string, content io.Reader, contentType string) (ObjectInfo, error)

	// Get opens the object at the given key
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Stat returns object info without opening the content
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes the object and reports whether it existed
	Delete(ctx context.Context, key string) (bool, error)

	// List returns objects whose key starts with prefix, up to limit
	// entries; limit <= 0 means no cap
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)

	// EnsureBucket makes sure the backing container exists
	EnsureBucket(ctx context.Context) error
}
