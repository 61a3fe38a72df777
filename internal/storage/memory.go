package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// MemoryStore implements ObjectStore in memory. It backs tests and the
// "memory" factory type.
type MemoryStore struct {
	mutex   sync.RWMutex
	objects map[string]memObject
	baseURL string
}

// NewMemoryStore creates an empty in-memory object store
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memObject),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (ms *MemoryStore) urlFor(key string) string {
	if ms.baseURL == "" {
		return ""
	}
	return ms.baseURL + "/" + key
}

func (ms *MemoryStore) infoFor(key string, obj memObject) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		LastModified: obj.lastModified,
		URL:          ms.urlFor(key),
	}
}

// lookup finds an object by case-insensitive key comparison
func (ms *MemoryStore) lookup(key string) (string, memObject, bool) {
	if obj, ok := ms.objects[key]; ok {
		return key, obj, true
	}
	lower := strings.ToLower(key)
	for k, obj := range ms.objects {
		if strings.ToLower(k) == lower {
			return k, obj, true
		}
	}
	return "", memObject{}, false
}

// Put stores content under the given key
func (ms *MemoryStore) Put(ctx context.Context, key string, content io.Reader, contentType string) (ObjectInfo, error) {
	select {
	case <-ctx.Done():
		return ObjectInfo{}, ctx.Err()
	default:
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to read content: %w", err)
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	obj := memObject{
		data:         data,
		contentType:  contentType,
		lastModified: time.Now().UTC(),
	}
	ms.objects[key] = obj
	return ms.infoFor(key, obj), nil
}

// Get opens the object at the given key
func (ms *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ObjectInfo{}, ctx.Err()
	default:
	}

	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	k, obj, ok := ms.lookup(key)
	if !ok {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), ms.infoFor(k, obj), nil
}

// Stat returns object info without the content
func (ms *MemoryStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	select {
	case <-ctx.Done():
		return ObjectInfo{}, ctx.Err()
	default:
	}

	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	k, obj, ok := ms.lookup(key)
	if !ok {
		return ObjectInfo{}, ErrObjectNotFound
	}
	return ms.infoFor(k, obj), nil
}

// Delete removes the object and reports whether it existed
func (ms *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	k, _, ok := ms.lookup(key)
	if !ok {
		return false, nil
	}
	delete(ms.objects, k)
	return true, nil
}

// List returns objects whose key starts with prefix, case-insensitively,
// in sorted key order
func (ms *MemoryStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	lowerPrefix := strings.ToLower(prefix)
	keys := make([]string, 0, len(ms.objects))
	for k := range ms.objects {
		if strings.HasPrefix(strings.ToLower(k), lowerPrefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	objects := make([]ObjectInfo, 0, len(keys))
	for _, k := range keys {
		objects = append(objects, ms.infoFor(k, ms.objects[k]))
	}
	return objects, nil
}

// EnsureBucket is a no-op for the in-memory store
func (ms *MemoryStore) EnsureBucket(ctx context.Context) error {
	return nil
}
