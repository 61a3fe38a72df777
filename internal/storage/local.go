package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const metaSuffix = ".ctype"

// LocalStore implements ObjectStore on the local filesystem. Content types
// are kept in sidecar files next to the object.
type LocalStore struct {
	basePath string
	baseURL  string
	mutex    sync.RWMutex // For concurrent access safety
}

// NewLocalStore creates a new local object store rooted at basePath
func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Error().Err(err).Str("path", basePath).Msg("failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	log.Info().Str("path", basePath).Msg("local object store initialized")
	return &LocalStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

func (ls *LocalStore) fullPath(key string) string {
	return filepath.Join(ls.basePath, filepath.FromSlash(key))
}

// resolveKey maps a key onto its on-disk key, comparing each path segment
// case-insensitively with an exact match preferred. Keys with no folded
// match come back unchanged. Keeps Get/Stat/Delete consistent with the
// case-insensitive List on case-sensitive filesystems.
func (ls *LocalStore) resolveKey(key string) string {
	dir := ls.basePath
	segments := strings.Split(key, "/")
	resolved := make([]string, 0, len(segments))

	for _, segment := range segments {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return key
		}
		match := ""
		for _, entry := range entries {
			if entry.Name() == segment {
				match = segment
				break
			}
			if match == "" && strings.EqualFold(entry.Name(), segment) {
				match = entry.Name()
			}
		}
		if match == "" {
			return key
		}
		resolved = append(resolved, match)
		dir = filepath.Join(dir, match)
	}

	return strings.Join(resolved, "/")
}

func (ls *LocalStore) urlFor(key string) string {
	if ls.baseURL == "" {
		return ""
	}
	return ls.baseURL + "/" + key
}

// Put saves content to the local filesystem with an atomic rename
func (ls *LocalStore) Put(ctx context.Context, key string, content io.Reader, contentType string) (ObjectInfo, error) {
	startTime := time.Now()

	select {
	case <-ctx.Done():
		return ObjectInfo{}, ctx.Err()
	default:
	}

	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	fullPath := ls.fullPath(key)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Error().Err(err).Str("key", key).Str("dir", dir).Msg("failed to create directory")
		return ObjectInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := fullPath + ".tmp." + fmt.Sprintf("%d", time.Now().UnixNano())
	tempFile, err := os.Create(tempPath)
	if err != nil {
		log.Error().Err(err).Str("key", key).Str("temp_path", tempPath).Msg("failed to create temporary file")
		return ObjectInfo{}, fmt.Errorf("failed to create temporary file: %w", err)
	}

	defer func() {
		tempFile.Close()
		if _, err := os.Stat(tempPath); err == nil {
			os.Remove(tempPath)
		}
	}()

	bytesWritten, err := io.Copy(tempFile, content)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to write content to temporary file")
		return ObjectInfo{}, fmt.Errorf("failed to write content: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to sync temporary file")
		return ObjectInfo{}, fmt.Errorf("failed to sync temporary file: %w", err)
	}

	tempFile.Close()

	if err := os.Rename(tempPath, fullPath); err != nil {
		log.Error().Err(err).Str("key", key).Str("temp_path", tempPath).Msg("failed to move temporary file to final location")
		return ObjectInfo{}, fmt.Errorf("failed to move file to final location: %w", err)
	}

	if contentType != "" {
		if err := os.WriteFile(fullPath+metaSuffix, []byte(contentType), 0644); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to write content type sidecar")
			return ObjectInfo{}, fmt.Errorf("failed to write content type: %w", err)
		}
	}

	log.Info().
		Str("key", key).
		Str("content_type", contentType).
		Int64("bytes_written", bytesWritten).
		Dur("duration", time.Since(startTime)).
		Msg("object stored successfully")

	return ObjectInfo{
		Key:          key,
		Size:         bytesWritten,
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
		URL:          ls.urlFor(key),
	}, nil
}

// Get opens the object at the given key
func (ls *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	select {
	case <-ctx.Done():
		return nil, ObjectInfo{}, ctx.Err()
	default:
	}

	info, err := ls.statLocked(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	file, err := os.Open(ls.fullPath(info.Key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		log.Error().Err(err).Str("key", key).Msg("failed to open object")
		return nil, ObjectInfo{}, fmt.Errorf("failed to open object: %w", err)
	}

	return file, info, nil
}

// Stat returns object info without opening the content
func (ls *LocalStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	select {
	case <-ctx.Done():
		return ObjectInfo{}, ctx.Err()
	default:
	}

	return ls.statLocked(key)
}

func (ls *LocalStore) statLocked(key string) (ObjectInfo, error) {
	key = ls.resolveKey(key)

	fi, err := os.Stat(ls.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		log.Error().Err(err).Str("key", key).Msg("failed to stat object")
		return ObjectInfo{}, fmt.Errorf("failed to stat object: %w", err)
	}
	if fi.IsDir() {
		return ObjectInfo{}, ErrObjectNotFound
	}

	contentType := ""
	if data, err := os.ReadFile(ls.fullPath(key) + metaSuffix); err == nil {
		contentType = string(data)
	}

	return ObjectInfo{
		Key:          key,
		Size:         fi.Size(),
		ContentType:  contentType,
		LastModified: fi.ModTime().UTC(),
		URL:          ls.urlFor(key),
	}, nil
}

// Delete removes the object and reports whether it existed
func (ls *LocalStore) Delete(ctx context.Context, key string) (bool, error) {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	fullPath := ls.fullPath(ls.resolveKey(key))
	os.Remove(fullPath + metaSuffix)

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("key", key).Msg("object already deleted or does not exist")
			return false, nil
		}
		log.Error().Err(err).Str("key", key).Msg("failed to delete object")
		return false, fmt.Errorf("failed to delete object: %w", err)
	}

	log.Info().Str("key", key).Msg("object deleted successfully")
	return true, nil
}

// List returns objects whose key starts with prefix, case-insensitively
func (ls *LocalStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	startTime := time.Now()
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	lowerPrefix := strings.ToLower(prefix)
	var keys []string

	err := filepath.Walk(ls.basePath, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if os.IsNotExist(err) || os.IsPermission(err) {
				log.Debug().Err(err).Str("path", path).Msg("skipping inaccessible path")
				return filepath.SkipDir
			}
			return err
		}

		if info.IsDir() || strings.HasSuffix(path, metaSuffix) || strings.Contains(filepath.Base(path), ".tmp.") {
			return nil
		}

		relPath, err := filepath.Rel(ls.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(relPath)
		if strings.HasPrefix(strings.ToLower(key), lowerPrefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("prefix", prefix).Msg("failed to list objects")
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	objects := make([]ObjectInfo, 0, len(keys))
	for _, key := range keys {
		info, err := ls.statLocked(key)
		if err != nil {
			if err == ErrObjectNotFound {
				continue
			}
			return nil, err
		}
		objects = append(objects, info)
	}

	log.Debug().
		Str("prefix", prefix).
		Int("count", len(objects)).
		Dur("duration", time.Since(startTime)).
		Msg("objects listed successfully")

	return objects, nil
}

// EnsureBucket makes sure the base directory exists
func (ls *LocalStore) EnsureBucket(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return os.MkdirAll(ls.basePath, 0755)
}
