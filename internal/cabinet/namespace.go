package cabinet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/driftworks/cabinet/internal/common"
	"github.com/driftworks/cabinet/internal/storage"
	"github.com/driftworks/cabinet/pkg/types"
	"github.com/rs/zerolog/log"
)

const (
	defaultTake = 200
	maxTake     = 2000
)

// SynthesizeFolders merges blob-implied folder prefixes with folder metadata
// rows into the complete virtual folder set. The result is order-independent:
// the same storage and metadata state always yields the same set.
func SynthesizeFolders(root string, blobKeys []string, folderRows []string) map[string]struct{} {
	folders := make(map[string]struct{})

	// Every strict prefix of a blob key is a folder the key implies.
	for _, key := range blobKeys {
		segments := strings.Split(Normalize(key), "/")
		for i := 1; i < len(segments); i++ {
			folders[strings.Join(segments[:i], "/")] = struct{}{}
		}
	}

	// Folder rows recover empty folders; walking from the root keeps the
	// ancestor chain present even when intermediate levels have no row.
	root = Normalize(root)
	lowerRoot := strings.ToLower(root)
	for _, row := range folderRows {
		row = Normalize(row)
		if row == "" {
			continue
		}

		rel := row
		current := ""
		if root != "" {
			lowerRow := strings.ToLower(row)
			if lowerRow != lowerRoot && !strings.HasPrefix(lowerRow, lowerRoot+"/") {
				continue
			}
			folders[root] = struct{}{}
			if lowerRow == lowerRoot {
				continue
			}
			rel = row[len(root)+1:]
			current = root
		}

		for _, segment := range strings.Split(rel, "/") {
			if current == "" {
				current = segment
			} else {
				current = current + "/" + segment
			}
			folders[current] = struct{}{}
		}
	}

	return folders
}

func clampTake(take int) int {
	if take <= 0 {
		return defaultTake
	}
	if take > maxTake {
		return maxTake
	}
	return take
}

func (s *Service) listingCacheKey(prefix string, take int) string {
	return fmt.Sprintf("%s%s:%d", listingCachePrefix, prefix, take)
}

// List synthesizes the virtual namespace under root plus the optional caller
// prefix: a capped blob listing merged with folder metadata rows, comments
// attached. FolderPaths is sorted for stable output only; consumers must not
// rely on ordering.
func (s *Service) List(ctx context.Context, prefix string, take int) (*types.Listing, error) {
	take = clampTake(take)
	listPrefix := s.resolver.CombineWithRoot(prefix)

	if s.cache != nil {
		cacheKey := s.listingCacheKey(listPrefix, take)
		var cached types.Listing
		err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, common.ErrCacheMiss) {
			// Evict entries that fail to decode so the key is not wedged
			// until the TTL expires.
			log.Warn().Err(err).Str("key", cacheKey).Msg("dropping unreadable cached listing")
			if delErr := s.cache.Delete(ctx, cacheKey); delErr != nil {
				log.Error().Err(delErr).Str("key", cacheKey).Msg("failed to drop cached listing")
			}
		}
	}

	startTime := time.Now()
	objects, err := s.store.List(ctx, listPrefix, take)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	// Keys sharing only a name prefix with the root (docs vs docsx) are
	// outside the managed namespace.
	blobKeys := make([]string, 0, len(objects))
	infoByKey := make(map[string]storage.ObjectInfo, len(objects))
	for _, obj := range objects {
		if !s.resolver.IsInsideRoot(obj.Key) {
			continue
		}
		blobKeys = append(blobKeys, obj.Key)
		infoByKey[obj.Key] = obj
	}

	folderRows, err := s.meta.FolderPathsUnder(ctx)
	if err != nil {
		return nil, err
	}

	folderSet := SynthesizeFolders(s.resolver.Root(), blobKeys, folderRows)
	folderPaths := make([]string, 0, len(folderSet))
	for path := range folderSet {
		folderPaths = append(folderPaths, path)
	}
	sort.Strings(folderPaths)

	fileComments, err := s.meta.CommentsFor(ctx, types.KindFile, blobKeys)
	if err != nil {
		return nil, err
	}
	folderComments, err := s.meta.CommentsFor(ctx, types.KindFolder, folderPaths)
	if err != nil {
		return nil, err
	}

	files := make([]types.FileInfo, 0, len(blobKeys))
	for _, key := range blobKeys {
		info := infoByKey[key]
		files = append(files, types.FileInfo{
			Name:         key,
			Size:         info.Size,
			ContentType:  info.ContentType,
			LastModified: info.LastModified,
			URL:          info.URL,
			Comment:      fileComments[key],
		})
	}

	listing := &types.Listing{
		Files:          files,
		FolderPaths:    folderPaths,
		FolderComments: folderComments,
		ManagedRoot:    s.resolver.Root(),
		UploadConfig:   s.UploadPolicy(),
	}

	log.Debug().
		Str("prefix", listPrefix).
		Int("files", len(files)).
		Int("folders", len(folderPaths)).
		Dur("duration", time.Since(startTime)).
		Msg("namespace synthesized")

	if s.cache != nil && s.cfg.ListingCacheTTL > 0 {
		if err := s.cache.Set(ctx, s.listingCacheKey(listPrefix, take), listing, s.cfg.ListingCacheTTL); err != nil {
			log.Error().Err(err).Msg("failed to cache listing")
		}
	}

	return listing, nil
}

// Download opens a blob for streaming. The returned info carries the content
// type, defaulted to application/octet-stream.
func (s *Service) Download(ctx context.Context, name string) (io.ReadCloser, storage.ObjectInfo, error) {
	key, err := s.resolver.Confine(name)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}

	content, info, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("failed to open blob: %w", err)
	}
	if info.ContentType == "" {
		info.ContentType = "application/octet-stream"
	}
	return content, info, nil
}
