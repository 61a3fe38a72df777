// Package cabinet turns a flat, key-based object store into a navigable,
// root-confined virtual filesystem with per-path comments.
package cabinet

import (
	"context"
	"strings"
	"time"

	"github.com/driftworks/cabinet/internal/audit"
	"github.com/driftworks/cabinet/internal/common"
	"github.com/driftworks/cabinet/internal/storage"
	"github.com/driftworks/cabinet/pkg/config"
	"github.com/driftworks/cabinet/pkg/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const listingCachePrefix = "cabinet:listing:"

// listingCache is the slice of common.Cache the service needs
type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// Service coordinates the object store, the metadata side table, the audit
// trail and the listing cache behind the confinement boundary.
type Service struct {
	store    storage.ObjectStore
	meta     *MetadataStore
	resolver *Resolver
	cache    listingCache // optional
	recorder audit.Recorder
	cfg      *config.CabinetConfig
}

// NewService creates a cabinet service. cache may be nil to disable listing
// caching.
func NewService(db *gorm.DB, store storage.ObjectStore, cache *common.Cache, recorder audit.Recorder, cfg *config.CabinetConfig) *Service {
	resolver := NewResolver(cfg.Root)
	s := &Service{
		store:    store,
		meta:     NewMetadataStore(db, resolver),
		resolver: resolver,
		recorder: recorder,
		cfg:      cfg,
	}
	if cache != nil {
		s.cache = cache
	}
	return s
}

// Resolver exposes the confinement boundary for collaborators
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Metadata exposes the metadata store for maintenance tooling
func (s *Service) Metadata() *MetadataStore {
	return s.meta
}

// UploadPolicy returns the accepted extensions and the size limit
func (s *Service) UploadPolicy() types.UploadPolicy {
	return types.UploadPolicy{
		AllowedExtensions: s.cfg.AllowedExtensions,
		MaxFileSizeMB:     s.cfg.MaxFileSizeMB,
	}
}

// UpsertComment sets the comment on a file or folder path
func (s *Service) UpsertComment(ctx context.Context, actor string, kind types.MetadataKind, path, comment string) error {
	row, err := s.meta.Upsert(ctx, kind, path, comment)
	if err != nil {
		return err
	}

	targetType := audit.TargetFile
	if kind == types.KindFolder {
		targetType = audit.TargetFolder
	}
	s.record(ctx, audit.Event{
		Actor:      actor,
		Action:     audit.ActionCommentUpsert,
		TargetType: targetType,
		TargetPath: row.Path,
		Extra:      types.JSONMap{"comment": comment},
	})
	s.invalidateListings(ctx)
	return nil
}

// CreateFolder creates an empty-folder marker row, optionally with a comment
func (s *Service) CreateFolder(ctx context.Context, actor, path, comment string) (string, error) {
	row, err := s.meta.Upsert(ctx, types.KindFolder, path, comment)
	if err != nil {
		return "", err
	}

	s.record(ctx, audit.Event{
		Actor:      actor,
		Action:     audit.ActionFolderCreate,
		TargetType: audit.TargetFolder,
		TargetPath: row.Path,
	})
	s.invalidateListings(ctx)
	return row.Path, nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, event); err != nil {
		log.Error().Err(err).
			Str("action", event.Action).
			Str("target", event.TargetPath).
			Msg("failed to record audit event")
	}
}

func (s *Service) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, listingCachePrefix+"*"); err != nil {
		log.Error().Err(err).Msg("failed to invalidate listing cache")
	}
}

// SanitizeFileName strips any directory component from a client-declared
// file name
func SanitizeFileName(name string) string {
	name = Normalize(name)
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}
