package cabinet

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftworks/cabinet/pkg/types"
	"gorm.io/gorm"
)

// MetadataStore manages the side table mapping (kind, path) to a comment.
// Rows exist independently of whether the path has a backing blob.
type MetadataStore struct {
	db       *gorm.DB
	resolver *Resolver
}

// NewMetadataStore creates a metadata store confined to the resolver's root
func NewMetadataStore(db *gorm.DB, resolver *Resolver) *MetadataStore {
	return &MetadataStore{db: db, resolver: resolver}
}

// Upsert creates or updates the (kind, path) row. Last write wins; there is
// no optimistic concurrency on comments.
func (s *MetadataStore) Upsert(ctx context.Context, kind types.MetadataKind, path, comment string) (*types.PathMetadata, error) {
	if !kind.Valid() {
		return nil, invalidf("unknown metadata kind %d", kind)
	}
	path, err := s.resolver.Confine(path)
	if err != nil {
		return nil, err
	}

	var row types.PathMetadata
	err = s.db.WithContext(ctx).
		Where("kind = ? AND path = ?", kind, path).
		First(&row).Error
	switch {
	case err == nil:
		row.Comment = comment
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return nil, fmt.Errorf("failed to update metadata: %w", err)
		}
		return &row, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = types.PathMetadata{Kind: kind, Path: path, Comment: comment}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, fmt.Errorf("failed to create metadata: %w", err)
		}
		return &row, nil
	default:
		return nil, fmt.Errorf("failed to look up metadata: %w", err)
	}
}

// DeleteExact removes the single (kind, path) row. Absence is not an error.
func (s *MetadataStore) DeleteExact(ctx context.Context, kind types.MetadataKind, path string) error {
	path, err := s.resolver.Confine(path)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).
		Where("kind = ? AND path = ?", kind, path).
		Delete(&types.PathMetadata{}).Error; err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

// DeleteByPrefix removes every row, regardless of kind, whose path equals the
// prefix or is nested under it. Returns the number of rows removed.
func (s *MetadataStore) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	prefix, err := s.resolver.Confine(prefix)
	if err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).
		Where("path = ? OR path LIKE ?", prefix, prefix+"/%").
		Delete(&types.PathMetadata{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete metadata by prefix: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetComment returns the comment for (kind, path) and whether a row exists
func (s *MetadataStore) GetComment(ctx context.Context, kind types.MetadataKind, path string) (string, bool, error) {
	path, err := s.resolver.Confine(path)
	if err != nil {
		return "", false, err
	}
	var row types.PathMetadata
	err = s.db.WithContext(ctx).
		Where("kind = ? AND path = ?", kind, path).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up comment: %w", err)
	}
	return row.Comment, true, nil
}

// FolderPathsUnder returns the paths of all folder rows inside the managed
// root, the root's own row included
func (s *MetadataStore) FolderPathsUnder(ctx context.Context) ([]string, error) {
	query := s.db.WithContext(ctx).
		Model(&types.PathMetadata{}).
		Where("kind = ?", types.KindFolder)
	if root := s.resolver.Root(); root != "" {
		query = query.Where("path = ? OR path LIKE ?", root, root+"/%")
	}

	var paths []string
	if err := query.Pluck("path", &paths).Error; err != nil {
		return nil, fmt.Errorf("failed to list folder metadata: %w", err)
	}
	return paths, nil
}

// CommentsFor batch-loads comments for the given paths of one kind
func (s *MetadataStore) CommentsFor(ctx context.Context, kind types.MetadataKind, paths []string) (map[string]string, error) {
	comments := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return comments, nil
	}

	var rows []types.PathMetadata
	if err := s.db.WithContext(ctx).
		Where("kind = ? AND path IN ?", kind, paths).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	for _, row := range rows {
		if row.Comment != "" {
			comments[row.Path] = row.Comment
		}
	}
	return comments, nil
}
