package cabinet

import (
	"context"
	"fmt"
	"strings"

	"github.com/driftworks/cabinet/internal/audit"
	"github.com/driftworks/cabinet/pkg/types"
	"github.com/rs/zerolog/log"
)

// keepMarkerName is the reserved empty-folder marker object; emptiness
// checks ignore it.
const keepMarkerName = ".keep"

// DeleteBlob removes a single blob and its file metadata row. Deleting an
// absent blob is success; the return value reports whether it existed. The
// audit event carries the prior comment and is emitted unconditionally.
func (s *Service) DeleteBlob(ctx context.Context, actor, name string) (bool, error) {
	key, err := s.resolver.Confine(name)
	if err != nil {
		return false, err
	}

	priorComment, _, err := s.meta.GetComment(ctx, types.KindFile, key)
	if err != nil {
		return false, err
	}

	existed, err := s.store.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete blob: %w", err)
	}

	if err := s.meta.DeleteExact(ctx, types.KindFile, key); err != nil {
		return existed, err
	}

	log.Info().
		Str("actor", actor).
		Str("key", key).
		Bool("existed", existed).
		Msg("blob deleted")

	s.record(ctx, audit.Event{
		Actor:      actor,
		Action:     audit.ActionDelete,
		TargetType: audit.TargetFile,
		TargetPath: key,
		Extra:      types.JSONMap{"comment": priorComment},
	})
	s.invalidateListings(ctx)

	return existed, nil
}

// DeletePrefix removes every blob nested under the prefix, then cascades
// removal of the prefix's own metadata row and everything under it. Blob
// deletion is sequential with no rollback: a mid-loop failure leaves a
// partially deleted prefix, and the returned count is the ground truth of
// what succeeded.
func (s *Service) DeletePrefix(ctx context.Context, actor, prefix string) (int, error) {
	normalized, err := s.resolver.Confine(prefix)
	if err != nil {
		return 0, err
	}

	objects, err := s.store.List(ctx, normalized+"/", 0)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate prefix: %w", err)
	}

	deleted := 0
	for _, obj := range objects {
		if _, err := s.store.Delete(ctx, obj.Key); err != nil {
			s.invalidateListings(ctx)
			return deleted, fmt.Errorf("failed to delete blob %s: %w", obj.Key, err)
		}
		deleted++
	}

	removedRows, err := s.meta.DeleteByPrefix(ctx, normalized)
	if err != nil {
		s.invalidateListings(ctx)
		return deleted, err
	}

	log.Info().
		Str("actor", actor).
		Str("prefix", normalized).
		Int("blobs_deleted", deleted).
		Int64("metadata_rows_deleted", removedRows).
		Msg("prefix deleted")

	s.record(ctx, audit.Event{
		Actor:      actor,
		Action:     audit.ActionDeletePrefix,
		TargetType: audit.TargetFolder,
		TargetPath: normalized,
		Extra:      types.JSONMap{"deletedCount": deleted},
	})
	s.invalidateListings(ctx)

	return deleted, nil
}

// CleanupEmptyAncestors is a maintenance operation, never part of the delete
// path: starting at the given folder it removes folder metadata rows while
// no real blob remains underneath, ascending until the first non-empty
// ancestor or the managed root. Returns the pruned paths, deepest first.
func (s *Service) CleanupEmptyAncestors(ctx context.Context, actor, folder string) ([]string, error) {
	current, err := s.resolver.Confine(folder)
	if err != nil {
		return nil, err
	}

	var pruned []string
	for current != "" && s.resolver.IsInsideRoot(current) {
		empty, err := s.folderIsEmpty(ctx, current)
		if err != nil {
			return pruned, err
		}
		if !empty {
			break
		}

		if err := s.meta.DeleteExact(ctx, types.KindFolder, current); err != nil {
			return pruned, err
		}
		pruned = append(pruned, current)

		if strings.EqualFold(current, s.resolver.Root()) {
			break
		}
		idx := strings.LastIndex(current, "/")
		if idx < 0 {
			break
		}
		current = current[:idx]
	}

	if len(pruned) > 0 {
		log.Info().
			Str("actor", actor).
			Strs("pruned", pruned).
			Msg("empty ancestor folders pruned")

		s.record(ctx, audit.Event{
			Actor:      actor,
			Action:     audit.ActionFolderPrune,
			TargetType: audit.TargetFolder,
			TargetPath: Normalize(folder),
			Extra:      types.JSONMap{"pruned": pruned},
		})
		s.invalidateListings(ctx)
	}

	return pruned, nil
}

func (s *Service) folderIsEmpty(ctx context.Context, folder string) (bool, error) {
	objects, err := s.store.List(ctx, folder+"/", 0)
	if err != nil {
		return false, fmt.Errorf("failed to check folder contents: %w", err)
	}
	for _, obj := range objects {
		key := Normalize(obj.Key)
		if idx := strings.LastIndex(key, "/"); idx >= 0 {
			key = key[idx+1:]
		}
		if key != keepMarkerName {
			return false, nil
		}
	}
	return true, nil
}
