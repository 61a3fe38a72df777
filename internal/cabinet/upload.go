package cabinet

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/driftworks/cabinet/internal/audit"
	"github.com/driftworks/cabinet/internal/storage"
	"github.com/driftworks/cabinet/pkg/types"
	"github.com/rs/zerolog/log"
)

// Upload validates and streams one file into the managed namespace. The
// checks run in order and the first violation wins: declared size, then
// extension, then confinement of the combined destination key.
func (s *Service) Upload(ctx context.Context, actor, prefix, fileName string, size int64, contentType string, content io.Reader) (storage.ObjectInfo, error) {
	if size > s.cfg.MaxFileSizeBytes() {
		return storage.ObjectInfo{}, invalidf("file exceeds the %d MB limit", s.cfg.MaxFileSizeMB)
	}

	name := SanitizeFileName(fileName)
	if name == "" {
		return storage.ObjectInfo{}, invalidf("file name is required")
	}
	if err := s.checkExtension(name); err != nil {
		return storage.ObjectInfo{}, err
	}

	relative := name
	if p := Normalize(prefix); p != "" {
		relative = p + "/" + name
	}
	destKey := s.resolver.CombineWithRoot(relative)
	// The prefix is caller-controlled rather than user path input, but the
	// confinement boundary holds for every write regardless.
	if !s.resolver.IsInsideRoot(destKey) {
		return storage.ObjectInfo{}, ErrForbidden
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.store.EnsureBucket(ctx); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("failed to ensure container: %w", err)
	}

	startTime := time.Now()
	info, err := s.store.Put(ctx, destKey, content, contentType)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("failed to store blob: %w", err)
	}

	log.Info().
		Str("actor", actor).
		Str("key", destKey).
		Int64("size", info.Size).
		Dur("duration", time.Since(startTime)).
		Msg("file uploaded")

	s.record(ctx, audit.Event{
		Actor:      actor,
		Action:     audit.ActionUpload,
		TargetType: audit.TargetFile,
		TargetPath: destKey,
		Extra:      types.JSONMap{"fileName": name, "size": size},
	})
	s.invalidateListings(ctx)

	return info, nil
}

func (s *Service) checkExtension(name string) error {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return invalidf("file has no extension")
	}
	if len(s.cfg.AllowedExtensions) == 0 {
		return nil
	}
	for _, allowed := range s.cfg.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return invalidf("file extension %s is not allowed", ext)
}
