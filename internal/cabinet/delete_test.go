package cabinet

import (
	"context"
	"fmt"
	"testing"

	"github.com/driftworks/cabinet/internal/audit"
	"github.com/driftworks/cabinet/internal/storage"
	"github.com/driftworks/cabinet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails every Delete after the first n succeed
type flakyStore struct {
	storage.ObjectStore
	succeed int
	calls   int
}

func (f *flakyStore) Delete(ctx context.Context, key string) (bool, error) {
	f.calls++
	if f.calls > f.succeed {
		return false, fmt.Errorf("storage unavailable")
	}
	return f.ObjectStore.Delete(ctx, key)
}

func TestService_DeleteBlob(t *testing.T) {
	service, store, db := setupTestService(t, "docs")
	ctx := context.Background()

	putObject(t, store, "docs/a/b.txt", "body")
	_, err := service.Metadata().Upsert(ctx, types.KindFile, "docs/a/b.txt", "a comment")
	require.NoError(t, err)

	deleted, err := service.DeleteBlob(ctx, "tester", "docs/a/b.txt")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.Stat(ctx, "docs/a/b.txt")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	_, found, err := service.Metadata().GetComment(ctx, types.KindFile, "docs/a/b.txt")
	require.NoError(t, err)
	assert.False(t, found)

	entries := auditEntries(t, db, audit.ActionDelete)
	require.Len(t, entries, 1)
	assert.Equal(t, "a comment", entries[0].Extra["comment"])
}

func TestService_DeleteBlob_AbsentIsSuccess(t *testing.T) {
	service, _, db := setupTestService(t, "docs")

	deleted, err := service.DeleteBlob(context.Background(), "tester", "docs/missing.txt")
	require.NoError(t, err)
	assert.False(t, deleted)

	// The audit event is emitted even when the blob did not exist.
	entries := auditEntries(t, db, audit.ActionDelete)
	require.Len(t, entries, 1)
	assert.Equal(t, "", entries[0].Extra["comment"])
}

func TestService_DeleteBlob_Confinement(t *testing.T) {
	service, _, _ := setupTestService(t, "docs")

	_, err := service.DeleteBlob(context.Background(), "tester", "other/file.txt")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_DeletePrefix(t *testing.T) {
	service, store, _ := setupTestService(t, "reports")
	ctx := context.Background()

	putObject(t, store, "reports/2024/q1.pdf", "q1")
	putObject(t, store, "reports/2024/sub/q2.pdf", "q2")
	putObject(t, store, "reports/2023/old.pdf", "old")

	meta := service.Metadata()
	_, err := meta.Upsert(ctx, types.KindFolder, "reports/2024", "year")
	require.NoError(t, err)
	_, err = meta.Upsert(ctx, types.KindFolder, "reports/2024/archive", "empty")
	require.NoError(t, err)
	_, err = meta.Upsert(ctx, types.KindFile, "reports/2024/q1.pdf", "f")
	require.NoError(t, err)

	count, err := service.DeletePrefix(ctx, "tester", "reports/2024")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	remaining, err := store.List(ctx, "reports/", 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "reports/2023/old.pdf", remaining[0].Key)

	// The folder's own row and everything nested under it are gone.
	for _, probe := range []struct {
		kind types.MetadataKind
		path string
	}{
		{types.KindFolder, "reports/2024"},
		{types.KindFolder, "reports/2024/archive"},
		{types.KindFile, "reports/2024/q1.pdf"},
	} {
		_, found, err := meta.GetComment(ctx, probe.kind, probe.path)
		require.NoError(t, err)
		assert.False(t, found, probe.path)
	}
}

func TestService_DeletePrefix_PartialFailure(t *testing.T) {
	db := setupTestDB(t)
	mem := storage.NewMemoryStore("")
	flaky := &flakyStore{ObjectStore: mem, succeed: 1}
	service := NewService(db, flaky, nil, audit.NopRecorder{}, testCabinetConfig("docs"))
	ctx := context.Background()

	putObject(t, mem, "docs/a/1.txt", "1")
	putObject(t, mem, "docs/a/2.txt", "2")
	putObject(t, mem, "docs/a/3.txt", "3")

	_, err := service.Metadata().Upsert(ctx, types.KindFolder, "docs/a", "x")
	require.NoError(t, err)

	count, err := service.DeletePrefix(ctx, "tester", "docs/a")
	require.Error(t, err)
	// No rollback: the count reports exactly what succeeded before the
	// failure, and the earlier deletions stay deleted.
	assert.Equal(t, 1, count)

	remaining, listErr := mem.List(ctx, "docs/a/", 0)
	require.NoError(t, listErr)
	assert.Len(t, remaining, 2)

	// Metadata cascade never ran, so the folder row survives.
	_, found, err := service.Metadata().GetComment(ctx, types.KindFolder, "docs/a")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestService_CleanupEmptyAncestors(t *testing.T) {
	service, store, _ := setupTestService(t, "docs")
	ctx := context.Background()

	meta := service.Metadata()
	for _, p := range []string{"docs/a", "docs/a/b", "docs/a/b/c"} {
		_, err := meta.Upsert(ctx, types.KindFolder, p, "")
		require.NoError(t, err)
	}
	// The blob sits directly under the root, so the walk prunes the whole
	// empty chain and stops at docs.
	putObject(t, store, "docs/keep.txt", "stays")

	pruned, err := service.CleanupEmptyAncestors(ctx, "tester", "docs/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a/b/c", "docs/a/b", "docs/a"}, pruned)

	_, found, err := meta.GetComment(ctx, types.KindFolder, "docs/a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestService_CleanupEmptyAncestors_StopsAtNonEmpty(t *testing.T) {
	service, store, _ := setupTestService(t, "docs")
	ctx := context.Background()

	meta := service.Metadata()
	for _, p := range []string{"docs/a", "docs/a/b"} {
		_, err := meta.Upsert(ctx, types.KindFolder, p, "")
		require.NoError(t, err)
	}
	putObject(t, store, "docs/a/other.txt", "present")

	pruned, err := service.CleanupEmptyAncestors(ctx, "tester", "docs/a/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a/b"}, pruned)

	_, found, err := meta.GetComment(ctx, types.KindFolder, "docs/a")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestService_CleanupEmptyAncestors_IgnoresKeepMarker(t *testing.T) {
	service, store, _ := setupTestService(t, "docs")
	ctx := context.Background()

	_, err := service.Metadata().Upsert(ctx, types.KindFolder, "docs/a", "")
	require.NoError(t, err)
	putObject(t, store, "docs/a/.keep", "")

	pruned, err := service.CleanupEmptyAncestors(ctx, "tester", "docs/a")
	require.NoError(t, err)
	assert.Contains(t, pruned, "docs/a")
}

func TestService_CleanupEmptyAncestors_StopsAtRoot(t *testing.T) {
	service, _, _ := setupTestService(t, "docs")
	ctx := context.Background()

	_, err := service.Metadata().Upsert(ctx, types.KindFolder, "docs", "")
	require.NoError(t, err)

	pruned, err := service.CleanupEmptyAncestors(ctx, "tester", "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, pruned)
}
