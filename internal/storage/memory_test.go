package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore("")
	ctx := context.Background()

	info, err := store.Put(ctx, "docs/a.txt", strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	content, got, err := store.Get(ctx, "docs/a.txt")
	require.NoError(t, err)
	defer content.Close()

	data, err := io.ReadAll(content)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", got.ContentType)
}

func TestMemoryStore_CaseInsensitiveKeys(t *testing.T) {
	store := NewMemoryStore("")
	ctx := context.Background()

	_, err := store.Put(ctx, "Docs/A.txt", strings.NewReader("x"), "")
	require.NoError(t, err)

	_, err = store.Stat(ctx, "docs/a.txt")
	assert.NoError(t, err)

	existed, err := store.Delete(ctx, "DOCS/A.TXT")
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestMemoryStore_ListSortedAndCapped(t *testing.T) {
	store := NewMemoryStore("")
	ctx := context.Background()

	for _, key := range []string{"docs/c.txt", "docs/a.txt", "docs/b.txt", "other/x.txt"} {
		_, err := store.Put(ctx, key, strings.NewReader("x"), "")
		require.NoError(t, err)
	}

	objects, err := store.List(ctx, "docs/", 0)
	require.NoError(t, err)
	require.Len(t, objects, 3)
	assert.Equal(t, "docs/a.txt", objects[0].Key)
	assert.Equal(t, "docs/b.txt", objects[1].Key)
	assert.Equal(t, "docs/c.txt", objects[2].Key)

	capped, err := store.List(ctx, "docs/", 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestMemoryStore_DeleteMissing(t *testing.T) {
	store := NewMemoryStore("")

	existed, err := store.Delete(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, existed)
}
