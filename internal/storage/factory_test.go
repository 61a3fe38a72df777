package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/driftworks/cabinet/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageFactory_CreateLocalStore(t *testing.T) {
	storageConfig := &config.StorageConfig{
		Type:      "local",
		LocalPath: t.TempDir(),
	}

	factory := NewStorageFactory(storageConfig)
	store, err := factory.CreateStorage()

	require.NoError(t, err)
	require.NotNil(t, store)

	ctx := context.Background()
	_, err = store.Put(ctx, "factory_test.txt", strings.NewReader("content from factory test"), "text/plain")
	assert.NoError(t, err)

	info, err := store.Stat(ctx, "factory_test.txt")
	assert.NoError(t, err)
	assert.Equal(t, int64(len("content from factory test")), info.Size)
}

func TestStorageFactory_CreateMemoryStore(t *testing.T) {
	factory := NewStorageFactory(&config.StorageConfig{Type: "memory"})
	store, err := factory.CreateStorage()

	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)
}

func TestStorageFactory_UnsupportedType(t *testing.T) {
	factory := NewStorageFactory(&config.StorageConfig{Type: "unsupported"})
	store, err := factory.CreateStorage()

	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "unsupported storage type")
}
