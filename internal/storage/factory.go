package storage

import (
	"fmt"

	"github.com/driftworks/cabinet/pkg/config"
)

// StorageFactory creates object store instances based on configuration
type StorageFactory struct {
	config *config.StorageConfig
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(config *config.StorageConfig) *StorageFactory {
	return &StorageFactory{config: config}
}

// CreateStorage creates an object store based on the configured type
func (sf *StorageFactory) CreateStorage() (ObjectStore, error) {
	switch sf.config.Type {
	case "local":
		return NewLocalStore(sf.config.LocalPath, sf.config.PublicBaseURL)
	case "memory":
		return NewMemoryStore(sf.config.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", sf.config.Type)
	}
}
