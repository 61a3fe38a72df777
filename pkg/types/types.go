package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONMap is a custom type that can handle JSON serialization for both PostgreSQL and SQLite
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for GORM
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for GORM
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	return json.Unmarshal(bytes, j)
}

// MetadataKind distinguishes file rows from folder rows
type MetadataKind int16

const (
	KindFile   MetadataKind = 1
	KindFolder MetadataKind = 2
)

// Valid reports whether the kind is one of the known values
func (k MetadataKind) Valid() bool {
	return k == KindFile || k == KindFolder
}

func (k MetadataKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return fmt.Sprintf("kind(%d)", int16(k))
	}
}

// PathMetadata is the side table carrying per-path comments. A folder row may
// exist with no backing blob; it then acts as an empty-folder marker.
type PathMetadata struct {
	ID        uuid.UUID    `json:"id" gorm:"primaryKey"`
	Kind      MetadataKind `json:"kind" gorm:"uniqueIndex:idx_kind_path;not null"`
	Path      string       `json:"path" gorm:"uniqueIndex:idx_kind_path;not null;size:1024"`
	Comment   string       `json:"comment"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// BeforeCreate generates a UUID for the metadata row ID
func (m *PathMetadata) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// AuditEntry records a mutating operation against the cabinet
type AuditEntry struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey"`
	Actor      string    `json:"actor" gorm:"index;not null"`
	Action     string    `json:"action" gorm:"index;not null"`
	TargetType string    `json:"target_type"`
	TargetPath string    `json:"target_path" gorm:"size:1024"`
	Extra      JSONMap   `json:"extra" gorm:"serializer:json"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID for the audit entry ID
func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// FileInfo is the wire representation of a stored blob
type FileInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	LastModified time.Time `json:"lastModified"`
	URL          string    `json:"url"`
	Comment      string    `json:"comment,omitempty"`
}

// UploadPolicy tells clients what the server will accept
type UploadPolicy struct {
	AllowedExtensions []string `json:"allowedExtensions"`
	MaxFileSizeMB     int64    `json:"maxFileSizeMB"`
}

// Listing is the synthesized view of the managed namespace. FolderPaths is
// emitted sorted for stable JSON, but consumers must not rely on order.
type Listing struct {
	Files          []FileInfo        `json:"files"`
	FolderPaths    []string          `json:"folderPaths"`
	FolderComments map[string]string `json:"folderComments"`
	ManagedRoot    string            `json:"managedRoot"`
	UploadConfig   UploadPolicy      `json:"uploadConfig"`
}
