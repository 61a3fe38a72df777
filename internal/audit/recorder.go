// Package audit persists a trail of mutating cabinet operations. Recording
// is best effort; a failed write never blocks the primary operation.
package audit

import (
	"context"
	"fmt"

	"github.com/driftworks/cabinet/pkg/types"
	"gorm.io/gorm"
)

// Actions recorded against the cabinet
const (
	ActionUpload        = "upload"
	ActionDelete        = "delete"
	ActionDeletePrefix  = "delete_prefix"
	ActionCommentUpsert = "comment_upsert"
	ActionFolderCreate  = "folder_create"
	ActionFolderPrune   = "folder_prune"
)

// Target types for audit entries
const (
	TargetFile   = "file"
	TargetFolder = "folder"
)

// Event is one auditable operation
type Event struct {
	Actor      string
	Action     string
	TargetType string
	TargetPath string
	Extra      types.JSONMap
}

// Recorder accepts audit events
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// GormRecorder persists audit entries to the relational store
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder creates a database-backed recorder
func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

// Record writes one audit entry
func (r *GormRecorder) Record(ctx context.Context, event Event) error {
	entry := types.AuditEntry{
		Actor:      event.Actor,
		Action:     event.Action,
		TargetType: event.TargetType,
		TargetPath: event.TargetPath,
		Extra:      event.Extra,
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// NopRecorder discards events; used in tests
type NopRecorder struct{}

// Record discards the event
func (NopRecorder) Record(ctx context.Context, event Event) error {
	return nil
}
