package cabinet

import (
	"context"
	"strings"
	"testing"

	"github.com/driftworks/cabinet/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Upload(t *testing.T) {
	service, store, db := setupTestService(t, "reports")
	ctx := context.Background()

	info, err := service.Upload(ctx, "tester", "2024", "q1.pdf", 7, "application/pdf", strings.NewReader("q1 body"))
	require.NoError(t, err)
	assert.Equal(t, "reports/2024/q1.pdf", info.Key)
	assert.Equal(t, int64(7), info.Size)

	stored, err := store.Stat(ctx, "reports/2024/q1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", stored.ContentType)

	entries := auditEntries(t, db, audit.ActionUpload)
	require.Len(t, entries, 1)
	assert.Equal(t, "tester", entries[0].Actor)
	assert.Equal(t, "reports/2024/q1.pdf", entries[0].TargetPath)
	assert.Equal(t, "q1.pdf", entries[0].Extra["fileName"])
}

func TestService_Upload_EmptyPrefix(t *testing.T) {
	service, _, _ := setupTestService(t, "reports")

	info, err := service.Upload(context.Background(), "tester", "", "q1.pdf", 2, "", strings.NewReader("ok"))
	require.NoError(t, err)
	assert.Equal(t, "reports/q1.pdf", info.Key)
}

func TestService_Upload_DefaultsContentType(t *testing.T) {
	service, store, _ := setupTestService(t, "reports")
	ctx := context.Background()

	_, err := service.Upload(ctx, "tester", "", "notes.txt", 5, "", strings.NewReader("notes"))
	require.NoError(t, err)

	stored, err := store.Stat(ctx, "reports/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", stored.ContentType)
}

func TestService_Upload_RejectsBeforeStorageWrite(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		size        int64
		wantMessage string
	}{
		{
			name:        "oversize file",
			fileName:    "big.pdf",
			size:        2 * 1024 * 1024,
			wantMessage: "limit",
		},
		{
			name:        "extension not allowed",
			fileName:    "script.exe",
			size:        10,
			wantMessage: "not allowed",
		},
		{
			name:        "extension missing",
			fileName:    "README",
			size:        10,
			wantMessage: "extension",
		},
		{
			name:        "empty file name",
			fileName:    "",
			size:        10,
			wantMessage: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store, _ := setupTestService(t, "reports")
			ctx := context.Background()

			_, err := service.Upload(ctx, "tester", "", tt.fileName, tt.size, "", strings.NewReader("x"))
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantMessage)

			// The first violation wins before anything reaches storage.
			objects, err := store.List(ctx, "", 0)
			require.NoError(t, err)
			assert.Empty(t, objects)
		})
	}
}

func TestService_Upload_ExtensionCaseInsensitive(t *testing.T) {
	service, _, _ := setupTestService(t, "reports")

	info, err := service.Upload(context.Background(), "tester", "", "PHOTO.PNG", 3, "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "reports/PHOTO.PNG", info.Key)
}

func TestService_Upload_SanitizesTraversal(t *testing.T) {
	service, store, _ := setupTestService(t, "reports")
	ctx := context.Background()

	// A client-declared name with directory components keeps only the base.
	info, err := service.Upload(ctx, "tester", "2024", "..\\..\\escape.pdf", 6, "", strings.NewReader("body"))
	require.NoError(t, err)
	assert.Equal(t, "reports/2024/escape.pdf", info.Key)

	objects, err := store.List(ctx, "reports/", 0)
	require.NoError(t, err)
	require.Len(t, objects, 1)
}
