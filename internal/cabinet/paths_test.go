package cabinet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "backslashes and trailing slash",
			input:    "folder\\sub/ file.txt/",
			expected: "folder/sub/ file.txt",
		},
		{
			name:     "leading slash",
			input:    "/docs/a",
			expected: "docs/a",
		},
		{
			name:     "already normalized",
			input:    "docs/a/b.txt",
			expected: "docs/a/b.txt",
		},
		{
			name:     "only slashes",
			input:    "///",
			expected: "",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestResolver_IsInsideRoot(t *testing.T) {
	docs := NewResolver("docs")

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"root itself", "docs", true},
		{"nested path", "docs/a", true},
		{"name prefix only", "docsx", false},
		{"unrelated path", "other", false},
		{"case-insensitive root", "DOCS/a", true},
		{"backslash separators", "docs\\a\\b.txt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, docs.IsInsideRoot(tt.path))
		})
	}

	open := NewResolver("")
	assert.True(t, open.IsInsideRoot("anything"))
	assert.True(t, open.IsInsideRoot(""))
	assert.True(t, open.IsInsideRoot("deep/nested/path"))
}

func TestResolver_CombineWithRoot(t *testing.T) {
	docs := NewResolver("docs")

	assert.Equal(t, "docs/a", docs.CombineWithRoot("a"))
	assert.Equal(t, "docs/a/b", docs.CombineWithRoot("/a/b/"))
	assert.Equal(t, "docs", docs.CombineWithRoot(""))

	open := NewResolver("")
	assert.Equal(t, "a/b", open.CombineWithRoot("a\\b"))
	assert.Equal(t, "", open.CombineWithRoot(""))
}

func TestResolver_Confine(t *testing.T) {
	docs := NewResolver("docs")

	path, err := docs.Confine("/docs/a/")
	assert.NoError(t, err)
	assert.Equal(t, "docs/a", path)

	_, err = docs.Confine("other/a")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = docs.Confine("docsx")
	assert.ErrorIs(t, err, ErrForbidden)
}
