// Package explorer is the client side of the cabinet: it rebuilds a
// navigable tree from the flat synthesized namespace and manages queued
// uploads.
package explorer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/driftworks/cabinet/pkg/types"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NodeType distinguishes folders from files
type NodeType string

const (
	NodeFolder NodeType = "folder"
	NodeFile   NodeType = "file"
)

// SortKey selects the within-type ordering of siblings
type SortKey string

const (
	SortByName     SortKey = "name"
	SortBySize     SortKey = "size"
	SortByModified SortKey = "modified"
)

// Node is one entry in the reconstructed tree. It is derived presentation
// state, rebuilt from every listing and never persisted.
type Node struct {
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	Type         NodeType  `json:"type"`
	ParentPath   string    `json:"parentPath,omitempty"`
	Comment      string    `json:"comment,omitempty"`
	Size         int64     `json:"size,omitempty"`
	ContentType  string    `json:"contentType,omitempty"`
	LastModified time.Time `json:"lastModified,omitempty"`
	URL          string    `json:"url,omitempty"`
	Children     []*Node   `json:"children,omitempty"`
}

func baseName(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func parentOf(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[:idx]
	}
	return ""
}

// BuildTree reconstructs the parent/child tree from a flat listing in one
// pass over a path-indexed map. The returned slice holds the parentless
// nodes; with a managed root that is the root folder itself.
func BuildTree(listing *types.Listing) []*Node {
	index := make(map[string]*Node, len(listing.FolderPaths)+len(listing.Files))

	for _, path := range listing.FolderPaths {
		parent := ""
		if path != listing.ManagedRoot {
			parent = parentOf(path)
		}
		index[path] = &Node{
			Path:       path,
			Name:       baseName(path),
			Type:       NodeFolder,
			ParentPath: parent,
			Comment:    listing.FolderComments[path],
		}
	}

	fileNodes := make([]*Node, 0, len(listing.Files))
	for _, file := range listing.Files {
		parent := parentOf(file.Name)
		if parent == "" {
			parent = listing.ManagedRoot
		}
		fileNodes = append(fileNodes, &Node{
			Path:         file.Name,
			Name:         baseName(file.Name),
			Type:         NodeFile,
			ParentPath:   parent,
			Comment:      file.Comment,
			Size:         file.Size,
			ContentType:  file.ContentType,
			LastModified: file.LastModified,
			URL:          file.URL,
		})
	}

	var roots []*Node
	for _, path := range listing.FolderPaths {
		node := index[path]
		if parent, ok := index[node.ParentPath]; ok && node.ParentPath != "" {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}
	for _, node := range fileNodes {
		if parent, ok := index[node.ParentPath]; ok && node.ParentPath != "" {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}

	return roots
}

// Sort orders siblings recursively. Folders always precede files regardless
// of key and direction; within a type the key decides and desc flips it.
// Name ordering is natural: numeric runs compare by value.
func Sort(nodes []*Node, key SortKey, desc bool) {
	collator := collate.New(language.Und, collate.Numeric, collate.IgnoreCase)
	sortLevel(collator, nodes, key, desc)
}

func sortLevel(collator *collate.Collator, nodes []*Node, key SortKey, desc bool) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Type != b.Type {
			return a.Type == NodeFolder
		}
		if desc {
			return compareNodes(collator, b, a, key)
		}
		return compareNodes(collator, a, b, key)
	})
	for _, node := range nodes {
		if len(node.Children) > 0 {
			sortLevel(collator, node.Children, key, desc)
		}
	}
}

func compareNodes(collator *collate.Collator, a, b *Node, key SortKey) bool {
	switch key {
	case SortBySize:
		if a.Size != b.Size {
			return a.Size < b.Size
		}
	case SortByModified:
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.Before(b.LastModified)
		}
	}
	return collator.CompareString(a.Name, b.Name) < 0
}

// FormatBytes formats byte size in human-readable form for display
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	suffixes := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), suffixes[exp+1])
}
