package cabinet

import "strings"

// Normalize converts backslashes to forward slashes and trims leading and
// trailing slashes. Inner whitespace is preserved; blob keys may contain it.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.Trim(p, "/")
}

// Resolver confines externally supplied paths to a configured managed root.
// Root comparisons are case-insensitive to match the object store.
type Resolver struct {
	root string
}

// NewResolver creates a resolver for the given managed root. An empty root
// means the whole container is managed.
func NewResolver(root string) *Resolver {
	return &Resolver{root: Normalize(root)}
}

// Root returns the normalized managed root
func (r *Resolver) Root() string {
	return r.root
}

// CombineWithRoot joins a relative sub-path onto the managed root
func (r *Resolver) CombineWithRoot(sub string) string {
	sub = Normalize(sub)
	if r.root == "" {
		return sub
	}
	if sub == "" {
		return r.root
	}
	return r.root + "/" + sub
}

// IsInsideRoot reports whether p lies within the managed root
func (r *Resolver) IsInsideRoot(p string) bool {
	if r.root == "" {
		return true
	}
	p = strings.ToLower(Normalize(p))
	root := strings.ToLower(r.root)
	return p == root || strings.HasPrefix(p, root+"/")
}

// Confine normalizes p and fails with ErrForbidden when it escapes the root
func (r *Resolver) Confine(p string) (string, error) {
	p = Normalize(p)
	if !r.IsInsideRoot(p) {
		return "", ErrForbidden
	}
	return p, nil
}
