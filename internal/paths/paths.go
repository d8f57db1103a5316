// Package paths canonicalizes path separators so rules authored with forward
// slashes match on every host.
package paths

import (
	"path"
	"strings"
)

// Normalize replaces every backslash with a forward slash. It does not resolve
// "." or ".." segments and keeps any trailing slash.
func Normalize(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Relative returns p relative to root in normalized form. Paths outside root,
// and every path when root is empty, are returned normalized but otherwise
// unchanged.
func Relative(root, p string) string {
	p = Normalize(p)
	root = strings.TrimSuffix(Normalize(root), "/")
	if root == "" {
		return p
	}
	if p == root {
		return ""
	}
	if rest, ok := strings.CutPrefix(p, root+"/"); ok {
		return rest
	}
	return p
}

// Clean returns the identity form of p, normalized and then lexically
// cleaned. An empty path stays empty.
func Clean(p string) string {
	p = Normalize(p)
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// Equal reports whether a and b name the same file
func Equal(a, b string) bool {
	return Clean(a) == Clean(b)
}
