package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a requested path would resolve outside the
// directory it must stay under.
var ErrPathEscape = errors.New("path escapes storage root")

// ResolveWithinRoot maps an untrusted relative path to an absolute path under
// root. The returned path is guaranteed to stay inside root: ".." segments,
// absolute paths, backslash separators and symlinked components are all
// rejected with ErrPathEscape.
func ResolveWithinRoot(root, userPath string) (string, error) {
	if root == "" {
		return "", errors.New("root is required")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rootAbs = filepath.Clean(rootAbs)

	// Force relative: drop any leading separators, then normalize.
	rel := strings.TrimLeft(userPath, "/\\")
	joined := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(rel)))

	if !within(rootAbs, joined) {
		return "", ErrPathEscape
	}

	// Walk the existing components; a symlink anywhere under root lets a
	// later write land outside it even though the joined path looks clean.
	if escapesViaSymlink(rootAbs, joined) {
		return "", ErrPathEscape
	}

	return joined, nil
}

func within(root, candidate string) bool {
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}

func escapesViaSymlink(rootAbs, fullPath string) bool {
	rel, err := filepath.Rel(rootAbs, fullPath)
	if err != nil {
		return true
	}
	if rel == "." {
		return false
	}
	cur := rootAbs
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		st, err := os.Lstat(cur)
		if err != nil {
			// Component does not exist yet: nothing to traverse.
			return false
		}
		if st.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return true
			}
			if !within(rootAbs, filepath.Clean(resolved)) {
				return true
			}
		}
	}
	return false
}

// HasDotDot reports whether any slash- or backslash-separated segment of name
// is a parent-directory reference. Used as a first line of defense on archive
// entry names before any path is joined.
func HasDotDot(name string) bool {
	for _, seg := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if seg == ".." {
			return true
		}
	}
	return false
}
