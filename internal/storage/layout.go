package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Layout maps owners and projects to isolated directories under a single
// storage root. Directories are keyed by owner id rather than username so a
// future username change cannot orphan storage.
//
//	<root>/<ownerID>/<projectName>/   extracted site files
//	<root>/tmp/<random>/              in-flight uploads
type Layout struct {
	root string
}

func NewLayout(root string) (*Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Layout{root: abs}, nil
}

func (l *Layout) Root() string { return l.root }

// TempRoot is the directory holding in-flight upload workspaces.
func (l *Layout) TempRoot() string { return filepath.Join(l.root, "tmp") }

// OwnerDir returns the directory holding all of one owner's projects.
func (l *Layout) OwnerDir(ownerID string) string {
	return filepath.Join(l.root, ownerID)
}

// ProjectDir returns the storage directory for (owner, project). Project
// names are unique per owner, so the mapping is collision-free.
func (l *Layout) ProjectDir(ownerID, projectName string) string {
	return filepath.Join(l.root, ownerID, projectName)
}

// NewTempDir creates a fresh workspace for one upload. The caller owns the
// directory and must remove it on failure.
func (l *Layout) NewTempDir() (string, error) {
	dir := filepath.Join(l.TempRoot(), uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return dir, nil
}

// Promote moves an extraction workspace into its final project directory.
// A leftover directory at the destination (an orphan from a crashed earlier
// upload) is replaced.
func (l *Layout) Promote(tempDir, ownerID, projectName string) (string, error) {
	dest := l.ProjectDir(ownerID, projectName)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create owner dir: %w", err)
	}
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("clear destination: %w", err)
	}
	if err := os.Rename(tempDir, dest); err != nil {
		return "", fmt.Errorf("promote upload: %w", err)
	}
	return dest, nil
}

// Remove deletes a project's entire storage subtree.
func (l *Layout) Remove(storagePath string) error {
	if storagePath == "" {
		return nil
	}
	// Never follow a stale record outside the root.
	if !within(l.root, filepath.Clean(storagePath)) {
		return fmt.Errorf("refusing to remove %q: outside storage root", storagePath)
	}
	return os.RemoveAll(storagePath)
}
