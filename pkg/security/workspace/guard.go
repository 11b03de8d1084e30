// Package workspace confines file access made on behalf of sandboxed scripts
// to the skill directory. It is used by the script module loader so that
// require() can only reach files under the directory the worker was started in.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideWorkspace is returned for paths that resolve outside the root.
var ErrOutsideWorkspace = errors.New("path is outside workspace boundaries")

// Guard enforces workspace boundary restrictions on file paths.
type Guard struct {
	workspaceDir string // Absolute, symlink-free path to workspace root
}

// NewGuard creates a new workspace guard for the given directory.
// The directory path is converted to an absolute path, cleaned, and symlinks are evaluated.
func NewGuard(workspaceDir string) (*Guard, error) {
	if workspaceDir == "" {
		return nil, fmt.Errorf("workspace directory cannot be empty")
	}

	absPath, err := filepath.Abs(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace directory: %w", err)
	}

	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate workspace directory symlinks: %w", err)
	}

	return &Guard{workspaceDir: evalPath}, nil
}

// ValidatePath checks that path resolves inside the workspace and returns the
// resolved absolute path.
func (g *Guard) ValidatePath(path string) (string, error) {
	resolved, err := g.ResolvePath(path)
	if err != nil {
		return "", err
	}
	if !g.IsWithinWorkspace(resolved) {
		return "", fmt.Errorf("%q: %w", path, ErrOutsideWorkspace)
	}
	return resolved, nil
}

// ResolvePath converts a path to an absolute path. Relative paths are taken
// against the workspace root, not the process working directory.
func (g *Guard) ResolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(filepath.FromSlash(path))
	if !filepath.IsAbs(cleanPath) {
		cleanPath = filepath.Join(g.workspaceDir, cleanPath)
	}

	return resolveSymlinks(cleanPath), nil
}

// IsWithinWorkspace reports whether absPath is the workspace itself or lies
// beneath it, after symlink resolution.
func (g *Guard) IsWithinWorkspace(absPath string) bool {
	evalPath := resolveSymlinks(absPath)
	if evalPath == g.workspaceDir {
		return true
	}
	return strings.HasPrefix(evalPath+string(filepath.Separator), g.workspaceDir+string(filepath.Separator))
}

// WorkspaceDir returns the absolute path of the workspace directory.
func (g *Guard) WorkspaceDir() string {
	return g.workspaceDir
}

// ReadFile reads a file after checking that it lies inside the workspace.
// Missing files and directories are reported with os.ErrNotExist.
func (g *Guard) ReadFile(path string) ([]byte, error) {
	resolved, err := g.ValidatePath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory: %w", path, os.ErrNotExist)
	}
	return os.ReadFile(resolved)
}

// resolveSymlinks resolves symlinks in a path, handling non-existent paths
// by walking up to the nearest existing parent.
func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	var components []string
	currentPath := path
	for {
		if resolved, err := filepath.EvalSymlinks(currentPath); err == nil {
			result := resolved
			for i := len(components) - 1; i >= 0; i-- {
				result = filepath.Join(result, components[i])
			}
			return result
		}

		dir := filepath.Dir(currentPath)
		if dir == currentPath || dir == "." {
			return filepath.Clean(path)
		}

		components = append(components, filepath.Base(currentPath))
		currentPath = dir
	}
}
