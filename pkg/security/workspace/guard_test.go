package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestNewGuard(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name         string
		workspaceDir string
		wantErr      bool
	}{
		{name: "valid existing directory", workspaceDir: tmpDir},
		{name: "current directory", workspaceDir: "."},
		{name: "empty directory", workspaceDir: "", wantErr: true},
		{name: "non-existent directory", workspaceDir: filepath.Join(tmpDir, "missing"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard, err := NewGuard(tt.workspaceDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGuard() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && guard.WorkspaceDir() == "" {
				t.Error("NewGuard() created guard with empty workspace directory")
			}
		})
	}
}

func TestGuard_ValidatePath(t *testing.T) {
	tmpDir := t.TempDir()
	guard, err := NewGuard(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create guard: %v", err)
	}
	if err := os.Mkdir(filepath.Join(tmpDir, "lib"), 0o755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "relative file", path: "helper.js"},
		{name: "dot relative", path: "./lib/helper.js"},
		{name: "node_modules lookup", path: "node_modules/left-pad/index.js"},
		{name: "workspace root", path: "."},
		{name: "absolute inside", path: filepath.Join(guard.WorkspaceDir(), "lib", "a.js")},
		{name: "empty path", path: "", wantErr: true},
		{name: "parent traversal", path: "../outside.js", wantErr: true},
		{name: "hidden traversal", path: "lib/../../outside.js", wantErr: true},
		{name: "absolute outside", path: "/etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := guard.ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestGuard_ValidatePathSentinel(t *testing.T) {
	guard, err := NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create guard: %v", err)
	}

	_, err = guard.ValidatePath("../x.js")
	if !errors.Is(err, ErrOutsideWorkspace) {
		t.Errorf("expected ErrOutsideWorkspace, got %v", err)
	}
}

func TestGuard_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	workspace := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.js"), []byte("module.exports = 1"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(workspace, "escape")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	guard, err := NewGuard(workspace)
	if err != nil {
		t.Fatalf("Failed to create guard: %v", err)
	}

	if _, err := guard.ReadFile("escape/secret.js"); !errors.Is(err, ErrOutsideWorkspace) {
		t.Errorf("ReadFile through symlink: expected ErrOutsideWorkspace, got %v", err)
	}
}

func TestGuard_ReadFile(t *testing.T) {
	tmpDir := t.TempDir()
	guard, err := NewGuard(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create guard: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "mod.js"), []byte("exports.x = 1"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.Mkdir(filepath.Join(tmpDir, "dir"), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	data, err := guard.ReadFile("mod.js")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "exports.x = 1" {
		t.Errorf("ReadFile() = %q", data)
	}

	if _, err := guard.ReadFile("missing.js"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: expected os.ErrNotExist, got %v", err)
	}
	if _, err := guard.ReadFile("dir"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("directory: expected os.ErrNotExist, got %v", err)
	}
}

func TestGuard_IsWithinWorkspace(t *testing.T) {
	tmpDir := t.TempDir()
	guard, err := NewGuard(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create guard: %v", err)
	}
	root := guard.WorkspaceDir()

	tests := []struct {
		path string
		want bool
	}{
		{root, true},
		{filepath.Join(root, "a", "b.js"), true},
		{root + "-sibling", false},
		{filepath.Dir(root), false},
	}
	for _, tt := range tests {
		if got := guard.IsWithinWorkspace(tt.path); got != tt.want {
			t.Errorf("IsWithinWorkspace(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
