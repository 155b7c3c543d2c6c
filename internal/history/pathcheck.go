package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/errors"
)

// ValidatePath checks an export destination:
//  1. no ".." components
//  2. .jsonl extension
//  3. directly inside ~/.medscan/exports or an allowed_paths entry (no subdirectories)
//  4. neither the file nor its parent directory is a symlink
//
// Requiring the file to sit directly in an allowed directory leaves no
// intermediate component that could be swapped for a symlink after the check.
func ValidatePath(path string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".jsonl" {
		return errors.NewInvalidRequest("path must have .jsonl extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		allowedDirs, err := allowedDirs(cfg)
		if err != nil {
			return err
		}
		parentDir := filepath.Dir(absPath)
		if !isDirectlyIn(parentDir, allowedDirs) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", allowedDirs))
		}
		if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// DefaultExportsDir returns ~/.medscan/exports.
func DefaultExportsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, ".medscan", "exports"), nil
}

// allowedDirs returns the default exports directory plus absolute
// allowed_paths entries, with symlinked entries resolved.
func allowedDirs(cfg *config.Config) ([]string, error) {
	defaultDir, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{defaultDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, filepath.Clean(p))
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

func isDirectlyIn(parentDir string, dirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, d := range dirs {
		if parentDir == filepath.Clean(d) {
			return true
		}
	}
	return false
}

func containsTraversal(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if part == ".." {
			return true
		}
	}
	return false
}
