// Package workspace provides depot detection.
//
// A depot is the source repository checkout that Muster manages: the
// directory containing .muster/ with the fleet's config, state, and
// worktrees. Commands may be invoked from anywhere inside the depot,
// including from within a worker worktree.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/steveyegge/muster/internal/constants"
)

// ErrNotFound indicates no depot was found.
var ErrNotFound = errors.New("not in a muster depot (no .muster directory found; run 'muster init')")

// Find locates the depot root by walking up from the given directory.
// Worker worktrees live under .muster/worktrees/, so walking up from
// inside one still lands on the depot root. Does not resolve symlinks
// to stay consistent with os.Getwd().
func Find(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	current := absDir
	for {
		marker := filepath.Join(current, constants.DirMuster)
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrNotFound
		}
		current = parent
	}
}

// FindFromCwd locates the depot root from the current working directory.
// If getcwd fails (e.g. a deleted worktree), falls back to the
// MUSTER_DEPOT env var set in worker sessions.
func FindFromCwd() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		if depot := os.Getenv(constants.EnvDepot); depot != "" {
			if info, statErr := os.Stat(filepath.Join(depot, constants.DirMuster)); statErr == nil && info.IsDir() {
				return depot, nil
			}
		}
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return Find(cwd)
}

// IsDepot checks if the given directory is a depot root.
func IsDepot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, constants.DirMuster))
	return err == nil && info.IsDir()
}

// MusterDir returns the .muster directory for a depot root.
func MusterDir(root string) string {
	return filepath.Join(root, constants.DirMuster)
}
