package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrPathDenied = errors.New("path outside allowed directories")

// DeniedError names the rejected path and the roots it was checked against.
type DeniedError struct {
	Path    string
	Allowed []string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%v: %q not under %v", ErrPathDenied, e.Path, e.Allowed)
}

func (e *DeniedError) Unwrap() error {
	return ErrPathDenied
}

// PathChecker restricts reads and writes to a set of directories.
// An empty allowed list means no restrictions.
type PathChecker struct {
	allowedPaths []string // resolved absolute paths
}

// NewPathChecker expands ~ and resolves each entry to an absolute, symlink-free path.
func NewPathChecker(allowedPaths []string) *PathChecker {
	resolved := make([]string, 0, len(allowedPaths))
	for _, p := range allowedPaths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		abs, err := resolve(p)
		if err != nil {
			continue
		}
		resolved = append(resolved, abs)
	}
	return &PathChecker{allowedPaths: resolved}
}

// Check returns a *DeniedError when path falls outside every allowed root.
// The file itself need not exist; its parent directory is resolved instead.
func (pc *PathChecker) Check(path string) error {
	if pc == nil || len(pc.allowedPaths) == 0 {
		return nil
	}
	abs, err := resolve(path)
	if err != nil {
		return &DeniedError{Path: path, Allowed: pc.allowedPaths}
	}
	for _, allowed := range pc.allowedPaths {
		if abs == allowed || strings.HasPrefix(abs, allowed+string(filepath.Separator)) {
			return nil
		}
	}
	return &DeniedError{Path: path, Allowed: pc.allowedPaths}
}

func (pc *PathChecker) HasRestrictions() bool {
	return pc != nil && len(pc.allowedPaths) > 0
}

func (pc *PathChecker) AllowedPaths() []string {
	return pc.allowedPaths
}

// resolve makes path absolute and evaluates symlinks on the longest existing
// prefix, so a not-yet-created output file is judged by its real directory.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	existing, rest := abs, ""
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolved, rest), nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
