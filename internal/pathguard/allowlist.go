// Package pathguard decides which local files the service may read.
package pathguard

import (
	"path/filepath"
	"strings"
)

// Allowlist permits paths that exist and resolve to a location inside one of
// its directories. Symlinks are resolved on both sides.
type Allowlist struct {
	dirs []string
}

// New builds an Allowlist. Directories that cannot be resolved are dropped.
func New(dirs []string) *Allowlist {
	a := &Allowlist{}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		resolved, err := resolve(d)
		if err != nil {
			continue
		}
		a.dirs = append(a.dirs, resolved)
	}
	return a
}

// Dirs returns the resolved allowlisted directories.
func (a *Allowlist) Dirs() []string {
	return append([]string(nil), a.dirs...)
}

func (a *Allowlist) IsAllowedPath(path string) bool {
	if path == "" || len(a.dirs) == 0 {
		return false
	}
	resolved, err := resolve(path)
	if err != nil {
		return false
	}
	for _, dir := range a.dirs {
		if within(dir, resolved) {
			return true
		}
	}
	return false
}

func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// None rejects every path.
type None struct{}

func (None) IsAllowedPath(string) bool { return false }
