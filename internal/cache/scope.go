// Package cache implements the cache & temp-dir manager (spec §4.10):
// scope-partitioned conversion caches nested under the content-addressed
// Git/registry cache, plus a shared process-scoped temp-dir root. The
// layout mirrors kpt's local package cache directory conventions
// (internal/util/fetch, gitutil's repo cache) generalized to opkg's
// full/subset scoping rule.
package cache

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opkgdev/opkg/internal/errors"
)

const convertedDirName = ".opkg-converted"

const fullScopeDirName = "_full"

// ScopeHash returns the 8-hex-char cache key for a subset install's
// resource-filter pattern, per §4.10: "the first 8 hex chars of SHA-256
// of the pattern string."
func ScopeHash(pattern string) string {
	sum := sha256.Sum256([]byte(pattern))
	return fmt.Sprintf("%x", sum)[:8]
}

// ScopeDirName returns the directory name for a scope: "_full" for a
// whole-package install, "_subset.<hash>" for a resource-filtered one.
func ScopeDirName(pattern string) string {
	if pattern == "" {
		return fullScopeDirName
	}
	return "_subset." + ScopeHash(pattern)
}

// PrepareScope ensures packageCacheRoot/.opkg-converted/<scope>/ exists
// and is clean, after removing every sibling _full/_subset.* directory
// (§4.10: "before creating the current scope's directory, clean every
// other _full/_subset.* sibling").
func PrepareScope(packageCacheRoot, pattern string) (string, error) {
	const op errors.Op = "cache.PrepareScope"

	convertedRoot := filepath.Join(packageCacheRoot, convertedDirName)
	if err := os.MkdirAll(convertedRoot, 0o755); err != nil {
		return "", errors.E(op, errors.IO, err)
	}

	target := ScopeDirName(pattern)
	entries, err := os.ReadDir(convertedRoot)
	if err != nil {
		return "", errors.E(op, errors.IO, err)
	}
	for _, e := range entries {
		name := e.Name()
		if name == target {
			continue
		}
		if name == fullScopeDirName || strings.HasPrefix(name, "_subset.") {
			if err := os.RemoveAll(filepath.Join(convertedRoot, name)); err != nil {
				return "", errors.E(op, errors.IO, err)
			}
		}
	}

	scopeDir := filepath.Join(convertedRoot, target)
	if err := os.MkdirAll(scopeDir, 0o755); err != nil {
		return "", errors.E(op, errors.IO, err)
	}
	return scopeDir, nil
}

// Siblings lists the _full/_subset.* directories currently present under
// packageCacheRoot/.opkg-converted, for test assertions (§8 "Scope cache
// isolation").
func Siblings(packageCacheRoot string) ([]string, error) {
	convertedRoot := filepath.Join(packageCacheRoot, convertedDirName)
	entries, err := os.ReadDir(convertedRoot)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Name() == fullScopeDirName || strings.HasPrefix(e.Name(), "_subset.") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
