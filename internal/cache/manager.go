package cache

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/opkgdev/opkg/internal/errors"
)

// Manager owns the shared process-scoped temp-dir root used for
// arbitrary conversions (§4.10), released in one guaranteed block at the
// end of each command — the way kpt's commands defer os.RemoveAll on
// their fetch/update temp dirs, generalized to a single shared root.
type Manager struct {
	Root string

	mu    sync.Mutex
	dirs  []string
	spent bool
}

// NewManager creates a fresh process-scoped temp root under os.TempDir.
func NewManager() (*Manager, error) {
	const op errors.Op = "cache.NewManager"
	root, err := os.MkdirTemp("", "opkg-run-*")
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	return &Manager{Root: root}, nil
}

// TempDir allocates a new subdirectory under the shared root, tracked
// for release.
func (m *Manager) TempDir(prefix string) (string, error) {
	const op errors.Op = "cache.Manager.TempDir"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spent {
		return "", errors.E(op, errors.Internal, errSpent)
	}
	dir, err := os.MkdirTemp(m.Root, prefix+"-*")
	if err != nil {
		return "", errors.E(op, errors.IO, err)
	}
	m.dirs = append(m.dirs, dir)
	return dir, nil
}

// Release removes every allocated temp dir and the shared root itself.
// It is idempotent and safe to call from a defer at command boundary
// regardless of how the command terminated.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spent {
		return nil
	}
	m.spent = true
	return os.RemoveAll(m.Root)
}

// PackageCacheDir returns the content-addressed cache directory for a
// package's materialized tree, mirroring §6's persisted cache layout:
// <cache-root>/git/<url-hash>/<commit-sha>/ or
// <cache-root>/registry/<name>/<version>/.
func PackageCacheDir(cacheRoot, kind, key1, key2 string) string {
	return filepath.Join(cacheRoot, kind, key1, key2)
}

var errSpent = errSpentType{}

type errSpentType struct{}

func (errSpentType) Error() string { return "temp-dir manager already released" }
