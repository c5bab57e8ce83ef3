package source

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	copy "github.com/otiai10/copy"

	"github.com/opkgdev/opkg/internal/errors"
)

// GitLoader clones (or reuses a cached clone of) a Git repository, the
// way kpt's internal/util/fetch.cloneAndCopy does, adapted to opkg's
// content-addressed cache keyed by (url, resolved commit sha) per §4.1.
type GitLoader struct {
	// CacheRoot is the directory under which content-addressed clones
	// are kept: <CacheRoot>/git/<url-hash>/<commit-sha>/ (§6).
	CacheRoot string
}

// Load clones rs (or reuses the cache) and returns a LoadedPackage
// rooted at the resource filter subdirectory, if any.
func (g *GitLoader) Load(ctx context.Context, rs ResolvedSource) (*LoadedPackage, error) {
	const op errors.Op = "source.GitLoader.Load"

	ref := rs.GitRef
	if ref == "" {
		ref = "HEAD"
	}

	urlHash := fmt.Sprintf("%x", sha256.Sum256([]byte(rs.GitURL)))[:16]
	probeDir := filepath.Join(g.CacheRoot, "git", urlHash, "_probe")

	sha, err := g.resolveCommit(ctx, rs.GitURL, ref, probeDir)
	if err != nil {
		return nil, errors.E(op, errors.Network, err)
	}

	cloneDir := filepath.Join(g.CacheRoot, "git", urlHash, sha)
	if _, err := os.Stat(cloneDir); os.IsNotExist(err) {
		if err := g.cloneInto(ctx, rs.GitURL, sha, cloneDir); err != nil {
			_ = os.RemoveAll(cloneDir)
			return nil, errors.E(op, errors.Network, err)
		}
	}

	contentRoot := cloneDir
	if rs.GitSubdir != "" && rs.GitSubdir != "/" {
		contentRoot = filepath.Join(cloneDir, rs.GitSubdir)
		if _, err := os.Stat(contentRoot); err != nil {
			return nil, errors.E(op, errors.NotFound, fmt.Errorf("resource filter path not found in repo: %s", rs.GitSubdir))
		}
	}

	m, err := readManifestOrDefault(cloneDir)
	if err != nil {
		return nil, errors.E(op, err)
	}

	return &LoadedPackage{
		PackageName: m.Name,
		Version:     sha,
		ContentRoot: contentRoot,
		Manifest:    m,
		Marketplace: m.Marketplace,
		Source:      rs,
		CacheDir:    cloneDir,
	}, nil
}

// resolveCommit resolves ref to a commit sha via a lightweight, reusable
// probe clone so repeated resolves don't re-clone the whole repo.
func (g *GitLoader) resolveCommit(ctx context.Context, url, ref, probeDir string) (string, error) {
	var repo *git.Repository
	var err error

	if _, statErr := os.Stat(probeDir); statErr == nil {
		repo, err = git.PlainOpen(probeDir)
	} else {
		repo, err = git.PlainCloneContext(ctx, probeDir, false, &git.CloneOptions{
			URL:   url,
			Depth: 0,
		})
	}
	if err != nil {
		return "", err
	}

	if err := repo.FetchContext(ctx, &git.FetchOptions{Force: true}); err != nil && err != git.NoErrAlreadyUpToDate {
		// Non-fatal: we may already have the ref from the initial clone.
		_ = err
	}

	h, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		// Fall back to a remote-branch-qualified revision.
		h, err = repo.ResolveRevision(plumbing.Revision("origin/" + ref))
		if err != nil {
			return "", fmt.Errorf("resolving ref %q: %w", ref, err)
		}
	}
	return h.String(), nil
}

// cloneInto materializes a full working tree at the resolved commit into
// a temp dir, then atomically renames it into place (write-temp-then-
// rename per §3 Lifecycles).
func (g *GitLoader) cloneInto(ctx context.Context, url, sha, dest string) error {
	tmp := dest + ".tmp"
	_ = os.RemoveAll(tmp)
	repo, err := git.PlainCloneContext(ctx, tmp, false, &git.CloneOptions{URL: url})
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(sha)}); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		// Cross-device rename fallback.
		if copyErr := copyTree(tmp, dest); copyErr != nil {
			return copyErr
		}
		return os.RemoveAll(tmp)
	}
	return nil
}

// copyTree is the cross-device-rename fallback, the way kpt's
// internal/util/fetch.copyDir uses otiai10/copy for the same rare-path
// directory copy: skip .git (irrelevant once the working tree is
// checked out) and skip symlinks rather than following or erroring on
// them.
func copyTree(src, dst string) error {
	opts := copy.Options{
		Skip: func(srcPath string) (bool, error) {
			return filepath.Base(srcPath) == ".git", nil
		},
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Skip
		},
	}
	return copy.Copy(src, dst, opts)
}
