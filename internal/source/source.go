// Package source implements the source resolver & loader (spec §4.1): it
// classifies a user-supplied input string into one of the three source
// variants, resolves it to a coordinate set, and loads it into a
// LoadedPackage. The classification rules and the git/registry fetch
// shape are adapted from kpt's internal/util/parse (ParseArgs,
// GitParseArgs, OciParseArgs) and internal/util/fetch (Command.Run).
package source

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/manifest"
	"github.com/opkgdev/opkg/internal/types"
)

// Variant tags which of the three source kinds a ResolvedSource is.
type Variant = types.SourceKind

// ResolvedSource is the outcome of classifying a user input string,
// before any fetch has happened.
type ResolvedSource struct {
	Variant Variant

	// Registry fields.
	RegistryName    string
	RegistryVersion string

	// Git fields.
	GitURL    string
	GitRef    string
	GitSubdir string // resource filter within the repo, NOT a clone subdirectory (§4.1 rule 3)

	// Local fields.
	LocalPath string
	IsFile    bool
}

// LoadedPackage is the resolver's output: a fully-materialized package
// tree ready for base detection.
type LoadedPackage struct {
	PackageName string
	Version     string
	ContentRoot string // absolute path to the materialized package tree
	Manifest    *manifest.Manifest
	Marketplace bool
	Source      ResolvedSource

	// CacheDir is the package-level persisted cache directory this
	// package was materialized under (§6 "<cache-root>/git/<url-hash>/
	// <commit-sha>/" or ".../registry/<name>/<version>/"), i.e.
	// ContentRoot with any in-repo resource filter stripped back off.
	// Empty for local-path sources, which have no persisted cache.
	CacheDir string
}

// looksLikeRegistryName is a loose name[@version] check: it accepts any
// non-empty name without spaces or tabs that does not start with '.' or
// '/' and does not contain "://".
func looksLikeRegistryName(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	if strings.HasPrefix(s, ".") || strings.HasPrefix(s, "/") {
		return false
	}
	if strings.Contains(s, "://") {
		return false
	}
	return true
}

// Classify implements the input-classification rules of spec §4.1.
func Classify(input string, cwd string) (ResolvedSource, error) {
	const op errors.Op = "source.Classify"

	// Rule 1: trailing '/' is a local directory.
	if strings.HasSuffix(input, "/") {
		abs := input
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cwd, input)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return ResolvedSource{}, errors.E(op, errors.NotFound, fmt.Errorf("not an existing directory: %s", input))
		}
		return ResolvedSource{Variant: types.SourceLocalPath, LocalPath: abs}, nil
	}

	// Rule 5 / Git-by-URL: '#ref' suffix on a URL, or a bare URL/gh@ shape.
	if ref, rest, ok := splitHashRef(input); ok {
		rs, err := classifyGit(rest, cwd)
		if err != nil {
			return ResolvedSource{}, err
		}
		rs.GitRef = ref
		return rs, nil
	}
	if strings.HasPrefix(input, "gh@") || looksLikeURL(input) {
		return classifyGit(input, cwd)
	}

	// Rule 2: bare name with a short alphanumeric extension -> local file.
	if ext := filepath.Ext(input); ext != "" && isShortAlnumExt(ext) {
		abs := input
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cwd, input)
		}
		if _, err := os.Stat(abs); err == nil {
			return ResolvedSource{Variant: types.SourceLocalPath, LocalPath: abs, IsFile: true}, nil
		}
		return ResolvedSource{}, errors.E(op, errors.NotFound, fmt.Errorf("file not found: %s", input))
	}

	// Rule 4: name[@version] registry shape.
	name, version := splitAtVersion(input)
	if looksLikeRegistryName(name) {
		return ResolvedSource{Variant: types.SourceRegistry, RegistryName: name, RegistryVersion: version}, nil
	}

	return ResolvedSource{}, errors.E(op, errors.Validation, fmt.Errorf("unrecognized input shape: %s", input))
}

func classifyGit(input string, cwd string) (ResolvedSource, error) {
	const op errors.Op = "source.classifyGit"
	input = strings.TrimPrefix(input, "gh@")

	if strings.Contains(input, "github.com") || looksLikeURL(input) {
		url, subdir := splitRepoAndPath(input)
		return ResolvedSource{Variant: types.SourceGit, GitURL: url, GitSubdir: subdir}, nil
	}

	// gh@owner/repo[/subpath]
	parts := strings.SplitN(input, "/", 3)
	if len(parts) < 2 {
		return ResolvedSource{}, errors.E(op, errors.Validation, fmt.Errorf("invalid gh@ shorthand: %s", input))
	}
	url := fmt.Sprintf("https://github.com/%s/%s", parts[0], parts[1])
	subdir := ""
	if len(parts) == 3 {
		subdir = parts[2]
	}
	_ = cwd
	return ResolvedSource{Variant: types.SourceGit, GitURL: url, GitSubdir: subdir}, nil
}

func splitRepoAndPath(input string) (url, subdir string) {
	idx := strings.Index(input, ".git")
	if idx >= 0 {
		url = input[:idx]
		rest := strings.TrimPrefix(input[idx+len(".git"):], "/")
		return url, path.Clean("/" + rest)
	}
	// No explicit .git suffix: assume the first two path segments after
	// the host are the repo, the rest is the in-repo resource filter.
	trimmed := strings.TrimPrefix(input, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	segs := strings.Split(trimmed, "/")
	if len(segs) <= 3 {
		return input, ""
	}
	url = "https://" + strings.Join(segs[:3], "/")
	subdir = "/" + strings.Join(segs[3:], "/")
	return url, subdir
}

func splitHashRef(input string) (ref, rest string, ok bool) {
	if !looksLikeURL(input) {
		return "", "", false
	}
	idx := strings.LastIndex(input, "#")
	if idx < 0 {
		return "", "", false
	}
	return input[idx+1:], input[:idx], true
}

func looksLikeURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "git@")
}

func splitAtVersion(s string) (name, version string) {
	if idx := strings.LastIndex(s, "@"); idx > 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}

func isShortAlnumExt(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	if len(ext) == 0 || len(ext) > 6 {
		return false
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// Mode controls whether registry resolution consults the local cache
// first or always hits the network.
type Mode int

const (
	ModeCacheFirst Mode = iota
	ModeRemotePrimary
)

// Loader loads a ResolvedSource into a LoadedPackage, dispatching across
// the three variants (spec §4.1 "Loading").
type Loader struct {
	Git      *GitLoader
	Registry *RegistryLoader
	Mode     Mode
}

// Load resolves rs into a LoadedPackage.
func (l *Loader) Load(ctx context.Context, rs ResolvedSource) (*LoadedPackage, error) {
	const op errors.Op = "source.Loader.Load"
	switch rs.Variant {
	case types.SourceLocalPath:
		return loadLocal(rs)
	case types.SourceGit:
		if l.Git == nil {
			return nil, errors.E(op, errors.Internal, fmt.Errorf("no git loader configured"))
		}
		return l.Git.Load(ctx, rs)
	case types.SourceRegistry:
		if l.Registry == nil {
			return nil, errors.E(op, errors.Internal, fmt.Errorf("no registry loader configured"))
		}
		return l.Registry.Load(ctx, rs, l.Mode)
	default:
		return nil, errors.E(op, errors.Validation, fmt.Errorf("unknown source variant %q", rs.Variant))
	}
}
