package install

import (
	"context"

	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/manifest"
	"github.com/opkgdev/opkg/internal/source"
	"github.com/opkgdev/opkg/internal/types"
)

// manifestFetcher adapts source.Loader into depgraph.ManifestFetcher
// (spec §4.2), caching every LoadedPackage it fetches so the later
// per-package flow-planning phase doesn't re-resolve or re-clone.
type manifestFetcher struct {
	loader *source.Loader
	cwd    string

	loaded map[string]*source.LoadedPackage
}

func newManifestFetcher(loader *source.Loader, cwd string) *manifestFetcher {
	return &manifestFetcher{loader: loader, cwd: cwd, loaded: map[string]*source.LoadedPackage{}}
}

// FetchManifest resolves dep to a source variant, loads it, caches the
// result under dep.Name, and returns its manifest. A missing manifest
// (package without one) is non-fatal per §4.2.
func (f *manifestFetcher) FetchManifest(ctx context.Context, dep manifest.Dependency) (*manifest.Manifest, error) {
	const op errors.Op = "install.manifestFetcher.FetchManifest"

	rs, err := resolvedSourceForDep(dep, f.cwd)
	if err != nil {
		return nil, errors.E(op, err)
	}
	lp, err := f.loader.Load(ctx, rs)
	if err != nil {
		return nil, errors.E(op, errors.Network, err)
	}
	f.loaded[dep.Name] = lp
	return lp.Manifest, nil
}

// ListVersions returns no versions for any source: the loader has no
// tag listing. With an empty result, each range's own pinned version is
// its only candidate (depgraph.unify's fallback).
func (f *manifestFetcher) ListVersions(ctx context.Context, name string) ([]string, error) {
	return nil, nil
}

// Get returns the cached LoadedPackage for a previously fetched
// dependency name.
func (f *manifestFetcher) Get(name string) (*source.LoadedPackage, bool) {
	lp, ok := f.loaded[name]
	return lp, ok
}

// resolvedSourceForDep implements the dependency-shape dispatch from §3:
// url marks Git, path alone marks local, otherwise registry.
func resolvedSourceForDep(dep manifest.Dependency, cwd string) (source.ResolvedSource, error) {
	switch dep.Kind() {
	case manifest.KindGit:
		return source.ResolvedSource{
			Variant:   types.SourceGit,
			GitURL:    dep.URL,
			GitRef:    dep.Ref,
			GitSubdir: dep.Path,
		}, nil
	case manifest.KindLocal:
		return source.Classify(dep.Path, cwd)
	default:
		return source.ResolvedSource{
			Variant:         types.SourceRegistry,
			RegistryName:    dep.Name,
			RegistryVersion: dep.Version,
		}, nil
	}
}
