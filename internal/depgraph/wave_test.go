package depgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgdev/opkg/internal/manifest"
)

type fakeFetcher struct {
	manifests map[string]*manifest.Manifest
	versions  map[string][]string
}

func (f *fakeFetcher) FetchManifest(_ context.Context, dep manifest.Dependency) (*manifest.Manifest, error) {
	return f.manifests[dep.Name], nil
}

func (f *fakeFetcher) ListVersions(_ context.Context, name string) ([]string, error) {
	return f.versions[name], nil
}

func TestResolveSimpleChainLeavesFirst(t *testing.T) {
	fetcher := &fakeFetcher{
		manifests: map[string]*manifest.Manifest{
			"a": {Name: "a", Dependencies: []manifest.Dependency{{Name: "b", Version: "1.0.0"}}},
			"b": {Name: "b"},
		},
		versions: map[string][]string{"a": {"1.0.0"}, "b": {"1.0.0"}},
	}

	res, err := Resolve(context.Background(), []manifest.Dependency{{Name: "a", Version: "1.0.0"}}, "root", fetcher, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, res.InstallOrder)
}

func TestResolveMissingManifestIsLeaf(t *testing.T) {
	fetcher := &fakeFetcher{manifests: map[string]*manifest.Manifest{}}
	res, err := Resolve(context.Background(), []manifest.Dependency{{Name: "solo", Version: "1.0.0"}}, "root", fetcher, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, res.InstallOrder)
}

func TestResolveVersionConflictWithoutHandlerFails(t *testing.T) {
	fetcher := &fakeFetcher{
		manifests: map[string]*manifest.Manifest{
			"mid1": {Name: "mid1", Dependencies: []manifest.Dependency{{Name: "shared", Version: "^1.0.0"}}},
			"mid2": {Name: "mid2", Dependencies: []manifest.Dependency{{Name: "shared", Version: "^2.0.0"}}},
		},
		versions: map[string][]string{"shared": {"1.5.0", "2.5.0"}},
	}
	roots := []manifest.Dependency{{Name: "mid1", Version: "1.0.0"}, {Name: "mid2", Version: "1.0.0"}}
	res, err := Resolve(context.Background(), roots, "root", fetcher, nil)
	require.Error(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "shared", res.Conflicts[0].Name)
}

func TestResolveVersionConflictWithHandlerSucceeds(t *testing.T) {
	fetcher := &fakeFetcher{
		manifests: map[string]*manifest.Manifest{
			"mid1": {Name: "mid1", Dependencies: []manifest.Dependency{{Name: "shared", Version: "^1.0.0"}}},
			"mid2": {Name: "mid2", Dependencies: []manifest.Dependency{{Name: "shared", Version: "^2.0.0"}}},
		},
		versions: map[string][]string{"shared": {"1.5.0", "2.5.0"}},
	}
	roots := []manifest.Dependency{{Name: "mid1", Version: "1.0.0"}, {Name: "mid2", Version: "1.0.0"}}
	handler := func(_ context.Context, c Conflict) (string, bool) {
		return "2.0.5", true
	}
	res, err := Resolve(context.Background(), roots, "root", fetcher, handler)
	require.NoError(t, err)
	assert.Equal(t, "2.0.5", res.Graph.Nodes["shared"].ResolvedVersion)
}

func TestResolveMarketplaceNodeSkippedFromOrder(t *testing.T) {
	fetcher := &fakeFetcher{
		manifests: map[string]*manifest.Manifest{
			"catalog": {Name: "catalog", Marketplace: true, Dependencies: []manifest.Dependency{{Name: "never-reached", Version: "1.0.0"}}},
		},
		versions: map[string][]string{"catalog": {"1.0.0"}},
	}
	res, err := Resolve(context.Background(), []manifest.Dependency{{Name: "catalog", Version: "1.0.0"}}, "root", fetcher, nil)
	require.NoError(t, err)
	assert.NotContains(t, res.InstallOrder, "catalog")
	assert.NotContains(t, res.InstallOrder, "never-reached")
}
