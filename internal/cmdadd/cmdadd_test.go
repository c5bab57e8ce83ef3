package cmdadd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgdev/opkg/internal/manifest"
	"github.com/opkgdev/opkg/internal/source"
	"github.com/opkgdev/opkg/internal/types"
)

func TestDependencyForGit(t *testing.T) {
	rs := source.ResolvedSource{
		Variant: types.SourceGit,
		GitURL:  "https://github.com/example/skills.git",
		GitRef:  "v1.2.0",
	}
	dep, err := dependencyFor(rs, "")
	require.NoError(t, err)
	assert.Equal(t, "skills", dep.Name)
	assert.Equal(t, "https://github.com/example/skills.git", dep.URL)
	assert.Equal(t, "v1.2.0", dep.Ref)
	assert.Equal(t, manifest.KindGit, dep.Kind())
}

func TestDependencyForLocalPath(t *testing.T) {
	rs := source.ResolvedSource{Variant: types.SourceLocalPath, LocalPath: "/tmp/pkgs/tools"}
	dep, err := dependencyFor(rs, "")
	require.NoError(t, err)
	assert.Equal(t, "tools", dep.Name)
	assert.Equal(t, "/tmp/pkgs/tools", dep.Path)
	assert.Equal(t, manifest.KindLocal, dep.Kind())
}

func TestDependencyForRegistryVersionOverride(t *testing.T) {
	rs := source.ResolvedSource{Variant: types.SourceRegistry, RegistryName: "acme-agents", RegistryVersion: "1.0.0"}

	dep, err := dependencyFor(rs, "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", dep.Version)

	// an explicit --version flag overrides whatever the input string pinned
	dep, err = dependencyFor(rs, "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", dep.Version)
	assert.Equal(t, manifest.KindRegistry, dep.Kind())
}

func TestDependencyNameFromGitURL(t *testing.T) {
	assert.Equal(t, "skills", dependencyNameFromGitURL("https://github.com/example/skills.git"))
	assert.Equal(t, "skills", dependencyNameFromGitURL("https://github.com/example/skills"))
}

func TestLoadOrInitManifestMissingFileInitsFromDirName(t *testing.T) {
	dir := t.TempDir()
	m, err := loadOrInitManifest(filepath.Join(dir, manifest.FileName), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), m.Name)
	assert.Empty(t, m.Dependencies)
}

func TestLoadOrInitManifestParsesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, manifest.FileName)
	data, err := manifest.Marshal(&manifest.Manifest{Name: "my-pkg"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := loadOrInitManifest(path, dir)
	require.NoError(t, err)
	assert.Equal(t, "my-pkg", m.Name)
}

func TestRunUpsertsExistingDependencyByName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, manifest.FileName)
	seed := &manifest.Manifest{
		Name: "my-pkg",
		Dependencies: []manifest.Dependency{
			{Name: "tools", Path: "../old-tools"},
		},
	}
	data, err := manifest.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := loadOrInitManifest(path, dir)
	require.NoError(t, err)

	dep := manifest.Dependency{Name: "tools", Path: "../new-tools"}
	upserted := false
	for i, d := range m.Dependencies {
		if d.Name == dep.Name {
			m.Dependencies[i] = dep
			upserted = true
			break
		}
	}
	require.True(t, upserted)
	assert.Len(t, m.Dependencies, 1)
	assert.Equal(t, "../new-tools", m.Dependencies[0].Path)
}
