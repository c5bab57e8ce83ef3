package cmdremove

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgdev/opkg/internal/manifest"
)

func writeManifest(t *testing.T, dir string, m *manifest.Manifest) string {
	t.Helper()
	data, err := manifest.Marshal(m)
	require.NoError(t, err)
	path := filepath.Join(dir, manifest.FileName)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunRemovesNamedDependency(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, &manifest.Manifest{
		Name: "my-pkg",
		Dependencies: []manifest.Dependency{
			{Name: "tools", Path: "../tools"},
			{Name: "skills", Version: "1.0.0"},
		},
	})

	err := removeDependency(dir, "tools")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)
	m, err := manifest.Parse(data)
	require.NoError(t, err)
	require.Len(t, m.Dependencies, 1)
	assert.Equal(t, "skills", m.Dependencies[0].Name)
}

func TestRunErrorsWhenDependencyNotFound(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, &manifest.Manifest{Name: "my-pkg"})

	err := removeDependency(dir, "missing")
	require.Error(t, err)
}

func TestRunErrorsWhenNoManifest(t *testing.T) {
	dir := t.TempDir()
	err := removeDependency(dir, "tools")
	require.Error(t, err)
}
