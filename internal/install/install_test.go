package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgdev/opkg/internal/platformdef"
	"github.com/opkgdev/opkg/internal/source"
	"github.com/opkgdev/opkg/internal/workspaceindex"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func cursorPlatform() platformdef.Platform {
	return platformdef.Platform{
		Name: "cursor",
		Export: []platformdef.Flow{
			{From: []string{"agents/*.md"}, To: ".cursor/rules/*.md", Merge: "replace"},
		},
	}
}

func TestRunSingleLocalPackageWritesAndIndexes(t *testing.T) {
	contentRoot := t.TempDir()
	writeFile(t, filepath.Join(contentRoot, "opkg.yaml"), "name: demo\nversion: 1.0.0\n")
	writeFile(t, filepath.Join(contentRoot, "agents", "helper.md"), "# Helper\n")

	workspaceRoot := t.TempDir()
	idx := &workspaceindex.Index{Packages: map[string]workspaceindex.PackageEntry{}}

	opts := Options{
		Input:         contentRoot + "/",
		Cwd:           t.TempDir(),
		WorkspaceRoot: workspaceRoot,
		Platforms:     []platformdef.Platform{cursorPlatform()},
		Loader:        &source.Loader{},
		ConflictMode:  ConflictKeepBoth,
	}

	res, err := Run(context.Background(), opts, idx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Contains(t, res.Installed, "demo")
	assert.Empty(t, res.Failed)

	written, rerr := os.ReadFile(filepath.Join(workspaceRoot, ".cursor", "rules", "helper.md"))
	require.NoError(t, rerr)
	assert.Equal(t, "# Helper\n", string(written))

	entry, ok := idx.Get("demo")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", entry.Version)
	mappings, ok := entry.Files["agents/helper.md"]
	require.True(t, ok)
	require.Len(t, mappings, 1)
	assert.Equal(t, ".cursor/rules/helper.md", mappings[0].Target)
	assert.Equal(t, "cursor", mappings[0].Platform)
}

func TestRunSkipsAlreadyCoveredSubset(t *testing.T) {
	contentRoot := t.TempDir()
	writeFile(t, filepath.Join(contentRoot, "opkg.yaml"), "name: demo\nversion: 1.0.0\n")
	writeFile(t, filepath.Join(contentRoot, "agents", "helper.md"), "# Helper\n")

	workspaceRoot := t.TempDir()
	idx := &workspaceindex.Index{Packages: map[string]workspaceindex.PackageEntry{
		"demo": {Version: "1.0.0", Path: contentRoot, Scope: "full"},
	}}

	opts := Options{
		Input:          contentRoot + "/",
		Cwd:            t.TempDir(),
		WorkspaceRoot:  workspaceRoot,
		Platforms:      []platformdef.Platform{cursorPlatform()},
		Loader:         &source.Loader{},
		ConflictMode:   ConflictKeepBoth,
		ResourceFilter: "agents/*",
	}

	// The root package itself is always (re)processed regardless of
	// subsumption (subsumption only short-circuits transitive deps);
	// this just exercises the root path staying writable.
	res, err := Run(context.Background(), opts, idx)
	require.NoError(t, err)
	assert.Contains(t, res.Installed, "demo")
}

func TestRunAmbiguousBaseWithoutForceFails(t *testing.T) {
	contentRoot := t.TempDir()
	writeFile(t, filepath.Join(contentRoot, "opkg.yaml"), "name: demo\n")
	writeFile(t, filepath.Join(contentRoot, "one", "agents", "a.md"), "a")
	writeFile(t, filepath.Join(contentRoot, "two", "agents", "b.md"), "b")

	workspaceRoot := t.TempDir()
	idx := &workspaceindex.Index{Packages: map[string]workspaceindex.PackageEntry{}}

	platform := platformdef.Platform{
		Name:      "cursor",
		Detection: []string{"*/agents/*.md"},
	}
	opts := Options{
		Input:         contentRoot + "/",
		Cwd:           t.TempDir(),
		WorkspaceRoot: workspaceRoot,
		Platforms:     []platformdef.Platform{platform},
		Loader:        &source.Loader{},
	}

	res, err := Run(context.Background(), opts, idx)
	require.Error(t, err)
	require.NotNil(t, res)
	require.Len(t, res.AmbiguousBases, 1)
	assert.Equal(t, "demo", res.AmbiguousBases[0].Package)
}
