package workspaceindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingIsEmpty(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, idx.Packages)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	idx := &Index{Packages: map[string]PackageEntry{}}
	idx.SetPackage("tech", PackageEntry{
		Version: "1.0.0",
		Path:    "pkg/tech",
		Files: map[string][]TargetMapping{
			"mcp.jsonc": {{Target: ".cursor/mcp.json", Merge: "deep", Keys: []string{"mcpServers.tech.url"}}},
		},
	})
	require.NoError(t, Save(path, idx))

	loaded, err := Load(path)
	require.NoError(t, err)
	entry, ok := loaded.Get("tech")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", entry.Version)
	assert.Equal(t, []string{"mcpServers.tech.url"}, entry.Files["mcp.jsonc"][0].Keys)
}

func TestWritersAndKeysFor(t *testing.T) {
	idx := &Index{Packages: map[string]PackageEntry{}}
	idx.SetPackage("a", PackageEntry{Files: map[string][]TargetMapping{
		"s1": {{Target: "shared.json", Keys: []string{"a.x"}}},
	}})
	idx.SetPackage("b", PackageEntry{Files: map[string][]TargetMapping{
		"s2": {{Target: "shared.json", Keys: []string{"b.y"}}},
	}})

	writers := idx.Writers("shared.json")
	assert.ElementsMatch(t, []string{"a", "b"}, writers)
	assert.Equal(t, []string{"a.x"}, idx.KeysFor("a", "shared.json"))
}

func TestRemovePackage(t *testing.T) {
	idx := &Index{Packages: map[string]PackageEntry{}}
	idx.SetPackage("a", PackageEntry{})
	idx.RemovePackage("a")
	_, ok := idx.Get("a")
	assert.False(t, ok)
}
