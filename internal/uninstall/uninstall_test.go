package uninstall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgdev/opkg/internal/workspaceindex"
)

func TestRunDeepMergeRoundTrip(t *testing.T) {
	// §8 scenario 1: installing "tech" into a pre-existing .cursor/mcp.json
	// then uninstalling it restores the pre-install content.
	dir := t.TempDir()
	target := filepath.Join(dir, ".cursor", "mcp.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	merged := `{"mcpServers":{"existing":{"url":"https://e"},"tech":{"url":"https://t"}}}`
	require.NoError(t, os.WriteFile(target, []byte(merged), 0o644))

	idx := &workspaceindex.Index{Packages: map[string]workspaceindex.PackageEntry{
		"tech": {
			Version: "1.0.0",
			Files: map[string][]workspaceindex.TargetMapping{
				"mcp.jsonc": {
					{Target: ".cursor/mcp.json", Merge: "deep", Keys: []string{"mcpServers.tech.url"}},
				},
			},
		},
	}}

	res, err := Run(idx, dir, "tech", nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Targets, 1)
	assert.False(t, res.Targets[0].Deleted)

	out, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{"existing":{"url":"https://e"}}}`, string(out))

	_, ok := idx.Get("tech")
	assert.False(t, ok)
}

func TestRunBareTargetDeletesFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "AGENTS.md")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))

	idx := &workspaceindex.Index{Packages: map[string]workspaceindex.PackageEntry{
		"helper": {
			Files: map[string][]workspaceindex.TargetMapping{
				"agents/helper.md": {{Target: "AGENTS.md"}},
			},
		},
	}}

	res, err := Run(idx, dir, "helper", nil, nil)
	require.NoError(t, err)
	assert.True(t, res.Targets[0].Deleted)
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestRunCoexistingPackageKeysSurviveSiblingUninstall(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, ".cursor", "mcp.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	merged := `{"mcpServers":{"p":{"url":"https://p"},"q":{"url":"https://q"}}}`
	require.NoError(t, os.WriteFile(target, []byte(merged), 0o644))

	idx := &workspaceindex.Index{Packages: map[string]workspaceindex.PackageEntry{
		"p": {Files: map[string][]workspaceindex.TargetMapping{
			"mcp.jsonc": {{Target: ".cursor/mcp.json", Merge: "deep", Keys: []string{"mcpServers.p.url"}}},
		}},
		"q": {Files: map[string][]workspaceindex.TargetMapping{
			"mcp.jsonc": {{Target: ".cursor/mcp.json", Merge: "deep", Keys: []string{"mcpServers.q.url"}}},
		}},
	}}

	_, err := Run(idx, dir, "p", nil, nil)
	require.NoError(t, err)

	out, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{"q":{"url":"https://q"}}}`, string(out))

	_, ok := idx.Get("q")
	assert.True(t, ok)
}

func TestCleanEmptyDirsPreservesRootDirs(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, ".cursor", "rules", "sub")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cleanEmptyDirs(nested, dir, []string{filepath.Join(dir, ".cursor")})

	_, err := os.Stat(filepath.Join(dir, ".cursor"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ".cursor", "rules"))
	assert.True(t, os.IsNotExist(err))
}
