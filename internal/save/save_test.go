package save

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgdev/opkg/internal/workspaceindex"
)

func TestRunWritesUniversalFormWhenContributionChanged(t *testing.T) {
	ws := t.TempDir()
	content := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".cursor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".cursor", "mcp.json"),
		[]byte(`{"mcpServers":{"existing":{"url":"https://e"},"tech":{"url":"https://t2"}}}`), 0o644))

	idx := &workspaceindex.Index{Packages: map[string]workspaceindex.PackageEntry{
		"tech": {
			Files: map[string][]workspaceindex.TargetMapping{
				"mcp.jsonc": {{Target: ".cursor/mcp.json", Merge: "deep", Keys: []string{"mcpServers.tech.url"}}},
			},
		},
	}}

	res, err := Run(idx, ws, content, "tech", nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.True(t, res.Files[0].Written)

	out, err := os.ReadFile(filepath.Join(content, "mcp.jsonc"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{"tech":{"url":"https://t2"}}}`, string(out))
}

func TestRunSkipsWriteWhenUnchanged(t *testing.T) {
	ws := t.TempDir()
	content := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".cursor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".cursor", "mcp.json"),
		[]byte(`{"mcpServers":{"tech":{"url":"https://t"}}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(content, "mcp.jsonc"),
		[]byte(`{"mcpServers":{"tech":{"url":"https://t"}}}`), 0o644))

	idx := &workspaceindex.Index{Packages: map[string]workspaceindex.PackageEntry{
		"tech": {
			Files: map[string][]workspaceindex.TargetMapping{
				"mcp.jsonc": {{Target: ".cursor/mcp.json", Merge: "deep", Keys: []string{"mcpServers.tech.url"}}},
			},
		},
	}}
	cache := NewHashCache()

	res, err := Run(idx, ws, content, "tech", nil, cache)
	require.NoError(t, err)
	assert.False(t, res.Files[0].Written)
}

func TestRunMissingTargetIsNonFatal(t *testing.T) {
	ws := t.TempDir()
	content := t.TempDir()

	idx := &workspaceindex.Index{Packages: map[string]workspaceindex.PackageEntry{
		"gone": {
			Files: map[string][]workspaceindex.TargetMapping{
				"AGENTS.md": {{Target: "AGENTS.md"}},
			},
		},
	}}

	res, err := Run(idx, ws, content, "gone", nil, nil)
	require.NoError(t, err)
	assert.False(t, res.Files[0].Written)
	assert.NoError(t, res.Files[0].Err)
}
