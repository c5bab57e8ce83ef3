package flow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgdev/opkg/internal/platformdef"
)

func TestEvalWhenEqAndExists(t *testing.T) {
	vars := Vars{"platform": "cursor"}
	ok, err := EvalWhen(map[string]interface{}{"$eq": []interface{}{"$$platform", "cursor"}}, vars)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvalWhen(map[string]interface{}{"exists": "$$source"}, vars)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveTargetPathDoubleStarAndStripsSuffix(t *testing.T) {
	got := ResolveTargetPath("agents/**/*.cursor.md", "agents/sub/rule.cursor.md", "agents/**", "cursor")
	assert.Equal(t, "agents/sub/rule.md", got)
}

func TestResolveTargetPathSingleStar(t *testing.T) {
	got := ResolveTargetPath("*.json", "config.json", "settings-*.json", "")
	assert.Equal(t, "settings-config.json.json", got)
}

func TestPriorityListFallbackNoWarning(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "config.json"), []byte(`{"a":1}`), 0o644))

	targetRoot := t.TempDir()
	f := platformdef.Flow{From: []string{"config.jsonc", "config.json"}, To: "settings.json", Merge: "replace"}
	fctx := Context{PackageName: "pkg", TargetRoot: targetRoot, Platform: "cursor"}

	outcomes := Run(base, f, fctx, false)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.Empty(t, outcomes[0].Warning)
	assert.Equal(t, "settings.json", outcomes[0].TargetPath)

	written, err := os.ReadFile(filepath.Join(targetRoot, "settings.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(written))
}

func TestPriorityListWarnsWhenMultipleMatch(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "config.jsonc"), []byte(`{"a":1}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "config.json"), []byte(`{"a":2}`), 0o644))

	targetRoot := t.TempDir()
	f := platformdef.Flow{From: []string{"config.jsonc", "config.json"}, To: "settings.json", Merge: "replace"}
	fctx := Context{PackageName: "pkg", TargetRoot: targetRoot, Platform: "cursor"}

	outcomes := Run(base, f, fctx, false)
	require.Len(t, outcomes, 1)
	assert.NotEmpty(t, outcomes[0].Warning)
}

func TestRunSkipsOnFalseCondition(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "x.json"), []byte(`{}`), 0o644))

	f := platformdef.Flow{
		From: []string{"x.json"}, To: "y.json", Merge: "replace",
		When: map[string]interface{}{"$eq": []interface{}{"$$platform", "other"}},
	}
	fctx := Context{PackageName: "pkg", TargetRoot: t.TempDir(), Platform: "cursor"}
	outcomes := Run(base, f, fctx, true)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped)
}

func TestRunCapturesDeepMergeKeys(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "mcp.json"), []byte(`{"mcpServers":{"tech":{"url":"https://t"}}}`), 0o644))

	targetRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(targetRoot, ".cursor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(targetRoot, ".cursor", "mcp.json"), []byte(`{"mcpServers":{"existing":{"url":"https://e"}}}`), 0o644))

	f := platformdef.Flow{From: []string{"mcp.json"}, To: ".cursor/mcp.json", Merge: "deep"}
	fctx := Context{PackageName: "tech", TargetRoot: targetRoot, Platform: "cursor"}
	outcomes := Run(base, f, fctx, false)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.Contains(t, outcomes[0].Keys, "mcpServers.tech.url")

	written, err := os.ReadFile(filepath.Join(targetRoot, ".cursor", "mcp.json"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "existing")
	assert.Contains(t, string(written), "tech")
}
