package docmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDeepExampleFromSpec(t *testing.T) {
	// §8 scenario 1: existing .cursor/mcp.json + tech's contribution.
	existing := map[string]interface{}{
		"mcpServers": map[string]interface{}{
			"existing": map[string]interface{}{"url": "https://e"},
		},
	}
	incoming := map[string]interface{}{
		"mcpServers": map[string]interface{}{
			"tech": map[string]interface{}{"url": "https://t"},
		},
	}

	res, err := Merge(existing, incoming, StrategyDeep, "tech")
	require.NoError(t, err)

	m := res.Value.(map[string]interface{})["mcpServers"].(map[string]interface{})
	assert.Contains(t, m, "existing")
	assert.Contains(t, m, "tech")
	assert.Empty(t, res.Conflicts)
}

func TestMergeDeepRecordsScalarConflict(t *testing.T) {
	existing := map[string]interface{}{"a": "old"}
	incoming := map[string]interface{}{"a": "new"}

	res, err := Merge(existing, incoming, StrategyDeep, "pkg")
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "a", res.Conflicts[0].Path)
	assert.Equal(t, "new", res.Conflicts[0].Winner)
	assert.Equal(t, res.Value.(map[string]interface{})["a"], "new")
}

func TestMergeShallowSourceWinsOnOverlap(t *testing.T) {
	existing := map[string]interface{}{"a": 1, "b": 2}
	incoming := map[string]interface{}{"b": 99, "c": 3}
	res, err := Merge(existing, incoming, StrategyShallow, "pkg")
	require.NoError(t, err)
	m := res.Value.(map[string]interface{})
	assert.Equal(t, 1, m["a"])
	assert.Equal(t, 99, m["b"])
	assert.Equal(t, 3, m["c"])
}

func TestMergeReplace(t *testing.T) {
	res, err := Merge(map[string]interface{}{"a": 1}, map[string]interface{}{"b": 2}, StrategyReplace, "pkg")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"b": 2}, res.Value)
}

func TestMergeCompositeAddsAndReplacesBlock(t *testing.T) {
	res, err := Merge("existing body", "contribution v1", StrategyComposite, "pkgA")
	require.NoError(t, err)
	text := res.Value.(string)
	assert.Contains(t, text, "existing body")
	assert.Contains(t, text, "opkg:begin pkgA")
	assert.Contains(t, text, "contribution v1")

	res2, err := Merge(text, "contribution v2", StrategyComposite, "pkgA")
	require.NoError(t, err)
	text2 := res2.Value.(string)
	assert.NotContains(t, text2, "contribution v1")
	assert.Contains(t, text2, "contribution v2")
}

func TestRemoveBlock(t *testing.T) {
	wrapped := RenderBlock("pkgA", "stuff")
	full := "header\n\n" + wrapped
	stripped := RemoveBlock(full, "pkgA")
	assert.NotContains(t, stripped, "stuff")
	assert.Contains(t, stripped, "header")
}
