package mappipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapReplaceExample(t *testing.T) {
	// spec §8 scenario 3: {"tools":"Read, Write, AskUserQuestion"} through
	// $reduce split ", ", $map each lowercase, $map replace {askuserquestion:"question"}
	// yields {"tools":["read","write","question"]}
	doc := map[string]interface{}{"tools": "Read, Write, AskUserQuestion"}

	raw := []map[string]interface{}{
		{"$reduce": map[string]interface{}{"path": "tools", "op": "split", "arg": ", "}},
		{"$map": map[string]interface{}{"path": "tools", "each": "lowercase"}},
		{"$map": map[string]interface{}{"path": "tools", "replace": map[string]interface{}{"askuserquestion": "question"}}},
	}
	ops, err := ParseOps(raw)
	require.NoError(t, err)

	result, err := Apply(doc, ops, nil)
	require.NoError(t, err)

	m := result.(map[string]interface{})
	assert.Equal(t, []interface{}{"read", "write", "question"}, m["tools"])
}

func TestMapEachAndReplaceMutuallyExclusive(t *testing.T) {
	raw := []map[string]interface{}{
		{"$map": map[string]interface{}{"path": "x", "each": "lowercase", "replace": map[string]interface{}{"a": "b"}}},
	}
	_, err := ParseOps(raw)
	assert.Error(t, err)
}

func TestUnknownOpRejected(t *testing.T) {
	raw := []map[string]interface{}{{"$bogus": map[string]interface{}{}}}
	_, err := ParseOps(raw)
	assert.Error(t, err)
}

func TestSetAndUnset(t *testing.T) {
	doc := map[string]interface{}{}
	ops, err := ParseOps([]map[string]interface{}{
		{"$set": map[string]interface{}{"path": "a.b", "value": "hi"}},
	})
	require.NoError(t, err)
	result, err := Apply(doc, ops, nil)
	require.NoError(t, err)
	v, ok := getPath(result, "a.b")
	require.True(t, ok)
	assert.Equal(t, "hi", v)

	ops, err = ParseOps([]map[string]interface{}{{"$unset": map[string]interface{}{"path": "a.b"}}})
	require.NoError(t, err)
	result, err = Apply(result, ops, nil)
	require.NoError(t, err)
	_, ok = getPath(result, "a.b")
	assert.False(t, ok)
}

func TestSetResolvesVariable(t *testing.T) {
	doc := map[string]interface{}{}
	ops, err := ParseOps([]map[string]interface{}{
		{"$set": map[string]interface{}{"path": "name", "value": "$$filename"}},
	})
	require.NoError(t, err)
	result, err := Apply(doc, ops, map[string]interface{}{"filename": "agents.md"})
	require.NoError(t, err)
	v, _ := getPath(result, "name")
	assert.Equal(t, "agents.md", v)
}

func TestTransformEmptyResultUnsetsField(t *testing.T) {
	doc := map[string]interface{}{"tags": ""}
	ops, err := ParseOps([]map[string]interface{}{
		{"$transform": map[string]interface{}{
			"path":  "tags",
			"steps": []map[string]interface{}{},
		}},
	})
	require.NoError(t, err)
	result, err := Apply(doc, ops, nil)
	require.NoError(t, err)
	_, ok := getPath(result, "tags")
	assert.False(t, ok, "empty transform result should unset the field rather than assign empty")
}

func TestRenameWithWildcard(t *testing.T) {
	doc := map[string]interface{}{
		"mcpServers": map[string]interface{}{
			"a": map[string]interface{}{"oldKey": "1"},
			"b": map[string]interface{}{"oldKey": "2"},
		},
	}
	result := renamePath(doc, "mcpServers.*.oldKey", "mcpServers.*.newKey")
	m := result.(map[string]interface{})["mcpServers"].(map[string]interface{})
	assert.Equal(t, "1", m["a"].(map[string]interface{})["newKey"])
	assert.Equal(t, "2", m["b"].(map[string]interface{})["newKey"])
}
