package platformdef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
  // a line comment
  "platforms": [
    {
      "name": "cursor",
      "rootDir": ".cursor",
      /* block
         comment */
      "detection": ["**/AGENTS.md"],
      "import": [
        {"from": ["agents/*.md"], "to": "agents/{{name}}.md", "merge": "replace"}
      ]
    }
  ],
  "global": []
}`

func TestParseStripsComments(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	require.Len(t, doc.Platforms, 1)
	assert.Equal(t, "cursor", doc.Platforms[0].Name)
	assert.Equal(t, []string{"**/AGENTS.md"}, doc.Platforms[0].Detection)
}

func TestParseRejectsMissingName(t *testing.T) {
	_, err := Parse([]byte(`{"platforms":[{"rootDir":".x"}]}`))
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	p, ok := doc.ByName("cursor")
	assert.True(t, ok)
	assert.Equal(t, ".cursor", p.RootDir)

	_, ok = doc.ByName("missing")
	assert.False(t, ok)
}

func TestLoadCachedMemoizes(t *testing.T) {
	ClearCache()
	d1, err := LoadCached("path.jsonc", []byte(sampleDoc))
	require.NoError(t, err)
	d2, err := LoadCached("path.jsonc", []byte(`{"platforms":[]}`))
	require.NoError(t, err)
	assert.Same(t, d1, d2)
	ClearCache()
}
