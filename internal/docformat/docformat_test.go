package docformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, InferFormat("a/b.json"))
	assert.Equal(t, FormatJSONC, InferFormat("a/b.jsonc"))
	assert.Equal(t, FormatYAML, InferFormat("a/b.yaml"))
	assert.Equal(t, FormatYAML, InferFormat("a/b.yml"))
	assert.Equal(t, FormatTOML, InferFormat("a/b.toml"))
	assert.Equal(t, FormatMarkdown, InferFormat("a/b.md"))
	assert.Equal(t, FormatText, InferFormat("a/b.txt"))
}

func TestParseEmptyIsCanonical(t *testing.T) {
	v, err := Parse(nil, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, v)

	fm, err := Parse(nil, FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, Frontmatter{Data: map[string]interface{}{}, Body: ""}, fm)
}

func TestParseJSONCStripsComments(t *testing.T) {
	v, err := Parse([]byte("{\n // comment\n \"a\": 1\n}"), FormatJSONC)
	require.NoError(t, err)
	m := v.(map[string]interface{})
	assert.Equal(t, float64(1), m["a"])
}

func TestParseAndSerializeMarkdownFrontmatter(t *testing.T) {
	data := []byte("---\nname: foo\n---\nbody text\n")
	v, err := Parse(data, FormatMarkdown)
	require.NoError(t, err)
	fm := v.(Frontmatter)
	assert.Equal(t, "foo", fm.Data["name"])
	assert.Equal(t, "body text\n", fm.Body)

	out, err := Serialize(fm, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(out), "name: foo")
	assert.Contains(t, string(out), "body text")
}

func TestParseMarkdownNoFrontmatter(t *testing.T) {
	v, err := Parse([]byte("just text"), FormatMarkdown)
	require.NoError(t, err)
	fm := v.(Frontmatter)
	assert.Empty(t, fm.Data)
	assert.Equal(t, "just text", fm.Body)
}

func TestSerializeStringPassthrough(t *testing.T) {
	out, err := Serialize("raw-string", FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "raw-string", string(out))
}

func TestTOMLRoundTrip(t *testing.T) {
	v, err := Parse([]byte("name = \"x\"\n"), FormatTOML)
	require.NoError(t, err)
	m := v.(map[string]interface{})
	assert.Equal(t, "x", m["name"])

	out, err := Serialize(m, FormatTOML)
	require.NoError(t, err)
	assert.Contains(t, string(out), "name")
}
