package basedetect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgdev/opkg/internal/platformdef"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
}

var platforms = []platformdef.Platform{{Name: "any", Detection: []string{"**/AGENTS.md"}}}

func TestDetectManifestHintWins(t *testing.T) {
	r, err := Detect(t.TempDir(), "pkg/sub", platforms)
	require.NoError(t, err)
	assert.Equal(t, SourceManifest, r.Source)
	assert.Equal(t, "pkg/sub", r.Base)
}

func TestDetectSingleMatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/AGENTS.md")

	r, err := Detect(root, "", platforms)
	require.NoError(t, err)
	assert.Equal(t, SourceSingle, r.Source)
	assert.Equal(t, "pkg", r.Base)
}

func TestDetectNoMatchNoMarketplaceUsesRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md")

	r, err := Detect(root, "", platforms)
	require.NoError(t, err)
	assert.Equal(t, SourceSingle, r.Source)
	assert.Equal(t, ".", r.Base)
}

func TestDetectMarketplace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, marketplaceManifestFile)

	r, err := Detect(root, "", platforms)
	require.NoError(t, err)
	assert.True(t, r.Marketplace)
}

func TestDetectMarketplaceWinsOverAmbiguousCandidates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, marketplaceManifestFile)
	writeFile(t, root, "pkg-a/AGENTS.md")
	writeFile(t, root, "pkg-b/AGENTS.md")

	r, err := Detect(root, "", platforms)
	require.NoError(t, err)
	assert.True(t, r.Marketplace)
	assert.False(t, r.Ambiguous)
}

func TestDetectAmbiguousPicksDeepestNonInteractively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg-a/AGENTS.md")
	writeFile(t, root, "pkg-b/nested/deep/AGENTS.md")

	r, err := Detect(root, "", platforms)
	require.NoError(t, err)
	require.True(t, r.Ambiguous)
	require.Len(t, r.Matches, 2)

	resolved := ResolveAmbiguous(r)
	assert.Equal(t, "pkg-b/nested/deep", resolved.Base)
	assert.Equal(t, SourceUserSelection, resolved.Source)
}
