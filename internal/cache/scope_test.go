package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeHashIsStableAndShort(t *testing.T) {
	h1 := ScopeHash("agents/**")
	h2 := ScopeHash("agents/**")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 8)
}

func TestScopeDirNameFullVsSubset(t *testing.T) {
	assert.Equal(t, "_full", ScopeDirName(""))
	assert.Equal(t, "_subset."+ScopeHash("agents/**"), ScopeDirName("agents/**"))
}

func TestPrepareScopeCleansSiblings(t *testing.T) {
	root := t.TempDir()

	fullDir, err := PrepareScope(root, "")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(fullDir, "marker"), []byte("x"), 0o644))

	subsetDir, err := PrepareScope(root, "agents/**")
	require.NoError(t, err)

	siblings, err := Siblings(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Base(subsetDir)}, siblings)

	_, err = os.Stat(fullDir)
	assert.True(t, os.IsNotExist(err), "stale _full scope should have been removed")
}

func TestManagerTempDirReleased(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	d, err := m.TempDir("flow")
	require.NoError(t, err)
	_, err = os.Stat(d)
	require.NoError(t, err)

	require.NoError(t, m.Release())
	_, err = os.Stat(m.Root)
	assert.True(t, os.IsNotExist(err))

	_, err = m.TempDir("flow")
	assert.Error(t, err)
}
