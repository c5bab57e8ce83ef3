package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArbitrateDisjointKeysNoConflict(t *testing.T) {
	writers := []Writer{
		{PackageName: "a", Priority: 1, Merge: "deep", Keys: []string{"a.x"}},
		{PackageName: "b", Priority: 2, Merge: "deep", Keys: []string{"b.y"}},
	}
	report := Arbitrate("shared.json", writers)
	assert.True(t, report.Mergeable)
	assert.Empty(t, report.Winner)
}

func TestArbitrateReplaceForcesWinner(t *testing.T) {
	writers := []Writer{
		{PackageName: "a", Priority: 1, Merge: "replace"},
		{PackageName: "b", Priority: 5, Merge: "replace"},
	}
	report := Arbitrate("shared.json", writers)
	assert.False(t, report.Mergeable)
	assert.Equal(t, "b", report.Winner)
	assert.Equal(t, []string{"a"}, report.Losers)
}

func TestArbitrateOverlappingKeysConflict(t *testing.T) {
	writers := []Writer{
		{PackageName: "a", Priority: 3, Merge: "deep", Keys: []string{"shared.x"}},
		{PackageName: "b", Priority: 7, Merge: "deep", Keys: []string{"shared.x"}},
	}
	report := Arbitrate("shared.json", writers)
	assert.False(t, report.Mergeable)
	assert.Equal(t, "b", report.Winner)
}

func TestCheckSubsumption(t *testing.T) {
	covered, supersedes := CheckSubsumption(InstallRecord{PackageName: "x", Scope: ScopeFull}, ScopeSubset)
	assert.True(t, covered)
	assert.False(t, supersedes)

	covered, supersedes = CheckSubsumption(InstallRecord{PackageName: "x", Scope: ScopeSubset}, ScopeFull)
	assert.False(t, covered)
	assert.True(t, supersedes)
}
