package conflict

import "github.com/opkgdev/opkg/internal/workspaceindex"

// Scope tags whether an install targets the whole package or a resource
// subset (glossary: "Scope").
type Scope string

const (
	ScopeFull   Scope = "full"
	ScopeSubset Scope = "subset"
)

// InstallRecord is the minimal prior-install fact subsumption needs.
type InstallRecord struct {
	PackageName string
	Scope       Scope
}

// CheckSubsumption implements §4.6's subsumption rule: "Before installing
// a resource of a package, check whether the containing package is
// already fully installed. If so, skip as already-covered. Conversely,
// installing a full package supersedes previously installed partial
// resources of the same package; their index entries are removed and
// replaced."
func CheckSubsumption(existing InstallRecord, requested Scope) (alreadyCovered bool, supersedes bool) {
	switch {
	case existing.Scope == ScopeFull && requested == ScopeSubset:
		return true, false
	case existing.Scope == ScopeSubset && requested == ScopeFull:
		return false, true
	default:
		return false, false
	}
}

// ApplySupersede removes a package's prior partial-install index entry
// so a full install can replace it, per the subsumption contract above.
func ApplySupersede(idx *workspaceindex.Index, packageName string) {
	idx.RemovePackage(packageName)
}
