// Package conflict implements the conflict & priority resolver (spec
// §4.6): per-target writer-set arbitration, namespace relocation, and
// subsumption between full and partial installs.
package conflict

import "sort"

// Writer is one prospective writer of a target path.
type Writer struct {
	PackageName string
	Priority    int // higher wins; install order or explicit manifest priority
	Merge       string
	Keys        []string // structured keys this writer would contribute
}

// Report records the outcome of arbitrating one target path.
type Report struct {
	Target     string
	Mergeable  bool
	Winner     string
	Losers     []string
	Relocation map[string]string // losing package name -> relocated path
}

// Arbitrate decides, for a single target path, which writer(s) commit
// and which lose, per §4.6:
//
//	"If all writers declare compatible merge (not replace) and
//	contribute disjoint key sets, no conflict is reported. Otherwise
//	the highest-priority writer is chosen and others are recorded as
//	losers."
func Arbitrate(target string, writers []Writer) Report {
	if len(writers) <= 1 {
		w := ""
		if len(writers) == 1 {
			w = writers[0].PackageName
		}
		return Report{Target: target, Mergeable: true, Winner: w}
	}

	if allMergeableAndDisjoint(writers) {
		return Report{Target: target, Mergeable: true}
	}

	sorted := make([]Writer, len(writers))
	copy(sorted, writers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	losers := make([]string, 0, len(sorted)-1)
	for _, w := range sorted[1:] {
		losers = append(losers, w.PackageName)
	}
	return Report{Target: target, Mergeable: false, Winner: sorted[0].PackageName, Losers: losers}
}

func allMergeableAndDisjoint(writers []Writer) bool {
	seen := map[string]string{}
	for _, w := range writers {
		if w.Merge == "" || w.Merge == "replace" {
			return false
		}
		for _, k := range w.Keys {
			if owner, ok := seen[k]; ok && owner != w.PackageName {
				return false
			}
			seen[k] = w.PackageName
		}
	}
	return true
}

// Relocate builds the relocated path for a losing package's file under
// a per-package namespace directory, and records it for uninstall to
// reverse (§4.6 "Namespace relocation").
func Relocate(report *Report, target, packageName string) string {
	if report.Relocation == nil {
		report.Relocation = map[string]string{}
	}
	relocated := namespaceDir(packageName) + "/" + target
	report.Relocation[packageName] = relocated
	return relocated
}

func namespaceDir(packageName string) string {
	return "._opkg_" + packageName
}
