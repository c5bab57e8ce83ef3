package install

import (
	"github.com/opkgdev/opkg/internal/flow"
	"github.com/opkgdev/opkg/internal/platformdef"
)

// probeItem is one flow's prospective write, discovered by running the
// flow engine in dry-run mode so the conflict resolver can see every
// target path and its contributed keys before anything is written
// (§2 "flow-plan -> conflict-arbitrate -> execute").
type probeItem struct {
	Package   string
	Priority  int
	Platform  string
	Source    string
	Base      string
	SourceKey string
	Flow      platformdef.Flow
	Merge     string
	Target    string
	Keys      []string
	Warning   string
	Bytes     []byte
	Err       error
}

// probePackage runs every global and per-platform export flow for one
// package across every requested platform, in dry-run mode.
func probePackage(base, pkgName string, priority int, platforms []platformdef.Platform, global []platformdef.Flow, source string, targetRoot string) []probeItem {
	var items []probeItem
	for _, p := range platforms {
		fctx := flow.Context{
			PackageName: pkgName,
			Priority:    priority,
			Platform:    p.Name,
			Source:      source,
			TargetRoot:  targetRoot,
		}
		flows := make([]platformdef.Flow, 0, len(global)+len(p.Export))
		flows = append(flows, global...)
		flows = append(flows, p.Export...)

		for _, f := range flows {
			outcomes := flow.Run(base, f, fctx, true)
			for _, o := range outcomes {
				if o.Skipped {
					continue
				}
				items = append(items, probeItem{
					Package:   pkgName,
					Priority:  priority,
					Platform:  p.Name,
					Source:    source,
					Base:      base,
					SourceKey: o.SourcePath,
					Flow:      f,
					Merge:     f.Merge,
					Target:    o.TargetPath,
					Keys:      o.Keys,
					Warning:   o.Warning,
					Bytes:     o.Bytes,
					Err:       o.Err,
				})
			}
		}
	}
	return items
}
