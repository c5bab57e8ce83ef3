// Package install implements the top-level install pipeline (spec §2):
// input -> classify -> source-load -> base-detect -> dependency-resolve
// -> (per platform) flow-plan -> conflict-arbitrate -> execute ->
// index-update -> report. It is the glue between the source resolver,
// dependency graph, base detector, flow engine, conflict resolver, and
// workspace index, mirroring the way kpt's internal/cmdget.Runner.runE
// sequences fetch -> merge -> write for a single `kpt pkg get`.
package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/opkgdev/opkg/internal/basedetect"
	"github.com/opkgdev/opkg/internal/cache"
	"github.com/opkgdev/opkg/internal/conflict"
	"github.com/opkgdev/opkg/internal/depgraph"
	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/flow"
	"github.com/opkgdev/opkg/internal/logging"
	"github.com/opkgdev/opkg/internal/platformdef"
	"github.com/opkgdev/opkg/internal/source"
	"github.com/opkgdev/opkg/internal/workspaceindex"
)

// ConflictMode mirrors the CLI's --conflicts option (spec §6).
type ConflictMode string

const (
	ConflictKeepBoth  ConflictMode = "keep-both"
	ConflictOverwrite ConflictMode = "overwrite"
	ConflictSkip      ConflictMode = "skip"
	ConflictAsk       ConflictMode = "ask"
)

// Options configures one install run.
type Options struct {
	Input         string
	Cwd           string
	WorkspaceRoot string

	Platforms []platformdef.Platform
	Global    []platformdef.Flow

	Loader *source.Loader

	DryRun       bool
	Force        bool
	ConflictMode ConflictMode

	// ResourceFilter, when non-empty, marks this install's scope as
	// "subset" (glossary: "Scope") for subsumption and the index entry,
	// and is the pattern the cache manager hashes for `_subset.<hash>`
	// partitioning. It does not narrow which flows run: every export flow
	// of each planned package is still probed and executed.
	ResourceFilter string

	ConflictHandler depgraph.ConflictHandler

	// AskConflict is consulted once per losing write when ConflictMode is
	// ConflictAsk: it reports whether the loser should overwrite the
	// winner anyway. A nil AskConflict degrades Ask to Skip.
	AskConflict func(target, losingPackage, winningPackage string) bool
}

// SkipRecord explains why a package was skipped entirely.
type SkipRecord struct {
	Package string
	Reason  string
}

// FailedFlow records a per-flow failure isolated from its siblings
// (§7 "parse inside a single flow: isolate to that flow").
type FailedFlow struct {
	Package   string
	SourceKey string
	Target    string
	Err       error
}

// AmbiguousBase is reported when a package's base couldn't be uniquely
// detected and the caller didn't pass Force (§4.3 "the caller decides").
type AmbiguousBase struct {
	Package    string
	Candidates []basedetect.Candidate
}

// planned is one package queued for flow-planning, after base detection
// and subsumption have been resolved.
type planned struct {
	name        string
	priority    int
	contentRoot string
	base        string
	sourceKind  string
}

// Result is the install pipeline's report (§2 "report").
type Result struct {
	Installed          []string
	Skipped            []SkipRecord
	Failed             []FailedFlow
	ConflictReports    []conflict.Report
	AmbiguousBases     []AmbiguousBase
	Warnings           []string
	Marketplace        bool
	MarketplacePackage string

	// ScopeCacheDir is the prepared conversion-cache directory for this
	// install's scope (§4.10), empty for sources with no persisted
	// package-level cache (local paths).
	ScopeCacheDir string
}

// Run executes the full install pipeline against idx, mutating it (and
// the workspace's files) in place. idx should be the already-loaded
// workspace index; the caller is responsible for persisting it via
// workspaceindex.Save after Run returns.
func Run(ctx context.Context, opts Options, idx *workspaceindex.Index) (*Result, error) {
	const op errors.Op = "install.Run"

	rs, err := source.Classify(opts.Input, opts.Cwd)
	if err != nil {
		return nil, errors.E(op, err)
	}
	root, err := opts.Loader.Load(ctx, rs)
	if err != nil {
		return nil, errors.E(op, errors.Network, err)
	}

	// Scope cache partitioning (§4.10): a git/registry-backed package
	// gets its conversion cache isolated under _full/ or
	// _subset.<hash>/, with every sibling scope dir cleaned first.
	log := logging.FromContext(ctx).WithName("install")
	var scopeCacheDir string
	if root.CacheDir != "" {
		scopeCacheDir, err = cache.PrepareScope(root.CacheDir, opts.ResourceFilter)
		if err != nil {
			return nil, errors.E(op, err)
		}
		log.V(1).Info("prepared scope cache", "dir", scopeCacheDir, "package", root.PackageName)
	}

	baseResult, err := basedetect.Detect(root.ContentRoot, root.Manifest.Base, opts.Platforms)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if baseResult.Marketplace {
		return &Result{Marketplace: true, MarketplacePackage: root.PackageName, ScopeCacheDir: scopeCacheDir}, nil
	}
	res := &Result{ScopeCacheDir: scopeCacheDir}
	if baseResult.Ambiguous {
		if !opts.Force {
			res.AmbiguousBases = append(res.AmbiguousBases, AmbiguousBase{Package: root.PackageName, Candidates: baseResult.Matches})
			return res, errors.E(op, errors.Validation, fmt.Errorf("ambiguous base for %q: pass --force to auto-select the deepest match", root.PackageName))
		}
		baseResult = basedetect.ResolveAmbiguous(baseResult)
	}

	fetcher := newManifestFetcher(opts.Loader, opts.Cwd)

	depRes, derr := depgraph.Resolve(ctx, root.Manifest.Dependencies, root.PackageName, fetcher, opts.ConflictHandler)
	if derr != nil {
		if errors.KindOf(derr) != errors.Conflict {
			return nil, errors.E(op, derr)
		}
		return res, errors.E(op, derr)
	}

	// Process order: dependencies leaves-first, root installed last so
	// it carries the highest priority (§4.6 "priority ... install order").
	order := append([]string{}, depRes.InstallOrder...)
	order = append(order, root.PackageName)

	var pkgs []planned
	for i, name := range order {
		priority := i + 1
		if name == root.PackageName {
			pkgs = append(pkgs, planned{name, priority, root.ContentRoot, baseResult.Base, string(root.Source.Variant)})
			continue
		}
		lp, ok := fetcher.Get(name)
		if !ok {
			res.Skipped = append(res.Skipped, SkipRecord{Package: name, Reason: "manifest had no loadable content"})
			continue
		}
		scope := conflict.ScopeFull
		if opts.ResourceFilter != "" {
			scope = conflict.ScopeSubset
		}
		if existing, ok := idx.Get(name); ok {
			covered, supersedes := conflict.CheckSubsumption(conflict.InstallRecord{PackageName: name, Scope: conflict.Scope(existing.Scope)}, scope)
			if covered {
				res.Skipped = append(res.Skipped, SkipRecord{Package: name, Reason: "already-covered"})
				continue
			}
			if supersedes {
				conflict.ApplySupersede(idx, name)
			}
		}

		depBase, berr := basedetect.Detect(lp.ContentRoot, lp.Manifest.Base, opts.Platforms)
		if berr != nil {
			res.Skipped = append(res.Skipped, SkipRecord{Package: name, Reason: berr.Error()})
			continue
		}
		if depBase.Marketplace {
			res.Skipped = append(res.Skipped, SkipRecord{Package: name, Reason: "marketplace source, handled out-of-band"})
			continue
		}
		if depBase.Ambiguous {
			if !opts.Force {
				res.AmbiguousBases = append(res.AmbiguousBases, AmbiguousBase{Package: name, Candidates: depBase.Matches})
				res.Skipped = append(res.Skipped, SkipRecord{Package: name, Reason: "ambiguous base"})
				continue
			}
			depBase = basedetect.ResolveAmbiguous(depBase)
		}
		pkgs = append(pkgs, planned{name, priority, lp.ContentRoot, depBase.Base, string(lp.Source.Variant)})
	}

	// Flow-plan: probe every package's prospective writes (dry-run).
	var probes []probeItem
	for _, p := range pkgs {
		items := probePackage(filepath.Join(p.contentRoot, filepath.FromSlash(p.base)), p.name, p.priority, opts.Platforms, opts.Global, p.sourceKind, opts.WorkspaceRoot)
		probes = append(probes, items...)
	}

	// Conflict-arbitrate: group probes by target path.
	byTarget := map[string][]probeItem{}
	for _, pr := range probes {
		if pr.Err != nil || pr.Target == "" {
			continue
		}
		if pr.Warning != "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", pr.Package, pr.Warning))
		}
		byTarget[pr.Target] = append(byTarget[pr.Target], pr)
	}

	reports := map[string]conflict.Report{}
	targets := make([]string, 0, len(byTarget))
	for t := range byTarget {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	for _, t := range targets {
		items := byTarget[t]
		writers := make([]conflict.Writer, 0, len(items))
		for _, it := range items {
			writers = append(writers, conflict.Writer{PackageName: it.Package, Priority: it.Priority, Merge: it.Merge, Keys: it.Keys})
		}
		report := conflict.Arbitrate(t, writers)
		reports[t] = report
		res.ConflictReports = append(res.ConflictReports, report)
		if len(report.Losers) > 0 {
			log.V(1).Info("arbitrated conflicting writers", "target", t, "winner", report.Winner, "losers", report.Losers)
		}
	}

	// Execute: writers ordered priority-ascending so the highest-
	// priority package's write lands last (§5 ordering guarantee, here
	// applied in reverse since a later deep-merge write does not
	// destroy an earlier one — only scalar overlaps are arbitrated).
	sort.SliceStable(probes, func(i, j int) bool { return probes[i].Priority < probes[j].Priority })

	contributed := map[string]map[string][]workspaceindex.TargetMapping{} // package -> sourceKey -> mappings

	for _, pr := range probes {
		if pr.Err != nil {
			log.V(1).Info("flow failed, isolating to this flow", "package", pr.Package, "sourceKey", pr.SourceKey, "err", pr.Err.Error())
			res.Failed = append(res.Failed, FailedFlow{Package: pr.Package, SourceKey: pr.SourceKey, Target: pr.Target, Err: pr.Err})
			continue
		}
		if pr.Target == "" {
			continue
		}
		report := reports[pr.Target]

		execTarget := pr.Target
		relocated := false
		if !report.Mergeable && report.Winner != pr.Package {
			switch opts.ConflictMode {
			case ConflictKeepBoth:
				execTarget = conflict.Relocate(&report, pr.Target, pr.Package)
				reports[pr.Target] = report
				relocated = true
			case ConflictAsk:
				if opts.AskConflict == nil || !opts.AskConflict(pr.Target, pr.Package, report.Winner) {
					res.Warnings = append(res.Warnings, fmt.Sprintf("%s: skipped %s (lost conflict to %s)", pr.Package, pr.Target, report.Winner))
					continue
				}
			default:
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: skipped %s (lost conflict to %s)", pr.Package, pr.Target, report.Winner))
				continue
			}
		}

		var outcome flow.Outcome
		if relocated {
			outcome = writeRelocated(opts.WorkspaceRoot, execTarget, pr, opts.DryRun)
		} else {
			fctx := flow.Context{PackageName: pr.Package, Priority: pr.Priority, Platform: pr.Platform, Source: pr.Source, TargetRoot: opts.WorkspaceRoot}
			outcome = flow.RunAt(pr.Base, pr.SourceKey, execTarget, pr.Flow, fctx, opts.DryRun)
		}
		if outcome.Err != nil {
			res.Failed = append(res.Failed, FailedFlow{Package: pr.Package, SourceKey: pr.SourceKey, Target: execTarget, Err: outcome.Err})
			continue
		}

		perPkg, ok := contributed[pr.Package]
		if !ok {
			perPkg = map[string][]workspaceindex.TargetMapping{}
			contributed[pr.Package] = perPkg
		}
		perPkg[pr.SourceKey] = append(perPkg[pr.SourceKey], workspaceindex.TargetMapping{
			Target:   execTarget,
			Merge:    pr.Merge,
			Keys:     outcome.Keys,
			Platform: pr.Platform,
		})
	}

	for _, p := range pkgs {
		files, ok := contributed[p.name]
		if !ok {
			continue
		}
		scope := string(conflict.ScopeFull)
		if opts.ResourceFilter != "" {
			scope = string(conflict.ScopeSubset)
		}
		idx.SetPackage(p.name, workspaceindex.PackageEntry{
			Version: versionFor(p, root),
			Path:    p.contentRoot,
			Scope:   scope,
			Files:   files,
		})
		res.Installed = append(res.Installed, p.name)
	}

	return res, nil
}

func versionFor(p planned, root *source.LoadedPackage) string {
	if p.name == root.PackageName {
		return root.Version
	}
	return ""
}

func writeRelocated(workspaceRoot, target string, pr probeItem, dryRun bool) flow.Outcome {
	if dryRun {
		return flow.Outcome{SourcePath: pr.SourceKey, TargetPath: target, Keys: pr.Keys}
	}
	full := filepath.Join(workspaceRoot, filepath.FromSlash(target))
	if err := writeAtomicFile(full, pr.Bytes); err != nil {
		return flow.Outcome{SourcePath: pr.SourceKey, Err: errors.E(errors.Op("install.writeRelocated"), errors.IO, err)}
	}
	return flow.Outcome{SourcePath: pr.SourceKey, TargetPath: target, Keys: pr.Keys}
}

// writeAtomicFile writes data to dest via write-temp-then-rename, the
// same discipline flow.runOne and workspaceindex.Save use for every
// other durable write in this codebase (§4.7/§4.4 "fully applied or not
// visible").
func writeAtomicFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".opkg-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}
