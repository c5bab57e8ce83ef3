// Package cmdview implements `opkg view <name>`: load a source without
// installing it, detect its base, report its manifest and discovered
// resources, and run the install pipeline's flow-plan and
// conflict-arbitration stages in DryRun mode so the printed plan is the
// same per-target outcome a real `opkg install` would produce.
package cmdview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opkgdev/opkg/internal/basedetect"
	"github.com/opkgdev/opkg/internal/cmdutil"
	"github.com/opkgdev/opkg/internal/config"
	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/install"
	"github.com/opkgdev/opkg/internal/manifest"
	"github.com/opkgdev/opkg/internal/printer"
	"github.com/opkgdev/opkg/internal/resource"
	"github.com/opkgdev/opkg/internal/source"
)

// NewCommand returns the `view <input>` subcommand.
func NewCommand(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <input>",
		Short: "Inspect a package's manifest and resources without installing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}
	return cmd
}

func run(ctx context.Context, input string) error {
	const op errors.Op = "cmdview.run"
	p := printer.FromContextOrDie(ctx)

	cwd, err := os.Getwd()
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	workspaceRoot, err := cmdutil.WorkspaceRoot()
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	doc, err := cmdutil.LoadPlatforms(workspaceRoot)
	if err != nil {
		return errors.E(op, err)
	}
	platforms := cmdutil.SelectPlatforms(doc, config.Platforms())

	rs, err := source.Classify(input, cwd)
	if err != nil {
		return errors.E(op, err)
	}
	loader := cmdutil.NewLoader(config.CacheRoot(), config.RemotePrimary())
	lp, err := loader.Load(ctx, rs)
	if err != nil {
		return errors.E(op, errors.Network, err)
	}

	p.Printf("%s", lp.PackageName)
	if lp.Version != "" {
		p.Printf("@%s", lp.Version)
	}
	p.Printf("\n")
	p.Printf("source: %s\n", lp.Source.Variant)

	if lp.Marketplace {
		p.Printf("marketplace: yes (catalog of sub-packages, handled out-of-band)\n")
		return nil
	}

	baseResult, err := basedetect.Detect(lp.ContentRoot, lp.Manifest.Base, platforms)
	if err != nil {
		return errors.E(op, err)
	}
	if baseResult.Ambiguous {
		p.Warnf("ambiguous base, candidates:")
		for _, c := range baseResult.Matches {
			p.OptPrintf(printer.NewOpt().Indent(2), "%s (matched %s, depth %d)\n", c.Base, c.MatchedPattern, c.Depth)
		}
		return nil
	}
	p.Printf("base: %s (%s)\n", baseResult.Base, baseResult.Source)

	if len(lp.Manifest.Dependencies) > 0 {
		p.Printf("dependencies:\n")
		for _, d := range lp.Manifest.Dependencies {
			p.OptPrintf(printer.NewOpt().Indent(2), "%s %s\n", d.Name, dependencyCoordinate(d))
		}
	}

	assets, err := resource.Discover(filepath.Join(lp.ContentRoot, filepath.FromSlash(baseResult.Base)))
	if err != nil {
		return errors.E(op, err)
	}
	assets = resource.Filter(assets, config.Agents(), config.Skills(), config.Plugins())
	if len(assets) == 0 {
		p.Printf("resources: none\n")
	} else {
		p.Printf("resources:\n")
		for _, a := range assets {
			p.OptPrintf(printer.NewOpt().Indent(2), "%s\t%s\t%s\n", a.Kind, a.Name, a.Path)
		}
	}

	idx, err := cmdutil.LoadIndex(workspaceRoot)
	if err != nil {
		return errors.E(op, err)
	}
	opts := install.Options{
		Input:           input,
		Cwd:             cwd,
		WorkspaceRoot:   workspaceRoot,
		Platforms:       platforms,
		Global:          doc.Global,
		Loader:          loader,
		DryRun:          true,
		ConflictMode:    cmdutil.InstallConflictMode(config.Conflicts()),
		ResourceFilter:  resourceFilterFromConfig(),
		ConflictHandler: cmdutil.ConflictHandler(),
	}
	plan, perr := install.Run(ctx, opts, idx)
	if plan == nil {
		return errors.E(op, perr)
	}
	p.Printf("plan:\n")
	planReport(p, plan)
	if perr != nil && errors.KindOf(perr) != errors.Validation {
		return errors.E(op, perr)
	}
	return nil
}

// resourceFilterFromConfig collapses the --plugins/--agents/--skills
// filters into the single "<kind>:[names]" string used as
// install.Options.ResourceFilter, the same way
// cmdinstall.resourceFilterFromConfig does.
func resourceFilterFromConfig() string {
	switch {
	case len(config.Plugins()) > 0:
		return fmt.Sprintf("plugins:%v", config.Plugins())
	case len(config.Agents()) > 0:
		return fmt.Sprintf("agents:%v", config.Agents())
	case len(config.Skills()) > 0:
		return fmt.Sprintf("skills:%v", config.Skills())
	default:
		return ""
	}
}

// planReport renders a dry-run install.Result as a preview of what
// `opkg install` would do, surfacing the per-target conflict-arbitration
// outcome cmdinstall.report only summarizes for actual losers.
func planReport(p printer.Printer, res *install.Result) {
	for _, name := range res.Installed {
		p.OptPrintf(printer.NewOpt().Indent(2), "would install %s\n", name)
	}
	for _, s := range res.Skipped {
		p.OptPrintf(printer.NewOpt().Indent(2), "would skip %s: %s\n", s.Package, s.Reason)
	}
	for _, w := range res.Warnings {
		p.Warnf("%s", w)
	}
	for _, ab := range res.AmbiguousBases {
		p.Warnf("%s: ambiguous base, candidates:", ab.Package)
		for _, c := range ab.Candidates {
			p.OptPrintf(printer.NewOpt().Indent(2), "%s (matched %s, depth %d)\n", c.Base, c.MatchedPattern, c.Depth)
		}
	}
	for _, f := range res.Failed {
		p.Failf("%s: %s -> %s: %v", f.Package, f.SourceKey, f.Target, f.Err)
	}
	for _, cr := range res.ConflictReports {
		switch {
		case cr.Mergeable:
			p.OptPrintf(printer.NewOpt().Indent(2), "%s: merge\n", cr.Target)
		default:
			p.OptPrintf(printer.NewOpt().Indent(2), "%s: %s wins over %v\n", cr.Target, cr.Winner, cr.Losers)
			for pkg, relocated := range cr.Relocation {
				p.OptPrintf(printer.NewOpt().Indent(4), "%s -> %s\n", pkg, relocated)
			}
		}
	}
}

// dependencyCoordinate renders the relevant coordinate fields for a
// dependency's kind (§3 "Manifest dependency"), for human-facing output.
func dependencyCoordinate(d manifest.Dependency) string {
	switch d.Kind() {
	case manifest.KindGit:
		if d.Ref != "" {
			return d.URL + "#" + d.Ref
		}
		return d.URL
	case manifest.KindLocal:
		return d.Path
	default:
		if d.Version != "" {
			return "@" + d.Version
		}
		return "(any version)"
	}
}
