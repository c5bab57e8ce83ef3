// Package cmdinstall implements `opkg install`, wiring the options
// gathered by cmdroot's persistent flags into the install pipeline
// (internal/install), the way kpt's internal/cmdget.Runner adapts
// cobra args into a get.Command and runs it to completion.
package cmdinstall

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opkgdev/opkg/internal/cache"
	"github.com/opkgdev/opkg/internal/cmdutil"
	"github.com/opkgdev/opkg/internal/config"
	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/install"
	"github.com/opkgdev/opkg/internal/printer"
)

// NewCommand returns the `install [input]` subcommand.
func NewCommand(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [input]",
		Short: "Install a package into the workspace for one or more target platforms",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "."
			if len(args) == 1 {
				input = args[0]
			}
			return run(cmd.Context(), input)
		},
	}
	return cmd
}

func run(ctx context.Context, input string) error {
	const op errors.Op = "cmdinstall.run"
	p := printer.FromContextOrDie(ctx)

	workspaceRoot, err := cmdutil.WorkspaceRoot()
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return errors.E(op, errors.IO, err)
	}

	doc, err := cmdutil.LoadPlatforms(workspaceRoot)
	if err != nil {
		return errors.E(op, err)
	}
	platforms := cmdutil.SelectPlatforms(doc, config.Platforms())

	idx, err := cmdutil.LoadIndex(workspaceRoot)
	if err != nil {
		return errors.E(op, err)
	}

	tmp, err := cache.NewManager()
	if err != nil {
		return errors.E(op, err)
	}
	defer tmp.Release()

	loader := cmdutil.NewLoader(config.CacheRoot(), config.RemotePrimary())

	opts := install.Options{
		Input:           input,
		Cwd:             cwd,
		WorkspaceRoot:   workspaceRoot,
		Platforms:       platforms,
		Global:          doc.Global,
		Loader:          loader,
		DryRun:          config.DryRun(),
		Force:           config.Force(),
		ConflictMode:    cmdutil.InstallConflictMode(config.Conflicts()),
		ResourceFilter:  resourceFilterFromConfig(),
		ConflictHandler: cmdutil.ConflictHandler(),
	}

	res, rerr := install.Run(ctx, opts, idx)
	if res != nil {
		report(p, res)
	}
	if rerr != nil {
		if errors.KindOf(rerr) == errors.Cancelled {
			return nil
		}
		return errors.E(op, rerr)
	}

	if !opts.DryRun {
		if err := cmdutil.SaveIndex(workspaceRoot, idx); err != nil {
			return errors.E(op, err)
		}
	}
	return nil
}

// resourceFilterFromConfig collapses the --plugins/--agents/--skills
// filters into the single "<kind>:[names]" string used as
// install.Options.ResourceFilter, for cache-scope hashing purposes
// (§4.10); it is a key, not a glob pattern. Validation that
// these filters aren't combined ambiguously already ran in
// config.ValidateResourceFilters during PersistentPreRunE.
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

func report(p printer.Printer, res *install.Result) {
	if res.Marketplace {
		p.Printf("%s is a marketplace source; install its sub-packages individually\n", res.MarketplacePackage)
		return
	}
	for _, name := range res.Installed {
		p.Printf("installed %s\n", name)
	}
	for _, s := range res.Skipped {
		p.Skipf("%s: %s", s.Package, s.Reason)
	}
	for _, w := range res.Warnings {
		p.Warnf("%s", w)
	}
	for _, ab := range res.AmbiguousBases {
		p.Failf("%s: ambiguous base, candidates:", ab.Package)
		for _, c := range ab.Candidates {
			p.OptPrintf(printer.NewOpt().Indent(2), "%s (matched %s, depth %d)\n", c.Base, c.MatchedPattern, c.Depth)
		}
	}
	for _, f := range res.Failed {
		p.Failf("%s: %s -> %s: %v", f.Package, f.SourceKey, f.Target, f.Err)
	}
	for _, cr := range res.ConflictReports {
		if len(cr.Losers) == 0 {
			continue
		}
		p.Warnf("%s: %s won over %v", cr.Target, cr.Winner, cr.Losers)
	}
}
