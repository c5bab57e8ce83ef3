// Package cmduninstall implements `opkg uninstall`, driving the
// uninstall engine (internal/uninstall) over a package named on the
// command line, or listing every installed package when --list is set.
package cmduninstall

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opkgdev/opkg/internal/cmdutil"
	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/printer"
	"github.com/opkgdev/opkg/internal/uninstall"
)

// NewCommand returns the `uninstall <name> | --list` subcommand.
func NewCommand(ctx context.Context) *cobra.Command {
	var list bool
	var keys []string

	cmd := &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Remove exactly the keys a package contributed to the workspace",
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.MaximumNArgs(0)(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return runList(cmd.Context())
			}
			return run(cmd.Context(), args[0], keys)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list every package installed in the workspace instead of uninstalling")
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "uninstall only these source keys (selective uninstall), default: the whole package")
	return cmd
}

func runList(ctx context.Context) error {
	const op errors.Op = "cmduninstall.runList"
	p := printer.FromContextOrDie(ctx)

	workspaceRoot, err := cmdutil.WorkspaceRoot()
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	idx, err := cmdutil.LoadIndex(workspaceRoot)
	if err != nil {
		return errors.E(op, err)
	}
	names := make([]string, 0, len(idx.Packages))
	for name := range idx.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := idx.Packages[name]
		p.Printf("%s\t%s\t%s\n", name, entry.Version, entry.Path)
	}
	return nil
}

func run(ctx context.Context, name string, keys []string) error {
	const op errors.Op = "cmduninstall.run"
	p := printer.FromContextOrDie(ctx)

	workspaceRoot, err := cmdutil.WorkspaceRoot()
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	idx, err := cmdutil.LoadIndex(workspaceRoot)
	if err != nil {
		return errors.E(op, err)
	}

	// §4.9 "The workspace index is updated first; on failure, restore
	// from the prior snapshot" -- snapshot the one entry we're about to
	// mutate so a later failure (before Save) can be reported cleanly.
	snapshot, hadEntry := idx.Get(name)

	preserved := preservedDirs(workspaceRoot)
	res, rerr := uninstall.Run(idx, workspaceRoot, name, keys, preserved)
	if rerr != nil {
		if hadEntry {
			idx.SetPackage(name, snapshot)
		}
		return errors.E(op, rerr)
	}

	for _, t := range res.Targets {
		switch {
		case t.Deleted:
			p.Printf("removed %s\n", t.Target)
		case len(t.StillOwnedBy) > 0:
			p.Printf("removed %s's contribution to %s (still owned by %v)\n", name, t.Target, t.StillOwnedBy)
		default:
			p.Printf("updated %s\n", t.Target)
		}
	}

	return cmdutil.SaveIndex(workspaceRoot, idx)
}

// preservedDirs lists the workspace-relative platform root directories
// that must survive empty-directory cleanup (§4.9 step "removing empty
// directories except those in a preserved set").
func preservedDirs(workspaceRoot string) []string {
	doc, err := cmdutil.LoadPlatforms(workspaceRoot)
	if err != nil {
		return nil
	}
	var out []string
	for _, p := range doc.Platforms {
		if p.RootDir == "" {
			continue
		}
		out = append(out, filepath.Join(workspaceRoot, filepath.FromSlash(p.RootDir)))
	}
	return out
}
