// Package cmdsave implements `opkg save`, reversing the install flows
// for one (or every) workspace-indexed package back onto its content
// root, per the save engine's semantic-equivalence rule (internal/save).
package cmdsave

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opkgdev/opkg/internal/cmdutil"
	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/printer"
	"github.com/opkgdev/opkg/internal/save"
)

// NewCommand returns the `save [name]` subcommand. With no name, every
// package recorded in the workspace index is saved.
func NewCommand(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [name]",
		Short: "Write a package's workspace contributions back to its content root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args)
		},
	}
	return cmd
}

func run(ctx context.Context, args []string) error {
	const op errors.Op = "cmdsave.run"
	p := printer.FromContextOrDie(ctx)

	workspaceRoot, err := cmdutil.WorkspaceRoot()
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	idx, err := cmdutil.LoadIndex(workspaceRoot)
	if err != nil {
		return errors.E(op, err)
	}
	platforms, err := cmdutil.LoadPlatforms(workspaceRoot)
	if err != nil {
		return errors.E(op, err)
	}

	names := args
	if len(names) == 0 {
		for name := range idx.Packages {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	if len(names) == 0 {
		p.Printf("nothing to save: no packages recorded in the workspace index\n")
		return nil
	}

	cache := save.NewHashCache()
	var failures int
	for _, name := range names {
		entry, ok := idx.Get(name)
		if !ok {
			p.Failf("%s: not recorded in the workspace index", name)
			failures++
			continue
		}
		res, serr := save.Run(idx, workspaceRoot, entry.Path, name, platforms, cache)
		if serr != nil {
			p.Failf("%s: %v", name, serr)
			failures++
			continue
		}
		for _, f := range res.Files {
			switch {
			case f.Err != nil:
				p.Failf("%s: %s: %v", name, f.SourceKey, f.Err)
			case f.Written:
				p.Printf("%s: wrote %s\n", name, f.SourceKey)
			default:
				p.Skipf("%s: %s unchanged", name, f.SourceKey)
			}
		}
	}
	if failures > 0 {
		return errors.E(op, errors.Internal, errSomeSavesFailed)
	}
	return nil
}

var errSomeSavesFailed = saveFailureErr{}

type saveFailureErr struct{}

func (saveFailureErr) Error() string { return "one or more packages failed to save" }
