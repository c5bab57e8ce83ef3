// Package cmdstatus implements `opkg status`: a read-only summary of
// the workspace index and the platform-definition document it was
// installed against.
package cmdstatus

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opkgdev/opkg/internal/cmdutil"
	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/printer"
)

// NewCommand returns the `status` subcommand.
func NewCommand(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the packages installed in the current workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	return cmd
}

func run(ctx context.Context) error {
	const op errors.Op = "cmdstatus.run"
	p := printer.FromContextOrDie(ctx)

	workspaceRoot, err := cmdutil.WorkspaceRoot()
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	idx, err := cmdutil.LoadIndex(workspaceRoot)
	if err != nil {
		return errors.E(op, err)
	}
	doc, err := cmdutil.LoadPlatforms(workspaceRoot)
	if err != nil {
		return errors.E(op, err)
	}

	p.Printf("workspace: %s\n", workspaceRoot)

	if len(doc.Platforms) == 0 {
		p.Warnf("no platform-definition document found at %s", cmdutil.PlatformsFileName)
	} else {
		names := make([]string, 0, len(doc.Platforms))
		for _, pl := range doc.Platforms {
			names = append(names, pl.Name)
		}
		sort.Strings(names)
		p.Printf("platforms: %v\n", names)
	}

	if len(idx.Packages) == 0 {
		p.Printf("packages: none installed\n")
		return nil
	}

	names := make([]string, 0, len(idx.Packages))
	for name := range idx.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	p.Printf("packages:\n")
	for _, name := range names {
		entry := idx.Packages[name]
		fileCount := 0
		targetCount := 0
		for _, mappings := range entry.Files {
			fileCount++
			targetCount += len(mappings)
		}
		scope := entry.Scope
		if scope == "" {
			scope = "full"
		}
		p.OptPrintf(printer.NewOpt().Indent(2), "%s\t%s\t%s\tscope=%s\tsources=%d\ttargets=%d\n",
			name, entry.Version, entry.Path, scope, fileCount, targetCount)
	}
	return nil
}
