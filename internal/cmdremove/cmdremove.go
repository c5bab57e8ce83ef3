// Package cmdremove implements `opkg remove <resource>`: drop a
// dependency entry from the current directory's manifest, the inverse
// of cmdadd. It edits the manifest only -- it does not touch a
// workspace's installed files; use `opkg uninstall` for that.
package cmdremove

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/manifest"
	"github.com/opkgdev/opkg/internal/printer"
	"github.com/opkgdev/opkg/internal/types"
)

// NewCommand returns the `remove <resource>` subcommand.
func NewCommand(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a dependency from the current package's manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}
	return cmd
}

func run(ctx context.Context, name string) error {
	const op errors.Op = "cmdremove.run"
	p := printer.FromContextOrDie(ctx)

	cwd, err := os.Getwd()
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	if err := removeDependency(cwd, name); err != nil {
		return errors.E(op, err)
	}

	p.Printf("removed %s from %s\n", name, manifest.FileName)
	return nil
}

// removeDependency drops the dependency named name from the manifest in
// dir, in place. Split out from run so the manifest-editing logic can be
// exercised without going through cobra/context plumbing.
func removeDependency(dir, name string) error {
	const op errors.Op = "cmdremove.removeDependency"
	manifestPath := filepath.Join(dir, manifest.FileName)

	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		return errors.E(op, errors.NotFound, fmt.Errorf("no %s in %s", manifest.FileName, dir))
	}
	if err != nil {
		return errors.E(op, types.UniquePath(manifestPath), errors.IO, err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return errors.E(op, err)
	}

	kept := m.Dependencies[:0]
	removed := false
	for _, d := range m.Dependencies {
		if d.Name == name {
			removed = true
			continue
		}
		kept = append(kept, d)
	}
	if !removed {
		return errors.E(op, errors.NotFound, fmt.Errorf("no dependency named %q in %s", name, manifest.FileName))
	}
	m.Dependencies = kept

	out, err := manifest.Marshal(m)
	if err != nil {
		return errors.E(op, err)
	}
	if err := os.WriteFile(manifestPath, out, 0o644); err != nil {
		return errors.E(op, types.UniquePath(manifestPath), errors.IO, err)
	}
	return nil
}
