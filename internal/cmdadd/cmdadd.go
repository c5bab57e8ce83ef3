// Package cmdadd implements `opkg add <input>`: classify input the same
// way the install pipeline does, and upsert the resulting coordinate as
// a dependency entry in the current directory's manifest (opkg.yaml),
// the package-authoring counterpart to `install` (which targets an
// existing dependency at a workspace, not a manifest).
package cmdadd

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/manifest"
	"github.com/opkgdev/opkg/internal/printer"
	"github.com/opkgdev/opkg/internal/source"
	"github.com/opkgdev/opkg/internal/types"
)

// NewCommand returns the `add <input>` subcommand.
func NewCommand(ctx context.Context) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "add <input>",
		Short: "Add a dependency to the current package's manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], version)
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "pin a registry dependency's version constraint")
	return cmd
}

func run(ctx context.Context, input, version string) error {
	const op errors.Op = "cmdadd.run"
	p := printer.FromContextOrDie(ctx)

	cwd, err := os.Getwd()
	if err != nil {
		return errors.E(op, errors.IO, err)
	}

	rs, err := source.Classify(input, cwd)
	if err != nil {
		return errors.E(op, err)
	}
	dep, err := dependencyFor(rs, version)
	if err != nil {
		return errors.E(op, err)
	}

	manifestPath := filepath.Join(cwd, manifest.FileName)
	m, err := loadOrInitManifest(manifestPath, cwd)
	if err != nil {
		return errors.E(op, err)
	}

	upserted := false
	for i, d := range m.Dependencies {
		if d.Name == dep.Name {
			m.Dependencies[i] = dep
			upserted = true
			break
		}
	}
	if !upserted {
		m.Dependencies = append(m.Dependencies, dep)
	}

	if err := dep.Validate(); err != nil {
		return errors.E(op, err)
	}

	data, err := manifest.Marshal(m)
	if err != nil {
		return errors.E(op, err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return errors.E(op, types.UniquePath(manifestPath), errors.IO, err)
	}

	p.Printf("added %s to %s\n", dep.Name, manifest.FileName)
	return nil
}

func loadOrInitManifest(path, cwd string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &manifest.Manifest{Name: filepath.Base(cwd)}, nil
	}
	if err != nil {
		return nil, err
	}
	return manifest.Parse(data)
}

// dependencyFor maps a classified source back onto the manifest
// dependency shape of §3: url marks Git, path alone marks local,
// otherwise registry.
func dependencyFor(rs source.ResolvedSource, version string) (manifest.Dependency, error) {
	switch rs.Variant {
	case types.SourceGit:
		return manifest.Dependency{
			Name: dependencyNameFromGitURL(rs.GitURL),
			URL:  rs.GitURL,
			Ref:  rs.GitRef,
			Path: rs.GitSubdir,
		}, nil
	case types.SourceLocalPath:
		return manifest.Dependency{
			Name: filepath.Base(rs.LocalPath),
			Path: rs.LocalPath,
		}, nil
	default:
		v := rs.RegistryVersion
		if version != "" {
			v = version
		}
		return manifest.Dependency{
			Name:    rs.RegistryName,
			Version: v,
		}, nil
	}
}

func dependencyNameFromGitURL(url string) string {
	return strings.TrimSuffix(filepath.Base(url), ".git")
}
