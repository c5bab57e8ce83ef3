// Package manifest defines the per-package manifest document (§3 of the
// specification) and its dependency shape, adapted from kpt's Kptfile/
// Pipeline structs (internal/pipeline/pipeline.go, pkg/api/kptfile) which
// play the analogous role of a package-local, human-editable document
// naming a package and its dependencies.
package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/opkgdev/opkg/internal/errors"
)

// FileName is the manifest's well-known filename inside a package's
// content root.
const FileName = "opkg.yaml"

// Dependency is a manifest dependency entry, §3: mutually constrained
// shape — url marks Git, path alone marks local, otherwise registry.
type Dependency struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Ref     string `yaml:"ref,omitempty"`
	Path    string `yaml:"path,omitempty"`
	Base    string `yaml:"base,omitempty"`
}

// Kind classifies a dependency by which variant it resolves to.
type Kind int

const (
	KindRegistry Kind = iota
	KindGit
	KindLocal
)

// Kind implements the dependency-shape rule from §3.
func (d Dependency) Kind() Kind {
	switch {
	case d.URL != "":
		return KindGit
	case d.Path != "":
		return KindLocal
	default:
		return KindRegistry
	}
}

// Validate requires a name and rejects a ref set without a url. It does
// not check path against url; Kind resolves that (url wins).
func (d Dependency) Validate() error {
	const op errors.Op = "manifest.Dependency.Validate"
	if d.Name == "" {
		return errors.E(op, errors.Validation, fmt.Errorf("dependency missing name"))
	}
	if d.Ref != "" && d.URL == "" {
		return errors.E(op, errors.Validation, fmt.Errorf("dependency %q: ref set without url", d.Name))
	}
	return nil
}

// Manifest is the per-package document: name, version, dependencies, and
// optional metadata/base hint (§3).
type Manifest struct {
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version,omitempty"`
	Base         string            `yaml:"base,omitempty"`
	Dependencies []Dependency      `yaml:"dependencies,omitempty"`
	Metadata     map[string]string `yaml:"metadata,omitempty"`

	// Marketplace, when true, marks this manifest as a catalog of
	// sub-packages handled out-of-band per the glossary definition.
	Marketplace bool `yaml:"marketplace,omitempty"`
}

// Parse decodes a manifest document's bytes.
func Parse(data []byte) (*Manifest, error) {
	const op errors.Op = "manifest.Parse"
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.E(op, errors.Parse, err)
	}
	if m.Name == "" {
		return nil, errors.E(op, errors.Validation, fmt.Errorf("manifest missing required 'name'"))
	}
	for _, dep := range m.Dependencies {
		if err := dep.Validate(); err != nil {
			return nil, errors.E(op, err)
		}
	}
	return &m, nil
}

// Marshal canonically serializes a manifest back to YAML.
func Marshal(m *Manifest) ([]byte, error) {
	const op errors.Op = "manifest.Marshal"
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, errors.E(op, errors.Internal, err)
	}
	return data, nil
}
