// Package workspaceindex implements the workspace index & key tracker
// (spec §4.7): a durable, canonically-ordered document mapping
// packageName -> {version, path, files}. It is rewritten whole under a
// file-lock-equivalent discipline (write temp, rename) the same way
// kpt's Kptfile is rewritten by internal/kptfile's update helpers, and
// is decoded/encoded with the teacher's gopkg.in/yaml.v3 for
// human-readable, stable field ordering.
package workspaceindex

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/opkgdev/opkg/internal/errors"
)

// FileName is the index's well-known filename at the workspace root.
const FileName = "opkg-index.yaml"

// TargetMapping is either a bare target path or a merged-target record
// with contributed keys (§3).
type TargetMapping struct {
	Target   string   `yaml:"target"`
	Merge    string   `yaml:"merge,omitempty"`
	Keys     []string `yaml:"keys,omitempty"`
	Platform string   `yaml:"platform,omitempty"`
}

// PackageEntry is one package's record in the index.
type PackageEntry struct {
	Version string                     `yaml:"version"`
	Path    string                     `yaml:"path"`
	Scope   string                     `yaml:"scope,omitempty"`
	Files   map[string][]TargetMapping `yaml:"files"`
}

// Index is the full durable document.
type Index struct {
	Packages map[string]PackageEntry `yaml:"packages"`
}

// Load reads the index at path, tolerating a missing file as an empty
// index (§4.7 "Reads tolerate a missing index").
func Load(path string) (*Index, error) {
	const op errors.Op = "workspaceindex.Load"
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Index{Packages: map[string]PackageEntry{}}, nil
	}
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	var idx Index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, errors.E(op, errors.Parse, err)
	}
	if idx.Packages == nil {
		idx.Packages = map[string]PackageEntry{}
	}
	return &idx, nil
}

// Save writes the index atomically (write temp, then rename), fully
// applied or not visible (§4.7 "A write is either fully applied or not
// visible").
func Save(path string, idx *Index) error {
	const op errors.Op = "workspaceindex.Save"

	data, err := marshalCanonical(idx)
	if err != nil {
		return errors.E(op, errors.Internal, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.E(op, errors.IO, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.E(op, errors.IO, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.E(op, errors.IO, err)
	}
	return nil
}

// marshalCanonical serializes idx with stable field ordering: packages
// sorted by name, source keys sorted, so the document is "canonical-
// ordered" per §6 and safe to diff.
func marshalCanonical(idx *Index) ([]byte, error) {
	names := make([]string, 0, len(idx.Packages))
	for n := range idx.Packages {
		names = append(names, n)
	}
	sort.Strings(names)

	root := yaml.Node{Kind: yaml.MappingNode}
	packagesNode := yaml.Node{Kind: yaml.MappingNode}

	for _, name := range names {
		entry := idx.Packages[name]
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: name}

		entryNode := yaml.Node{Kind: yaml.MappingNode}
		appendScalarField(&entryNode, "version", entry.Version)
		appendScalarField(&entryNode, "path", entry.Path)
		if entry.Scope != "" {
			appendScalarField(&entryNode, "scope", entry.Scope)
		}

		filesNode := yaml.Node{Kind: yaml.MappingNode}
		srcKeys := make([]string, 0, len(entry.Files))
		for k := range entry.Files {
			srcKeys = append(srcKeys, k)
		}
		sort.Strings(srcKeys)
		for _, sk := range srcKeys {
			var mappingsValue yaml.Node
			if err := mappingsValue.Encode(entry.Files[sk]); err != nil {
				return nil, err
			}
			filesNode.Content = append(filesNode.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: sk}, &mappingsValue)
		}
		filesKeyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: "files"}
		entryNode.Content = append(entryNode.Content, filesKeyNode, &filesNode)

		packagesNode.Content = append(packagesNode.Content, keyNode, &entryNode)
	}

	packagesKeyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: "packages"}
	root.Content = append(root.Content, packagesKeyNode, &packagesNode)

	doc := yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{&root}}
	return yaml.Marshal(&doc)
}

func appendScalarField(n *yaml.Node, key, value string) {
	n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &yaml.Node{Kind: yaml.ScalarNode, Value: value})
}
