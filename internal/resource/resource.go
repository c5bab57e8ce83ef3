// Package resource implements typed resource discovery (spec §3
// "Resource"): scanning a package under its detected base for the
// named sub-asset kinds — agent, skill, rule, command, hook, MCP-server
// entry — so --plugins/--agents/--skills filters and the save/uninstall
// engines can operate at resource granularity instead of whole-package.
package resource

import (
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/opkgdev/opkg/internal/types"
)

// Asset is one discovered resource file under a package's base.
type Asset struct {
	Kind types.ResourceKind
	Path string // relative to base
	Name string // derived identifier, e.g. filename stem
}

// kindGlobs are the conventional detection globs for each resource
// kind, mirroring the universal-format layout a package author would
// use before any platform flow runs (glossary: "Universal format").
var kindGlobs = map[types.ResourceKind][]string{
	types.ResourceAgent:     {"agents/*.md", "agents/**/*.md"},
	types.ResourceSkill:     {"skills/*/SKILL.md", "skills/**/SKILL.md"},
	types.ResourceRule:      {"rules/*.md", "rules/**/*.md"},
	types.ResourceCommand:   {"commands/*.md", "commands/**/*.md"},
	types.ResourceHook:      {"hooks/*.json", "hooks/**/*.json"},
	types.ResourceMCPServer: {"mcp/*.json", "mcp.json", "mcp.jsonc"},
}

// Discover scans base for every resource asset across all kinds.
func Discover(base string) ([]Asset, error) {
	fsys := os.DirFS(base)
	var out []Asset
	seen := map[string]bool{}

	for kind, globs := range kindGlobs {
		for _, g := range globs {
			matches, err := doublestar.Glob(fsys, g)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				if seen[m] {
					continue
				}
				if isDir(fsys, m) {
					continue
				}
				seen[m] = true
				out = append(out, Asset{Kind: kind, Path: m, Name: deriveName(m)})
			}
		}
	}
	return out, nil
}

// Filter narrows assets by the CLI's --plugins/--agents/--skills name
// filters (empty slices mean "no filter"). No resource kind is "plugin",
// so a name given through --plugins matches no asset.
func Filter(assets []Asset, agents, skills, plugins []string) []Asset {
	if len(agents) == 0 && len(skills) == 0 && len(plugins) == 0 {
		return assets
	}
	wanted := map[string]bool{}
	for _, n := range agents {
		wanted["agent:"+n] = true
	}
	for _, n := range skills {
		wanted["skill:"+n] = true
	}
	for _, n := range plugins {
		wanted["plugin:"+n] = true
	}

	var out []Asset
	for _, a := range assets {
		if wanted[string(a.Kind)+":"+a.Name] {
			out = append(out, a)
		}
	}
	return out
}

func deriveName(relPath string) string {
	base := path.Base(relPath)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "SKILL" {
		// skills/<name>/SKILL.md -> <name>
		dir := path.Dir(relPath)
		return path.Base(dir)
	}
	return stem
}

func isDir(fsys fs.FS, p string) bool {
	info, err := fs.Stat(fsys, p)
	return err == nil && info.IsDir()
}
