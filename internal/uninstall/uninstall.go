// Package uninstall implements the uninstall engine (spec §4.9):
// precise key-level removal of a package's contributions from the
// workspace, reversing exactly what its index entry recorded, the way
// kpt's internal/fnruntime/runtimeutil cleans up a pipeline's generated
// outputs by tracking provenance rather than deleting whole directories.
package uninstall

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opkgdev/opkg/internal/docformat"
	"github.com/opkgdev/opkg/internal/docmerge"
	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/mappipeline"
	"github.com/opkgdev/opkg/internal/workspaceindex"
)

// TargetOutcome records what happened to one target path during an
// uninstall.
type TargetOutcome struct {
	Target       string
	SourceKey    string
	Deleted      bool // the file was removed entirely
	KeysRemoved  []string
	StillOwnedBy []string // other packages that still own this target
}

// Result is the full outcome of one Run call.
type Result struct {
	Targets []TargetOutcome
}

// Run removes packageName's contributions to workspaceRoot, per the
// entries recorded in idx. If sourceKeys is non-empty, only entries
// whose source key is in that set are processed (§4.9 "optionally a
// subset of source keys for selective uninstall"). preservedDirs names
// platform root directories (absolute paths) that must survive even
// when they become empty.
func Run(idx *workspaceindex.Index, workspaceRoot, packageName string, sourceKeys []string, preservedDirs []string) (*Result, error) {
	const op errors.Op = "uninstall.Run"

	entry, ok := idx.Get(packageName)
	if !ok {
		return nil, errors.E(op, errors.NotFound, packageNotFoundErr(packageName))
	}

	wantKey := func(string) bool { return true }
	if len(sourceKeys) > 0 {
		set := map[string]bool{}
		for _, k := range sourceKeys {
			set[k] = true
		}
		wantKey = func(k string) bool { return set[k] }
	}

	res := &Result{}
	touchedDirs := map[string]bool{}

	sourceKeyList := make([]string, 0, len(entry.Files))
	for sk := range entry.Files {
		sourceKeyList = append(sourceKeyList, sk)
	}
	sort.Strings(sourceKeyList)

	for _, sk := range sourceKeyList {
		if !wantKey(sk) {
			continue
		}
		for _, mapping := range entry.Files[sk] {
			out, err := removeOneTarget(idx, workspaceRoot, packageName, sk, mapping)
			if err != nil {
				return nil, err
			}
			res.Targets = append(res.Targets, out)
			if out.Deleted {
				touchedDirs[filepath.Dir(filepath.Join(workspaceRoot, filepath.FromSlash(mapping.Target)))] = true
			}
		}
	}

	// Index mutation happens before file removal has fully "committed"
	// from the caller's perspective (§4.9 "The workspace index is
	// updated first; on failure, restore from the prior snapshot" —
	// the caller is expected to snapshot idx before calling Run and
	// restore it if Run returns an error).
	if len(sourceKeys) == 0 {
		idx.RemovePackage(packageName)
	} else {
		remaining := map[string][]workspaceindex.TargetMapping{}
		for sk, mappings := range entry.Files {
			if wantKey(sk) {
				continue
			}
			remaining[sk] = mappings
		}
		if len(remaining) == 0 {
			idx.RemovePackage(packageName)
		} else {
			entry.Files = remaining
			idx.SetPackage(packageName, entry)
		}
	}

	for dir := range touchedDirs {
		cleanEmptyDirs(dir, workspaceRoot, preservedDirs)
	}

	return res, nil
}

func removeOneTarget(idx *workspaceindex.Index, workspaceRoot, packageName, sourceKey string, mapping workspaceindex.TargetMapping) (TargetOutcome, error) {
	const op errors.Op = "uninstall.removeOneTarget"

	targetFull := filepath.Join(workspaceRoot, filepath.FromSlash(mapping.Target))
	out := TargetOutcome{Target: mapping.Target, SourceKey: sourceKey}

	otherWriters := otherOwners(idx, mapping.Target, packageName)
	out.StillOwnedBy = otherWriters

	if mapping.Merge == "" || mapping.Merge == "replace" {
		if len(otherWriters) == 0 {
			if err := os.Remove(targetFull); err != nil && !os.IsNotExist(err) {
				return out, errors.E(op, errors.IO, err)
			}
			out.Deleted = true
		}
		return out, nil
	}

	if mapping.Merge == "composite" {
		data, err := os.ReadFile(targetFull)
		if os.IsNotExist(err) {
			return out, nil
		}
		if err != nil {
			return out, errors.E(op, errors.IO, err)
		}
		stripped := docmerge.RemoveBlock(string(data), packageName)
		if len(otherWriters) == 0 && emptyAfterStrip(stripped) {
			if err := os.Remove(targetFull); err != nil && !os.IsNotExist(err) {
				return out, errors.E(op, errors.IO, err)
			}
			out.Deleted = true
			return out, nil
		}
		if err := writeAtomic(targetFull, []byte(stripped)); err != nil {
			return out, errors.E(op, errors.IO, err)
		}
		return out, nil
	}

	// deep / shallow: remove exactly the tracked keys (§4.9).
	data, err := os.ReadFile(targetFull)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return out, errors.E(op, errors.IO, err)
	}
	format := docformat.InferFormat(mapping.Target)
	doc, err := docformat.Parse(data, format)
	if err != nil {
		return out, errors.E(op, errors.Parse, err)
	}

	body, rewrap := unwrapFrontmatter(doc)
	for _, k := range mapping.Keys {
		body = mappipeline.UnsetPath(body, k)
		// Drop parent mappings the removal left empty.
		for p := k; strings.Contains(p, "."); {
			p = p[:strings.LastIndex(p, ".")]
			if v, ok := mappipeline.GetPath(body, p); !ok || !isEmptyMapping(v) {
				break
			}
			body = mappipeline.UnsetPath(body, p)
		}
	}
	out.KeysRemoved = mapping.Keys
	doc = rewrap(body)

	if len(otherWriters) == 0 && isEmptyMapping(body) {
		if err := os.Remove(targetFull); err != nil && !os.IsNotExist(err) {
			return out, errors.E(op, errors.IO, err)
		}
		out.Deleted = true
		return out, nil
	}

	outBytes, err := docformat.Serialize(doc, format)
	if err != nil {
		return out, errors.E(op, errors.Internal, err)
	}
	if err := writeAtomic(targetFull, outBytes); err != nil {
		return out, errors.E(op, errors.IO, err)
	}
	return out, nil
}

func unwrapFrontmatter(doc interface{}) (interface{}, func(interface{}) interface{}) {
	if fm, ok := doc.(docformat.Frontmatter); ok {
		return fm.Data, func(v interface{}) interface{} {
			data, _ := v.(map[string]interface{})
			return docformat.Frontmatter{Data: data, Body: fm.Body}
		}
	}
	return doc, func(v interface{}) interface{} { return v }
}

func isEmptyMapping(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	return ok && len(m) == 0
}

func emptyAfterStrip(s string) bool {
	for _, r := range s {
		if r != '\n' && r != ' ' && r != '\t' && r != '\r' {
			return false
		}
	}
	return true
}

func otherOwners(idx *workspaceindex.Index, target, exclude string) []string {
	var out []string
	for _, w := range idx.Writers(target) {
		if w != exclude {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}

// cleanEmptyDirs walks upward from dir to workspaceRoot, removing empty
// directories except those named in preservedDirs (§4.9 "walk each
// parent directory upward until the workspace root, removing empty
// directories except those in a preserved set").
func cleanEmptyDirs(dir, workspaceRoot string, preservedDirs []string) {
	preserved := map[string]bool{}
	for _, p := range preservedDirs {
		preserved[filepath.Clean(p)] = true
	}
	root := filepath.Clean(workspaceRoot)

	for {
		clean := filepath.Clean(dir)
		if clean == root || len(clean) <= len(root) {
			return
		}
		if preserved[clean] {
			return
		}
		entries, err := os.ReadDir(clean)
		if err != nil || len(entries) > 0 {
			return
		}
		if os.Remove(clean) != nil {
			return
		}
		dir = filepath.Dir(clean)
	}
}

func writeAtomic(dest string, data []byte) error {
	tmp := dest + ".opkg-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

type packageNotFoundErrT string

func (e packageNotFoundErrT) Error() string { return "package not installed: " + string(e) }

func packageNotFoundErr(name string) error { return packageNotFoundErrT(name) }
