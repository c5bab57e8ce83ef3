// Package save implements the save engine (spec §4.8): given a package
// already recorded in the workspace index, scan every target it owns,
// reverse the platform-specific flow that produced it, and write the
// result back under the package's content root — but only when the
// reconstructed content is not already semantically equivalent to what
// is on disk there, per the comparableHash rule. Content hashing uses
// cespare/xxhash/v2, grounded the way ConfigButler-gitops-reverser hashes
// reconciled objects for idempotent-apply comparisons.
package save

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"

	"github.com/opkgdev/opkg/internal/docformat"
	"github.com/opkgdev/opkg/internal/docmerge"
	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/flow"
	"github.com/opkgdev/opkg/internal/mappipeline"
	"github.com/opkgdev/opkg/internal/platformdef"
	"github.com/opkgdev/opkg/internal/workspaceindex"
)

// HashCache memoizes comparableHash results keyed by (fullPath,
// contentHash, platform), per §4.8 step 3.
type HashCache struct {
	mu sync.Mutex
	m  map[cacheKey]uint64
}

type cacheKey struct {
	path     string
	content  uint64
	platform string
}

// NewHashCache returns an empty cache.
func NewHashCache() *HashCache { return &HashCache{m: map[cacheKey]uint64{}} }

func (c *HashCache) get(path string, content uint64, platform string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[cacheKey{path, content, platform}]
	return v, ok
}

func (c *HashCache) put(path string, content uint64, platform string, canonical uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[cacheKey{path, content, platform}] = canonical
}

// FileOutcome records what happened to one source file during a save.
type FileOutcome struct {
	SourceKey  string
	Written    bool
	Converted  bool // the platform-specific import flow ran successfully
	Err        error
}

// Result is the full outcome of one Run call.
type Result struct {
	Files []FileOutcome
}

// Run scans packageName's workspace-index entry, reconstructs each
// tracked source file's content, and writes it under contentRoot when it
// differs from what's already there (§4.8).
func Run(idx *workspaceindex.Index, workspaceRoot, contentRoot, packageName string, platforms *platformdef.Document, cache *HashCache) (*Result, error) {
	const op errors.Op = "save.Run"

	entry, ok := idx.Get(packageName)
	if !ok {
		return nil, errors.E(op, errors.NotFound, notFoundErr(packageName))
	}
	if cache == nil {
		cache = NewHashCache()
	}

	sourceKeys := make([]string, 0, len(entry.Files))
	for sk := range entry.Files {
		sourceKeys = append(sourceKeys, sk)
	}
	sort.Strings(sourceKeys)

	res := &Result{}
	for _, sk := range sourceKeys {
		out := saveOne(idx, workspaceRoot, contentRoot, packageName, sk, entry.Files[sk], platforms, cache)
		res.Files = append(res.Files, out)
	}
	return res, nil
}

func saveOne(idx *workspaceindex.Index, workspaceRoot, contentRoot, packageName, sourceKey string, mappings []workspaceindex.TargetMapping, platforms *platformdef.Document, cache *HashCache) FileOutcome {
	out := FileOutcome{SourceKey: sourceKey}
	if len(mappings) == 0 {
		return out
	}

	// Spec doesn't mandate reconciling disagreeing per-platform views of
	// the same source file; take the first target whose file still
	// exists in the workspace (§4.8 "scan the workspace for every target
	// the package owns").
	var mapping workspaceindex.TargetMapping
	var raw []byte
	found := false
	for _, m := range mappings {
		data, err := os.ReadFile(filepath.Join(workspaceRoot, filepath.FromSlash(m.Target)))
		if err != nil {
			continue
		}
		mapping, raw, found = m, data, true
		break
	}
	if !found {
		return out // target no longer present: non-fatal, nothing to reconstruct
	}

	contentHash := xxhash.Sum64(raw)
	fullTargetPath := filepath.Join(workspaceRoot, filepath.FromSlash(mapping.Target))

	canonicalHash, cached := cache.get(fullTargetPath, contentHash, mapping.Platform)
	canonicalBytes, converted, cerr := reconstructUniversal(idx, raw, mapping, sourceKey, packageName, platforms)
	if cerr != nil {
		// §4.8 "Conversion failures are non-fatal; the raw hash is used,
		// and the file is written as-is."
		canonicalBytes = raw
		converted = false
	}
	out.Converted = converted

	if !cached {
		canonicalHash = xxhash.Sum64(canonicalBytes)
		cache.put(fullTargetPath, contentHash, mapping.Platform, canonicalHash)
	}

	sourceFull := filepath.Join(contentRoot, filepath.FromSlash(sourceKey))
	existing, _ := os.ReadFile(sourceFull)
	// Re-serialize the existing source the same way the reconstruction was
	// serialized, so formatting-only differences don't count as changes.
	sourceFormat := docformat.InferFormat(sourceKey)
	if doc, perr := docformat.Parse(existing, sourceFormat); perr == nil {
		if norm, serr := docformat.Serialize(doc, sourceFormat); serr == nil {
			existing = norm
		}
	}
	existingHash := xxhash.Sum64(existing)

	if canonicalHash == existingHash {
		return out
	}
	if err := writeAtomic(sourceFull, canonicalBytes); err != nil {
		out.Err = errors.E(errors.Op("save.saveOne"), errors.IO, err)
		return out
	}
	out.Written = true
	return out
}

// reconstructUniversal performs §4.8 steps 1-2: first extract only the
// package's own contribution from a merged target, then (if the target
// is platform-specific) run the matching import flow to convert it back
// to universal form.
func reconstructUniversal(idx *workspaceindex.Index, raw []byte, mapping workspaceindex.TargetMapping, sourceKey, packageName string, platforms *platformdef.Document) ([]byte, bool, error) {
	targetFormat := docformat.InferFormat(mapping.Target)

	var contribution interface{}
	switch mapping.Merge {
	case "deep", "shallow":
		doc, err := docformat.Parse(raw, targetFormat)
		if err != nil {
			return nil, false, err
		}
		contribution = extractKeys(doc, mapping.Keys)
	case "composite":
		if inner, ok := docmerge.ExtractBlock(string(raw), packageName); ok {
			contribution = inner
		} else {
			contribution = string(raw)
		}
	default:
		doc, err := docformat.Parse(raw, targetFormat)
		if err != nil {
			return nil, false, err
		}
		contribution = doc
	}

	if mapping.Platform == "" || platforms == nil {
		return serializeFor(contribution, sourceKey, targetFormat)
	}

	platform, ok := platforms.ByName(mapping.Platform)
	if !ok {
		return serializeFor(contribution, sourceKey, targetFormat)
	}

	f, ok := findImportFlow(platform, sourceKey, mapping.Platform)
	if !ok {
		return serializeFor(contribution, sourceKey, targetFormat)
	}

	converted, err := applyImportFlow(contribution, f, mapping.Platform)
	if err != nil {
		return nil, false, err
	}
	out, err := serializeFor(converted, sourceKey, docformat.InferFormat(sourceKey))
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// findImportFlow selects the import flow whose `to` pattern matches
// sourceKey, per §4.8 step 2 ("running the platform's import[] flow with
// matching to pattern and when clause").
func findImportFlow(platform platformdef.Platform, sourceKey, platformName string) (platformdef.Flow, bool) {
	vars := flow.Vars{"platform": platformName}
	for _, f := range platform.Import {
		ok, err := flow.EvalWhen(f.When, vars)
		if err != nil || !ok {
			continue
		}
		if f.To == sourceKey {
			return f, true
		}
		if matched, _ := doublestar.Match(f.To, sourceKey); matched {
			return f, true
		}
	}
	return platformdef.Flow{}, false
}

func applyImportFlow(doc interface{}, f platformdef.Flow, platformName string) (interface{}, error) {
	if f.Path != "" {
		extracted, err := flow.ExtractPath(doc, f.Path)
		if err != nil {
			return nil, err
		}
		doc = extracted
	}
	picked, err := flow.PickOmit(doc, f.Pick, f.Omit)
	if err != nil {
		return nil, err
	}
	ops, err := mappipeline.ParseOps(f.Map)
	if err != nil {
		return nil, err
	}
	schemaOps, _ := mappipeline.SplitSchemaAndPipe(ops)
	return mappipeline.Apply(picked, schemaOps, map[string]interface{}{"platform": platformName})
}

// extractKeys rebuilds a minimal document containing only the values at
// the given leaf key paths, the structured subtract demanded by §4.8
// step 1.
func extractKeys(doc interface{}, keys []string) interface{} {
	out := map[string]interface{}{}
	for _, k := range keys {
		if v, ok := mappipeline.GetPath(doc, k); ok {
			out = mappipeline.SetPath(out, k, v).(map[string]interface{})
		}
	}
	return out
}

func serializeFor(v interface{}, path string, format docformat.Format) ([]byte, bool, error) {
	out, err := docformat.Serialize(v, format)
	if err != nil {
		return nil, false, err
	}
	return out, false, nil
}

func writeAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".opkg-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

type notFoundErrT string

func (e notFoundErrT) Error() string { return "package not installed: " + string(e) }
func notFoundErr(name string) error  { return notFoundErrT(name) }
