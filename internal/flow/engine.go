package flow

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/opkgdev/opkg/internal/docformat"
	"github.com/opkgdev/opkg/internal/docmerge"
	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/mappipeline"
	"github.com/opkgdev/opkg/internal/platformdef"
)

// Context carries the flow context variables and identity needed to
// execute one platform's flow program (§4.4 "a working flow context").
type Context struct {
	PackageName string
	Version     string
	Priority    int
	Platform    string
	Source      string // source variant: registry | git | local-path
	TargetRoot  string // absolute path to the workspace root
}

// Outcome is one executed (sub-)flow's result: either a write, a skip,
// or a failure isolated to this flow (§7 "parse inside a single flow:
// isolate to that flow; continue with siblings").
type Outcome struct {
	SourcePath string // path matched under base, relative
	TargetPath string // path relative to TargetRoot
	Skipped    bool
	Warning    string
	Keys       []string // populated when merge in {deep, shallow}
	Conflicts  []docmerge.Conflict
	Bytes      []byte
	Err        error
}

// Run executes one flow's full program (global or per-platform),
// matching every file under `from` and producing one Outcome per match
// (or per multi-target sub-flow) (§4.4).
func Run(base string, f platformdef.Flow, fctx Context, dryRun bool) []Outcome {
	vars := Vars{
		"platform":   fctx.Platform,
		"source":     fctx.Source,
		"targetRoot": fctx.TargetRoot,
	}

	ok, err := EvalWhen(f.When, vars)
	if err != nil {
		return []Outcome{{Err: fmt.Errorf("when: %w", err)}}
	}
	if !ok {
		return []Outcome{{Skipped: true}}
	}

	winningPattern, matches, warning, err := resolveFrom(base, f.From)
	if err != nil {
		return []Outcome{{Err: err}}
	}
	if len(matches) == 0 {
		return []Outcome{{Skipped: true, Warning: warning}}
	}

	outcomes := make([]Outcome, 0, len(matches))
	for _, m := range matches {
		o := runOne(base, winningPattern, m, f, fctx, vars, dryRun, "")
		o.Warning = warning
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// RunAt re-executes f against one already-resolved source match, writing
// to a caller-supplied target path instead of recomputing it from
// fromPattern/f.To. The install orchestrator uses this to re-run (for
// real) exactly the flow a prior dry-run probe already matched, once
// conflict arbitration has decided whether that match's target is the
// arbitrated path or a relocated one (§4.6 "Namespace relocation").
func RunAt(base, matchedPath, targetPath string, f platformdef.Flow, fctx Context, dryRun bool) Outcome {
	vars := Vars{
		"platform":   fctx.Platform,
		"source":     fctx.Source,
		"targetRoot": fctx.TargetRoot,
	}
	return runOne(base, "", matchedPath, f, fctx, vars, dryRun, targetPath)
}

func runOne(base, fromPattern, matchedPath string, f platformdef.Flow, fctx Context, vars Vars, dryRun bool, targetPathOverride string) Outcome {
	const op errors.Op = "flow.runOne"

	srcFull := filepath.Join(base, filepath.FromSlash(matchedPath))
	data, err := os.ReadFile(srcFull)
	if err != nil {
		return Outcome{SourcePath: matchedPath, Err: errors.E(op, errors.IO, err)}
	}

	format := docformat.InferFormat(matchedPath)
	doc, err := docformat.Parse(data, format)
	if err != nil {
		return Outcome{SourcePath: matchedPath, Err: err} // parse errors are fatal to this flow only
	}

	doc, err = applyJSONPath(doc, f.Path)
	if err != nil {
		return Outcome{SourcePath: matchedPath, Err: errors.E(op, errors.Parse, err)}
	}

	doc, err = PickOmit(doc, f.Pick, f.Omit)
	if err != nil {
		return Outcome{SourcePath: matchedPath, Err: errors.E(op, errors.Validation, err)}
	}

	ops, err := mappipeline.ParseOps(f.Map)
	if err != nil {
		return Outcome{SourcePath: matchedPath, Err: err}
	}
	schemaOps, pipeOps := mappipeline.SplitSchemaAndPipe(ops)

	base2 := path.Base(matchedPath)
	ext := path.Ext(base2)
	pipelineVars := map[string]interface{}{
		"filename": base2,
		"dirname":  path.Dir(matchedPath),
		"path":     matchedPath,
		"ext":      ext,
		"platform": fctx.Platform,
		"source":   fctx.Source,
	}

	docOrFrontmatter, schemaTarget := unwrapFrontmatter(doc)
	transformed, err := mappipeline.Apply(schemaTarget, schemaOps, pipelineVars)
	if err != nil {
		return Outcome{SourcePath: matchedPath, Err: err}
	}
	doc = rewrapFrontmatter(docOrFrontmatter, transformed)

	var keys []string
	mergeStrategy := docmerge.Strategy(f.Merge)
	if mergeStrategy == docmerge.StrategyDeep || mergeStrategy == docmerge.StrategyShallow {
		_, snapshotTarget := unwrapFrontmatter(doc)
		keys = mappipeline.LeafKeyPaths(snapshotTarget)
	}

	if f.Embed != "" {
		doc = map[string]interface{}{f.Embed: doc}
	}

	targetPath := targetPathOverride
	if targetPath == "" {
		targetPath = ResolveTargetPath(fromPattern, matchedPath, f.To, fctx.Platform)
	}
	targetFull := filepath.Join(fctx.TargetRoot, filepath.FromSlash(targetPath))
	targetFormat := docformat.InferFormat(targetPath)

	var conflicts []docmerge.Conflict
	if existingData, err := os.ReadFile(targetFull); err == nil {
		existingDoc, perr := docformat.Parse(existingData, targetFormat)
		if perr == nil {
			mres, merr := docmerge.Merge(existingDoc, doc, mergeStrategy, fctx.PackageName)
			if merr != nil {
				return Outcome{SourcePath: matchedPath, Err: merr}
			}
			doc = mres.Value
			conflicts = mres.Conflicts
		}
	}

	for _, po := range pipeOps {
		doc, err = applyPipe(doc, po)
		if err != nil {
			return Outcome{SourcePath: matchedPath, Err: err}
		}
	}

	out, err := docformat.Serialize(doc, targetFormat)
	if err != nil {
		return Outcome{SourcePath: matchedPath, Err: err}
	}

	if !dryRun {
		if err := writeAtomic(targetFull, out); err != nil {
			return Outcome{SourcePath: matchedPath, Err: errors.E(op, errors.IO, err)}
		}
	}

	return Outcome{SourcePath: matchedPath, TargetPath: targetPath, Keys: keys, Conflicts: conflicts, Bytes: out}
}

func applyJSONPath(doc interface{}, jsonPath string) (interface{}, error) {
	if jsonPath == "" {
		return doc, nil
	}
	return ExtractPath(doc, jsonPath)
}

// unwrapFrontmatter returns the subtree map-pipeline schema ops should
// run against: for Markdown, that's the frontmatter data (§4.4 step 6
// "For Markdown, schema ops apply to the frontmatter subtree").
func unwrapFrontmatter(doc interface{}) (interface{}, interface{}) {
	if fm, ok := doc.(docformat.Frontmatter); ok {
		return fm, fm.Data
	}
	return doc, doc
}

func rewrapFrontmatter(original interface{}, transformed interface{}) interface{} {
	if fm, ok := original.(docformat.Frontmatter); ok {
		data, _ := transformed.(map[string]interface{})
		return docformat.Frontmatter{Data: data, Body: fm.Body}
	}
	return transformed
}

func applyPipe(doc interface{}, op mappipeline.Op) (interface{}, error) {
	name, _ := op.Params["name"].(string)
	return ApplyPipe(doc, name)
}

func resolveFrom(base string, patterns []string) (winning string, matches []string, warning string, err error) {
	fsys := os.DirFS(base)
	var matchedPatterns []string
	for _, p := range patterns {
		ms, gerr := doublestar.Glob(fsys, p)
		if gerr != nil {
			return "", nil, "", gerr
		}
		if len(ms) == 0 {
			continue
		}
		matchedPatterns = append(matchedPatterns, p)
		if winning == "" {
			winning = p
			matches = ms
		}
	}
	if len(matchedPatterns) >= 2 {
		warning = fmt.Sprintf("priority-list from: patterns %v also matched but %q was used", matchedPatterns[1:], winning)
	}
	return winning, matches, warning, nil
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
