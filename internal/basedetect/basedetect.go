// Package basedetect implements the base detector (spec §4.3): locating
// the semantic package root inside a loaded content tree, either from a
// manifest hint, by matching each platform's detection globs, or by
// falling back to an ambiguous/marketplace verdict. Glob matching uses
// bmatcuk/doublestar/v4, a direct dependency of the skaffold example
// repo (pkg/skaffold/gcs/client/native_test.go uses doublestar.Glob the
// same way: match a set of patterns against a file tree).
package basedetect

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/platformdef"
)

// Source tags how a Result's Base was decided (§4.3 "Outcomes").
type Source string

const (
	SourceManifest      Source = "manifest"
	SourceDetection     Source = "detection"
	SourceUserSelection Source = "user-selection"
	SourceSingle        Source = "single"
)

// Candidate is one detected base directory with its match depth, used
// both for the single-base result and for reporting ambiguity.
type Candidate struct {
	Base           string
	MatchedPattern string
	Depth          int
}

// Result is the base detector's verdict.
type Result struct {
	Base           string
	MatchedPattern string
	Source         Source

	Marketplace bool

	Ambiguous bool
	Matches   []Candidate
}

const marketplaceManifestFile = "opkg-marketplace.yaml"

// Detect runs the §4.3 algorithm against contentRoot, using manifestBase
// (the manifest's "base" field, if any) and the set of platform
// detection glob lists to evaluate.
func Detect(contentRoot, manifestBase string, platforms []platformdef.Platform) (Result, error) {
	const op errors.Op = "basedetect.Detect"

	// Step 1: manifest hint wins outright.
	if manifestBase != "" {
		return Result{Base: manifestBase, Source: SourceManifest}, nil
	}

	// Step 2: evaluate every platform's detection globs against the tree.
	candidatesByBase := map[string]Candidate{}
	fsys := os.DirFS(contentRoot)

	for _, p := range platforms {
		for _, pattern := range p.Detection {
			matches, err := doublestar.Glob(fsys, pattern)
			if err != nil {
				return Result{}, errors.E(op, errors.Validation, err)
			}
			for _, m := range matches {
				base := containingDir(m)
				depth := 0
				if base != "." {
					depth = strings.Count(base, "/") + 1
				}
				if _, ok := candidatesByBase[base]; !ok {
					candidatesByBase[base] = Candidate{Base: base, MatchedPattern: pattern, Depth: depth}
				}
			}
		}
	}

	// Step 3: exactly one distinct base.
	if len(candidatesByBase) == 1 {
		for _, c := range candidatesByBase {
			return Result{Base: c.Base, MatchedPattern: c.MatchedPattern, Source: SourceSingle}, nil
		}
	}

	// Step 4: marketplace-manifest file at the tree root. Runs whenever
	// step 3 didn't already return -- zero candidates or 2+ ambiguous
	// ones both fall through to this check before the ambiguous verdict.
	if _, err := fs.Stat(fsys, marketplaceManifestFile); err == nil {
		return Result{Marketplace: true}, nil
	}

	if len(candidatesByBase) == 0 {
		// No detection matches and no marketplace file: treat the whole
		// tree root as the single base.
		return Result{Base: ".", Source: SourceSingle}, nil
	}

	// Step 5: ambiguous. Sort candidates deepest-first so a
	// non-interactive caller can select deterministically.
	matches := make([]Candidate, 0, len(candidatesByBase))
	for _, c := range candidatesByBase {
		matches = append(matches, c)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Depth != matches[j].Depth {
			return matches[i].Depth > matches[j].Depth
		}
		return matches[i].Base < matches[j].Base
	})
	return Result{Ambiguous: true, Matches: matches}, nil
}

// ResolveAmbiguous selects the deepest candidate for a non-interactive
// (--force) caller, per §4.3 step 5 / §8 scenario 5.
func ResolveAmbiguous(r Result) Result {
	if !r.Ambiguous || len(r.Matches) == 0 {
		return r
	}
	best := r.Matches[0]
	return Result{Base: best.Base, MatchedPattern: best.MatchedPattern, Source: SourceUserSelection}
}

// containingDir returns the shallowest directory containing the matched
// file, i.e. its parent directory (§4.3 step 2).
func containingDir(matchPath string) string {
	dir := path.Dir(matchPath)
	if dir == "" {
		return "."
	}
	return dir
}
