// Package platformdef models the platform-definition document (spec §3,
// §6): a declarative JSON-with-comments file the core reads but never
// writes, naming each target platform's root directory/file, detection
// globs, and import/export flows. The document shape follows the same
// declarative-config-as-data idiom as kpt's Kptfile/Pipeline
// (internal/pipeline/pipeline.go), and is decoded with encoding/json
// after a small JSONC comment-stripping pass, StripJSONC (no JSONC
// library exists anywhere in the retrieval pack, so that one step stays
// hand-rolled; see DESIGN.md).
package platformdef

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/opkgdev/opkg/internal/errors"
)

// Flow is a declarative transformation rule belonging to a platform or
// to the well-known "global" scope (§3).
type Flow struct {
	From  []string               `json:"from"`
	To    string                 `json:"to"`
	When  map[string]interface{} `json:"when,omitempty"`
	Merge string                 `json:"merge,omitempty"`
	Pick  []string               `json:"pick,omitempty"`
	Omit  []string               `json:"omit,omitempty"`
	Path  string                 `json:"path,omitempty"`
	Embed string                 `json:"embed,omitempty"`
	Map   []map[string]interface{} `json:"map,omitempty"`
}

// Platform is one target platform's definition (§3).
type Platform struct {
	Name       string   `json:"name"`
	RootDir    string   `json:"rootDir,omitempty"`
	RootFile   string   `json:"rootFile,omitempty"`
	Detection  []string `json:"detection,omitempty"`
	Import     []Flow   `json:"import,omitempty"`
	Export     []Flow   `json:"export,omitempty"`
}

// Document is the full platform-definition document: per-platform
// definitions plus flows in the "global" scope that apply to every
// platform (§3 "Two well-known flow scopes").
type Document struct {
	Platforms []Platform `json:"platforms"`
	Global    []Flow     `json:"global,omitempty"`
}

// ByName returns the platform named n, or ok=false.
func (d *Document) ByName(n string) (Platform, bool) {
	for _, p := range d.Platforms {
		if p.Name == n {
			return p, true
		}
	}
	return Platform{}, false
}

// Parse decodes a JSONC platform-definition document.
func Parse(data []byte) (*Document, error) {
	const op errors.Op = "platformdef.Parse"
	stripped := StripJSONC(data)
	var doc Document
	if err := json.Unmarshal(stripped, &doc); err != nil {
		return nil, errors.E(op, errors.Parse, err)
	}
	for _, p := range doc.Platforms {
		if p.Name == "" {
			return nil, errors.E(op, errors.Validation, fmt.Errorf("platform definition missing name"))
		}
	}
	return &doc, nil
}

// cache is the process-scoped memoization named in §9 Design Notes
// ("The platform-definition cache is a process-scoped memoization with
// explicit clear on command boundary").
var (
	cacheMu sync.Mutex
	cache   = map[string]*Document{}
)

// LoadCached parses data, keyed by path, memoizing the result for the
// lifetime of the process (or until ClearCache is called).
func LoadCached(path string, data []byte) (*Document, error) {
	cacheMu.Lock()
	if d, ok := cache[path]; ok {
		cacheMu.Unlock()
		return d, nil
	}
	cacheMu.Unlock()

	d, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[path] = d
	cacheMu.Unlock()
	return d, nil
}

// ClearCache resets the process-scoped memoization; needed when running
// test suites (or multiple commands) in a single process (§9).
func ClearCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = map[string]*Document{}
}
