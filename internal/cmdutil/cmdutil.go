// Package cmdutil gathers the small pieces of setup every opkg
// subcommand needs: the workspace's platform-definition document, its
// index, and a configured source.Loader — mirroring the role kpt's
// internal/util/cmdutil plays for internal/cmd* (shared plumbing, no
// command logic of its own).
package cmdutil

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/opkgdev/opkg/internal/config"
	"github.com/opkgdev/opkg/internal/depgraph"
	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/install"
	"github.com/opkgdev/opkg/internal/platformdef"
	"github.com/opkgdev/opkg/internal/source"
	"github.com/opkgdev/opkg/internal/workspaceindex"
)

// PlatformsFileName is the well-known location of the platform-definition
// document relative to the workspace root.
const PlatformsFileName = ".opkg/platforms.jsonc"

// LoadPlatforms reads and parses the workspace's platform-definition
// document. A missing file is not an error: it yields an empty Document
// so commands run (with nothing to do) rather than fail outright, since
// platformdef is core-read-only config the workspace may not have set
// up yet.
func LoadPlatforms(workspaceRoot string) (*platformdef.Document, error) {
	const op errors.Op = "cmdutil.LoadPlatforms"
	path := filepath.Join(workspaceRoot, filepath.FromSlash(PlatformsFileName))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &platformdef.Document{}, nil
	}
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	doc, err := platformdef.LoadCached(path, data)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return doc, nil
}

// SelectPlatforms narrows doc's platforms to the requested ids, or
// returns every platform when ids is empty (§6 "--platforms <ids...>").
func SelectPlatforms(doc *platformdef.Document, ids []string) []platformdef.Platform {
	if len(ids) == 0 {
		return doc.Platforms
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []platformdef.Platform
	for _, p := range doc.Platforms {
		if want[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

// IndexPath returns the workspace index's well-known path.
func IndexPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, workspaceindex.FileName)
}

// LoadIndex loads the workspace index at its well-known path.
func LoadIndex(workspaceRoot string) (*workspaceindex.Index, error) {
	return workspaceindex.Load(IndexPath(workspaceRoot))
}

// SaveIndex persists idx at its well-known path.
func SaveIndex(workspaceRoot string, idx *workspaceindex.Index) error {
	return workspaceindex.Save(IndexPath(workspaceRoot), idx)
}

// NewLoader builds a source.Loader wired to the configured cache root and
// remote-vs-cache-first registry mode (§6 "--remote|--local").
func NewLoader(cacheRoot string, remotePrimary bool) *source.Loader {
	mode := source.ModeCacheFirst
	if remotePrimary {
		mode = source.ModeRemotePrimary
	}
	return &source.Loader{
		Git:      &source.GitLoader{CacheRoot: cacheRoot},
		Registry: &source.RegistryLoader{CacheRoot: cacheRoot, BaseURL: config.RegistryURL(), APIKey: config.APIKey()},
		Mode:     mode,
	}
}

// InstallConflictMode maps the CLI/profile conflict mode onto
// internal/install's.
func InstallConflictMode(m config.ConflictMode) install.ConflictMode {
	switch m {
	case config.ConflictKeepBoth:
		return install.ConflictKeepBoth
	case config.ConflictOverwrite:
		return install.ConflictOverwrite
	case config.ConflictSkip:
		return install.ConflictSkip
	default:
		return install.ConflictAsk
	}
}

// InteractiveTTY reports whether stdin is a terminal and --force was
// not set, the condition spec §6 gates interactive prompting on.
func InteractiveTTY() bool {
	if config.Force() {
		return false
	}
	f, ok := interface{}(os.Stdin).(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ConflictHandler prompts on stdin/stdout for a version conflict when
// interactive, and declines otherwise (§4.2).
func ConflictHandler() depgraph.ConflictHandler {
	if !InteractiveTTY() {
		return nil
	}
	reader := bufio.NewReader(os.Stdin)
	return func(_ context.Context, c depgraph.Conflict) (string, bool) {
		fmt.Printf("version conflict for %s: requested %s by %s\n", c.Name, strings.Join(c.Ranges, ", "), strings.Join(c.Requesters, ", "))
		fmt.Print("enter a version to adopt (blank to abort): ")
		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			return "", false
		}
		return line, true
	}
}

// WorkspaceRoot returns ~/.opkg/global when --global is set, and the
// current directory otherwise (spec §6 "--global").
func WorkspaceRoot() (string, error) {
	if config.Global() {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".opkg", "global"), nil
	}
	return os.Getwd()
}
