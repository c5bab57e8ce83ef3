// Package types defines the basic value types shared across opkg.
package types

// UniquePath is the absolute, OS-defined path to a package directory or
// workspace root on the local filesystem.
type UniquePath string

// String returns the absolute path in string form.
func (u UniquePath) String() string {
	return string(u)
}

// Empty reports whether the path is unset.
func (u UniquePath) Empty() bool {
	return len(u) == 0
}

// DisplayPath is a slash-separated path relative to the current working
// directory, used only for human-facing output. It is not guaranteed to
// be unique (e.g. in the presence of symlinks).
type DisplayPath string

// Scope is the install extent of a package: the entire package, or a
// resource-filtered subset of it.
type Scope string

const (
	ScopeFull   Scope = "full"
	ScopeSubset Scope = "subset"
)

// SourceKind tags which of the three source variants a package came from.
type SourceKind string

const (
	SourceRegistry  SourceKind = "registry"
	SourceGit       SourceKind = "git"
	SourceLocalPath SourceKind = "local-path"
)

// ResourceKind tags the typed asset kinds a package can contain.
type ResourceKind string

const (
	ResourceAgent     ResourceKind = "agent"
	ResourceSkill     ResourceKind = "skill"
	ResourceRule      ResourceKind = "rule"
	ResourceCommand   ResourceKind = "command"
	ResourceHook      ResourceKind = "hook"
	ResourceMCPServer ResourceKind = "mcp-server"
)
