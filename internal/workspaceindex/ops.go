package workspaceindex

// SetPackage upserts a package's full entry.
func (idx *Index) SetPackage(name string, entry PackageEntry) {
	if idx.Packages == nil {
		idx.Packages = map[string]PackageEntry{}
	}
	idx.Packages[name] = entry
}

// RemovePackage deletes a package's entry entirely (used when a full
// install supersedes a prior partial one, §4.6 "Subsumption").
func (idx *Index) RemovePackage(name string) {
	delete(idx.Packages, name)
}

// Get returns a package's entry, if present.
func (idx *Index) Get(name string) (PackageEntry, bool) {
	e, ok := idx.Packages[name]
	return e, ok
}

// Writers returns the names of every package that owns targetPath,
// across all of their source-key mappings — used by the conflict &
// priority resolver (§4.6) to compute a target's writer set.
func (idx *Index) Writers(targetPath string) []string {
	var out []string
	for name, entry := range idx.Packages {
		for _, mappings := range entry.Files {
			for _, m := range mappings {
				if m.Target == targetPath {
					out = append(out, name)
					break
				}
			}
		}
	}
	return out
}

// KeysFor returns the keys a package contributed to targetPath across
// all of its source mappings (the union demanded by invariant I2).
func (idx *Index) KeysFor(packageName, targetPath string) []string {
	entry, ok := idx.Packages[packageName]
	if !ok {
		return nil
	}
	var out []string
	for _, mappings := range entry.Files {
		for _, m := range mappings {
			if m.Target == targetPath {
				out = append(out, m.Keys...)
			}
		}
	}
	return out
}
