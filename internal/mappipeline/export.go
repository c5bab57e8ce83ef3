package mappipeline

// GetPath, SetPath, and UnsetPath expose the package's dotted-path
// helpers for use by the flow engine (pick/omit, key-tracking snapshot)
// and the uninstall engine (tracked-key removal), so every component
// that walks a decoded document tree shares one path dialect.

func GetPath(doc interface{}, dotted string) (interface{}, bool) { return getPath(doc, dotted) }

func SetPath(doc interface{}, dotted string, value interface{}) interface{} {
	return setPath(doc, dotted, value)
}

func UnsetPath(doc interface{}, dotted string) interface{} { return unsetPath(doc, dotted) }

// LeafKeyPaths returns every leaf key path in a mapping document, e.g.
// {"a":{"b":1,"c":2}} -> ["a.b", "a.c"] — used by the flow engine's
// key-tracking snapshot (§4.4 step 7). The save engine's structured
// subtract reads the recorded keys back with GetPath/SetPath instead.
func LeafKeyPaths(doc interface{}) []string {
	var out []string
	collectLeafPaths(doc, "", &out)
	return out
}

func collectLeafPaths(v interface{}, prefix string, out *[]string) {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) == 0 {
		if prefix != "" {
			*out = append(*out, prefix)
		}
		return
	}
	for k, vv := range m {
		p := k
		if prefix != "" {
			p = prefix + "." + k
		}
		collectLeafPaths(vv, p, out)
	}
}
