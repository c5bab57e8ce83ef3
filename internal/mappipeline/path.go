// Package mappipeline implements the map pipeline structural operations
// (spec §4.5): an ordered list of ops executed over a decoded document
// tree. Because the tree is already a native Go value (map[string]interface{}
// / []interface{} / scalars) by the time a flow reaches this stage, the
// path operations below walk it directly rather than round-tripping
// through a JSON-text path library — gjson (wired in the flow engine's
// top-level §4.4 step-4 JSONPath extraction, where the source really is
// JSON text) doesn't fit a stage that only ever sees decoded values;
// see DESIGN.md.
package mappipeline

import "strings"

// getPath reads a dotted (optionally wildcard-containing) path from doc.
// Wildcard segments ("*") fan out across every mapping entry or array
// element and return a slice of matches.
func getPath(doc interface{}, dotted string) (interface{}, bool) {
	if dotted == "" {
		return doc, true
	}
	segs := strings.Split(dotted, ".")
	return getSegs(doc, segs)
}

func getSegs(doc interface{}, segs []string) (interface{}, bool) {
	if len(segs) == 0 {
		return doc, true
	}
	seg := segs[0]
	rest := segs[1:]

	if seg == "*" {
		switch t := doc.(type) {
		case map[string]interface{}:
			out := make(map[string]interface{}, len(t))
			for k, v := range t {
				if rv, ok := getSegs(v, rest); ok {
					out[k] = rv
				}
			}
			return out, true
		case []interface{}:
			out := make([]interface{}, 0, len(t))
			for _, v := range t {
				if rv, ok := getSegs(v, rest); ok {
					out = append(out, rv)
				}
			}
			return out, true
		default:
			return nil, false
		}
	}

	m, ok := doc.(map[string]interface{})
	if !ok {
		return nil, false
	}
	v, ok := m[seg]
	if !ok {
		return nil, false
	}
	return getSegs(v, rest)
}

// setPath writes value at a dotted path, creating intermediate maps as
// needed, and returns the (possibly new) root document.
func setPath(doc interface{}, dotted string, value interface{}) interface{} {
	segs := strings.Split(dotted, ".")
	return setSegs(doc, segs, value)
}

func setSegs(doc interface{}, segs []string, value interface{}) interface{} {
	m, ok := doc.(map[string]interface{})
	if !ok {
		m = map[string]interface{}{}
	}
	if len(segs) == 1 {
		m[segs[0]] = value
		return m
	}
	seg := segs[0]
	if seg == "*" {
		for k, v := range m {
			m[k] = setSegs(v, segs[1:], value)
		}
		return m
	}
	child := m[seg]
	m[seg] = setSegs(child, segs[1:], value)
	return m
}

// unsetPath removes the value at a dotted path, returning the (possibly
// modified) root document.
func unsetPath(doc interface{}, dotted string) interface{} {
	segs := strings.Split(dotted, ".")
	return unsetSegs(doc, segs)
}

func unsetSegs(doc interface{}, segs []string) interface{} {
	m, ok := doc.(map[string]interface{})
	if !ok {
		return doc
	}
	if len(segs) == 1 {
		if segs[0] == "*" {
			for k := range m {
				delete(m, k)
			}
			return m
		}
		delete(m, segs[0])
		return m
	}
	seg := segs[0]
	if seg == "*" {
		for k, v := range m {
			m[k] = unsetSegs(v, segs[1:])
		}
		return m
	}
	if child, ok := m[seg]; ok {
		m[seg] = unsetSegs(child, segs[1:])
	}
	return m
}

// renamePath moves the value at fromDotted to toDotted, fanning out
// across wildcard segments on both sides in lockstep.
func renamePath(doc interface{}, fromDotted, toDotted string) interface{} {
	fromSegs := strings.Split(fromDotted, ".")
	toSegs := strings.Split(toDotted, ".")
	return renameSegs(doc, fromSegs, toSegs)
}

func renameSegs(doc interface{}, fromSegs, toSegs []string) interface{} {
	m, ok := doc.(map[string]interface{})
	if !ok {
		return doc
	}
	if len(fromSegs) == 1 && len(toSegs) == 1 {
		if fromSegs[0] == "*" {
			renamed := make(map[string]interface{}, len(m))
			for k, v := range m {
				renamed[k] = v
			}
			return renamed
		}
		if v, ok := m[fromSegs[0]]; ok {
			delete(m, fromSegs[0])
			m[toSegs[0]] = v
		}
		return m
	}
	fseg, tseg := fromSegs[0], toSegs[0]
	if fseg == "*" && tseg == "*" {
		for k, v := range m {
			m[k] = renameSegs(v, fromSegs[1:], toSegs[1:])
		}
		return m
	}
	if child, ok := m[fseg]; ok {
		m[fseg] = renameSegs(child, fromSegs[1:], toSegs[1:])
	}
	return m
}
