package mappipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/opkgdev/opkg/internal/errors"
)

// Apply runs ops over doc in order, substituting $$-prefixed variable
// references from vars wherever $set/$extract accept them (§4.5 $set:
// "a literal or variable reference").
func Apply(doc interface{}, ops []Op, vars map[string]interface{}) (interface{}, error) {
	const op errors.Op = "mappipeline.Apply"
	cur := doc
	for _, o := range ops {
		var err error
		cur, err = applyOne(cur, o, vars)
		if err != nil {
			return nil, errors.E(op, errors.Internal, fmt.Errorf("operations[%d].$%s: %w", o.Index, strings.TrimPrefix(o.Kind, "$"), err))
		}
	}
	return cur, nil
}

func applyOne(doc interface{}, o Op, vars map[string]interface{}) (interface{}, error) {
	switch o.Kind {
	case "$rename":
		from, _ := o.Params["from"].(string)
		to, _ := o.Params["to"].(string)
		return renamePath(doc, from, to), nil

	case "$set":
		path, _ := o.Params["path"].(string)
		value := resolveValue(o.Params["value"], vars)
		return setPath(doc, path, value), nil

	case "$unset":
		path, _ := o.Params["path"].(string)
		return unsetPath(doc, path), nil

	case "$pipeline":
		field, _ := o.Params["field"].(string)
		rawOps, _ := o.Params["ops"].([]map[string]interface{})
		sub, err := ParseOps(rawOps)
		if err != nil {
			return nil, err
		}
		return applyScoped(doc, field, func(v interface{}) (interface{}, error) {
			return Apply(v, sub, vars)
		})

	case "$extract":
		return applyExtract(doc, o.Params)

	case "$partition":
		return applyPartition(doc, o.Params)

	case "$mapValues":
		return applyMapValues(doc, o.Params, vars)

	case "$reduce":
		return applyReduce(doc, o.Params)

	case "$map":
		return applyMap(doc, o.Params)

	case "$transform":
		return applyTransform(doc, o.Params, vars)

	case "$pipe":
		// Post-merge format conversion: handled by the flow engine after
		// merge, not here (§4.4 step 10).
		return doc, nil

	default:
		return doc, nil
	}
}

// applyScoped applies fn to the value at field ("" = whole document),
// fanning out across a trailing "*": fn then runs once per entry of the
// mapping the rest of the field selects.
func applyScoped(doc interface{}, field string, fn func(interface{}) (interface{}, error)) (interface{}, error) {
	if field == "" {
		return fn(doc)
	}
	if field == "*" || strings.HasSuffix(field, ".*") {
		parent, _ := getPath(doc, strings.TrimSuffix(strings.TrimSuffix(field, "*"), "."))
		if m, ok := parent.(map[string]interface{}); ok {
			for k, v := range m {
				nv, err := fn(v)
				if err != nil {
					return nil, err
				}
				m[k] = nv
			}
		}
		return doc, nil
	}
	v, ok := getPath(doc, field)
	if !ok {
		return doc, nil
	}
	nv, err := fn(v)
	if err != nil {
		return nil, err
	}
	return setPath(doc, field, nv), nil
}

func resolveValue(raw interface{}, vars map[string]interface{}) interface{} {
	s, ok := raw.(string)
	if !ok {
		return raw
	}
	if strings.HasPrefix(s, "$$") {
		name := strings.TrimPrefix(s, "$$")
		if v, ok := vars[name]; ok {
			return v
		}
	}
	return s
}

func applyExtract(doc interface{}, params map[string]interface{}) (interface{}, error) {
	path, _ := params["path"].(string)
	pattern, _ := params["pattern"].(string)
	group := 0
	if g, ok := params["group"].(int); ok {
		group = g
	} else if g, ok := params["group"].(float64); ok {
		group = int(g)
	}
	def := params["default"]

	v, ok := getPath(doc, path)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return def, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	m := re.FindStringSubmatch(s)
	if m == nil || group >= len(m) {
		return def, nil
	}
	return m[group], nil
}

func applyPartition(doc interface{}, params map[string]interface{}) (interface{}, error) {
	m, ok := doc.(map[string]interface{})
	if !ok {
		return doc, nil
	}
	bucketsRaw, _ := params["buckets"].(map[string]interface{})
	by, _ := params["by"].(string) // "key" or "value"
	if by == "" {
		by = "key"
	}

	compiled := make(map[string]*regexp.Regexp, len(bucketsRaw))
	order := make([]string, 0, len(bucketsRaw))
	for name, pat := range bucketsRaw {
		ps, _ := pat.(string)
		re, err := regexp.Compile(ps)
		if err != nil {
			return nil, fmt.Errorf("invalid bucket pattern %q: %w", name, err)
		}
		compiled[name] = re
		order = append(order, name)
	}
	sort.Strings(order)

	result := make(map[string]interface{}, len(order))
	for _, name := range order {
		result[name] = map[string]interface{}{}
	}

	for k, v := range m {
		subject := k
		if by == "value" {
			subject = fmt.Sprint(v)
		}
		for _, name := range order {
			if compiled[name].MatchString(subject) {
				result[name].(map[string]interface{})[k] = v
				break
			}
		}
	}
	return result, nil
}

func applyMapValues(doc interface{}, params map[string]interface{}, vars map[string]interface{}) (interface{}, error) {
	m, ok := doc.(map[string]interface{})
	if !ok {
		return doc, nil
	}
	rawOps, _ := params["ops"].([]map[string]interface{})
	sub, err := ParseOps(rawOps)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		nv, err := Apply(v, sub, vars)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

func applyReduce(doc interface{}, params map[string]interface{}) (interface{}, error) {
	path, _ := params["path"].(string)
	verb, _ := params["op"].(string)
	arg, _ := params["arg"].(string)

	v, ok := getPath(doc, path)
	if !ok {
		return doc, nil
	}

	var result interface{}
	switch verb {
	case "split":
		s, _ := v.(string)
		parts := strings.Split(s, arg)
		items := make([]interface{}, len(parts))
		for i, p := range parts {
			items[i] = strings.TrimSpace(p)
		}
		result = items
	case "join":
		items, _ := v.([]interface{})
		strs := make([]string, len(items))
		for i, it := range items {
			strs[i] = fmt.Sprint(it)
		}
		result = strings.Join(strs, arg)
	default:
		return doc, nil
	}
	if path == "" {
		return result, nil
	}
	return setPath(doc, path, result), nil
}

func applyMap(doc interface{}, params map[string]interface{}) (interface{}, error) {
	path, _ := params["path"].(string)
	var target interface{} = doc
	if path != "" {
		v, ok := getPath(doc, path)
		if !ok {
			return doc, nil
		}
		target = v
	}
	items, ok := target.([]interface{})
	if !ok {
		return doc, nil
	}

	out := make([]interface{}, len(items))
	if each, ok := params["each"].(string); ok {
		for i, it := range items {
			out[i] = applyEach(each, it)
		}
	} else if replace, ok := params["replace"].(map[string]interface{}); ok {
		for i, it := range items {
			key := fmt.Sprint(it)
			if rv, ok := replace[key]; ok {
				out[i] = rv
			} else {
				out[i] = it
			}
		}
	} else {
		copy(out, items)
	}

	if path == "" {
		return out, nil
	}
	return setPath(doc, path, out), nil
}

func applyEach(verb string, v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch verb {
	case "lowercase":
		return strings.ToLower(s)
	case "uppercase":
		return strings.ToUpper(s)
	case "trim":
		return strings.TrimSpace(s)
	default:
		return s
	}
}

func applyTransform(doc interface{}, params map[string]interface{}, vars map[string]interface{}) (interface{}, error) {
	path, _ := params["path"].(string)
	rawSteps, _ := params["steps"].([]map[string]interface{})
	steps, err := ParseOps(rawSteps)
	if err != nil {
		return nil, err
	}

	v, ok := getPath(doc, path)
	if !ok {
		v = nil
	}
	result, err := Apply(v, steps, vars)
	if err != nil {
		return nil, err
	}

	if isEmptyResult(result) {
		return unsetPath(doc, path), nil
	}
	return setPath(doc, path, result), nil
}

// isEmptyResult implements §8's boundary behavior: "$transform whose
// last step yields an empty collection unsets the field rather than
// assigning empty."
func isEmptyResult(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	default:
		return false
	}
}
