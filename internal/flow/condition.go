// Package flow implements the flow engine (spec §4.4): the per-flow
// pipeline that resolves a flow's `from` glob against a package's
// detected base, evaluates its `when` condition, parses, transforms,
// merges, and serializes the result to a workspace target. Control-flow
// shape (ordered pipeline stages, warning-collection-without-aborting)
// follows kpt's internal/util/merge three-way merge driver, generalized
// from a single merge operation to an eleven-step per-flow program.
package flow

import "fmt"

// Vars is the flow context's variable bindings: $$platform, $$source,
// $$targetRoot (§3 "Flow"), plus any caller-supplied extras ($$filename,
// $$dirname, $$path, $$ext used by $set in the map pipeline).
type Vars map[string]interface{}

// EvalWhen evaluates a `when` condition tree against vars. The tree is
// a single-key map naming one operator: $eq, $ne, $and, $or, $not,
// exists (§3). A nil/empty condition is vacuously true.
func EvalWhen(cond map[string]interface{}, vars Vars) (bool, error) {
	if len(cond) == 0 {
		return true, nil
	}
	if len(cond) != 1 {
		return false, fmt.Errorf("when: exactly one operator key expected, got %d", len(cond))
	}
	for op, arg := range cond {
		return evalOp(op, arg, vars)
	}
	return true, nil
}

func evalOp(op string, arg interface{}, vars Vars) (bool, error) {
	switch op {
	case "$eq", "$ne":
		pair, ok := arg.([]interface{})
		if !ok || len(pair) != 2 {
			return false, fmt.Errorf("%s requires a 2-element array", op)
		}
		a := resolveOperand(pair[0], vars)
		b := resolveOperand(pair[1], vars)
		eq := fmt.Sprint(a) == fmt.Sprint(b)
		if op == "$ne" {
			return !eq, nil
		}
		return eq, nil

	case "$and":
		items, ok := arg.([]interface{})
		if !ok {
			return false, fmt.Errorf("$and requires an array")
		}
		for _, it := range items {
			sub, ok := it.(map[string]interface{})
			if !ok {
				return false, fmt.Errorf("$and entries must be conditions")
			}
			v, err := EvalWhen(sub, vars)
			if err != nil {
				return false, err
			}
			if !v {
				return false, nil
			}
		}
		return true, nil

	case "$or":
		items, ok := arg.([]interface{})
		if !ok {
			return false, fmt.Errorf("$or requires an array")
		}
		for _, it := range items {
			sub, ok := it.(map[string]interface{})
			if !ok {
				return false, fmt.Errorf("$or entries must be conditions")
			}
			v, err := EvalWhen(sub, vars)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil

	case "$not":
		sub, ok := arg.(map[string]interface{})
		if !ok {
			return false, fmt.Errorf("$not requires a condition")
		}
		v, err := EvalWhen(sub, vars)
		if err != nil {
			return false, err
		}
		return !v, nil

	case "exists":
		name, ok := arg.(string)
		if !ok {
			return false, fmt.Errorf("exists requires a variable name")
		}
		_, ok = vars[trimVarPrefix(name)]
		return ok, nil

	default:
		return false, fmt.Errorf("unknown when operator %q", op)
	}
}

func resolveOperand(v interface{}, vars Vars) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if len(s) > 2 && s[:2] == "$$" {
		if val, ok := vars[s[2:]]; ok {
			return val
		}
		return nil
	}
	return s
}

func trimVarPrefix(s string) string {
	if len(s) > 2 && s[:2] == "$$" {
		return s[2:]
	}
	return s
}
