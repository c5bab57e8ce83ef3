// Package docmerge implements the four flow merge strategies (spec §4.4
// step 9): replace, shallow, deep, and composite. Deep merge delegates
// the actual union/override/array-concatenation algorithm to
// dario.cat/mergo (a dependency already present in the example pack's
// dependency graph, e.g. GoogleContainerTools-skaffold's go.mod),
// wrapped with a conflict-detection pre-pass so scalar collisions can be
// recorded the way §4.4 requires ("record conflict record
// {path, winner, losers}") — mergo's own API has no hook for that, so
// the detection walk stays hand-rolled against the decoded tree.
package docmerge

import (
	"fmt"

	"dario.cat/mergo"

	"github.com/opkgdev/opkg/internal/errors"
)

// Strategy is one of the four named merge strategies.
type Strategy string

const (
	StrategyReplace   Strategy = "replace"
	StrategyShallow   Strategy = "shallow"
	StrategyDeep      Strategy = "deep"
	StrategyComposite Strategy = "composite"
)

// Conflict records a scalar key collision resolved in the source's
// favor during a deep merge (§4.4 step 9).
type Conflict struct {
	Path   string
	Winner interface{}
	Losers []interface{}
}

// Result is the outcome of merging source into an existing target.
type Result struct {
	Value     interface{}
	Conflicts []Conflict
}

// Merge combines existing (the current target content, or nil if the
// target doesn't yet exist) with incoming (the flow's source content)
// using strategy.
func Merge(existing, incoming interface{}, strategy Strategy, packageName string) (Result, error) {
	const op errors.Op = "docmerge.Merge"

	if existing == nil {
		return Result{Value: incoming}, nil
	}

	switch strategy {
	case StrategyReplace, "":
		return Result{Value: incoming}, nil

	case StrategyShallow:
		return mergeShallow(existing, incoming)

	case StrategyDeep:
		return mergeDeep(existing, incoming)

	case StrategyComposite:
		return mergeComposite(existing, incoming, packageName)

	default:
		return Result{}, errors.E(op, errors.Validation, fmt.Errorf("unknown merge strategy %q", strategy))
	}
}

func mergeShallow(existing, incoming interface{}) (Result, error) {
	const op errors.Op = "docmerge.mergeShallow"
	dst, ok := existing.(map[string]interface{})
	if !ok {
		return Result{Value: incoming}, nil
	}
	src, ok := incoming.(map[string]interface{})
	if !ok {
		return Result{}, errors.E(op, errors.Conflict, fmt.Errorf("shallow merge requires mapping values"))
	}
	out := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v // source wins on overlap (§4.4 step 9)
	}
	return Result{Value: out}, nil
}

func mergeDeep(existing, incoming interface{}) (Result, error) {
	const op errors.Op = "docmerge.mergeDeep"
	dst, ok := existing.(map[string]interface{})
	if !ok {
		return Result{Value: incoming}, nil
	}
	src, ok := incoming.(map[string]interface{})
	if !ok {
		return Result{}, errors.E(op, errors.Conflict, fmt.Errorf("deep merge requires mapping values"))
	}

	conflicts := detectScalarConflicts("", dst, src)

	dstCopy := deepCopyMap(dst)
	if err := mergo.Merge(&dstCopy, src, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return Result{}, errors.E(op, errors.Internal, err)
	}

	return Result{Value: dstCopy, Conflicts: conflicts}, nil
}

// detectScalarConflicts walks dst and src in lockstep, recording every
// path where both sides hold a differing scalar value.
func detectScalarConflicts(prefix string, dst, src map[string]interface{}) []Conflict {
	var out []Conflict
	for k, sv := range src {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		dv, ok := dst[k]
		if !ok {
			continue
		}
		dm, dIsMap := dv.(map[string]interface{})
		sm, sIsMap := sv.(map[string]interface{})
		if dIsMap && sIsMap {
			out = append(out, detectScalarConflicts(path, dm, sm)...)
			continue
		}
		if isScalar(dv) && isScalar(sv) && dv != sv {
			out = append(out, Conflict{Path: path, Winner: sv, Losers: []interface{}{dv}})
		}
	}
	return out
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}, nil:
		return false
	default:
		return true
	}
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
