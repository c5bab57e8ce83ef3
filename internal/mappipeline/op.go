package mappipeline

import (
	"fmt"

	"github.com/opkgdev/opkg/internal/errors"
)

// Op is one parsed map-pipeline operation: exactly one "$"-prefixed key
// names the operation kind, and its value carries the op's parameters.
type Op struct {
	Kind   string
	Params map[string]interface{}
	Index  int // position in the original sequence, for error paths
}

var knownOps = map[string]bool{
	"$rename": true, "$set": true, "$unset": true, "$pipeline": true,
	"$extract": true, "$partition": true, "$mapValues": true,
	"$reduce": true, "$map": true, "$transform": true, "$pipe": true,
}

// ParseOps validates and decodes a raw map-pipeline entry list (as
// decoded from a platform definition's `map` field) into Ops.
// Validation runs before execution and surfaces structural errors with
// the path "operations[i].$op" (§4.5).
func ParseOps(raw []map[string]interface{}) ([]Op, error) {
	const op errors.Op = "mappipeline.ParseOps"
	ops := make([]Op, 0, len(raw))
	for i, entry := range raw {
		kind, params, err := singleKey(entry)
		if err != nil {
			return nil, errors.E(op, errors.Validation, fmt.Errorf("operations[%d].$op: %w", i, err))
		}
		if !knownOps[kind] {
			return nil, errors.E(op, errors.Validation, fmt.Errorf("operations[%d].$op: unknown operation %q", i, kind))
		}
		if err := validateOne(kind, params); err != nil {
			return nil, errors.E(op, errors.Validation, fmt.Errorf("operations[%d].$op: %w", i, err))
		}
		ops = append(ops, Op{Kind: kind, Params: params, Index: i})
	}
	return ops, nil
}

func singleKey(entry map[string]interface{}) (string, map[string]interface{}, error) {
	if len(entry) != 1 {
		return "", nil, fmt.Errorf("operation must have exactly one $-operation key, got %d", len(entry))
	}
	for k, v := range entry {
		params, ok := v.(map[string]interface{})
		if !ok {
			params = map[string]interface{}{"value": v}
		}
		return k, params, nil
	}
	return "", nil, fmt.Errorf("empty operation")
}

func validateOne(kind string, params map[string]interface{}) error {
	switch kind {
	case "$map":
		_, hasEach := params["each"]
		_, hasReplace := params["replace"]
		if hasEach && hasReplace {
			return fmt.Errorf("$map: each and replace are mutually exclusive")
		}
	}
	return nil
}

// SplitSchemaAndPipe separates $pipe (post-merge format conversion)
// entries from the rest, per §4.4 step 6 vs step 10.
func SplitSchemaAndPipe(ops []Op) (schema []Op, pipe []Op) {
	for _, o := range ops {
		if o.Kind == "$pipe" {
			pipe = append(pipe, o)
		} else {
			schema = append(schema, o)
		}
	}
	return schema, pipe
}
