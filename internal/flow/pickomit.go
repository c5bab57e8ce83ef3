package flow

import (
	"fmt"

	"github.com/opkgdev/opkg/internal/mappipeline"
)

// PickOmit implements §4.4 step 5: pick or omit a set of dotted paths
// from doc. Specifying both is a validation error.
func PickOmit(doc interface{}, pick, omit []string) (interface{}, error) {
	if len(pick) > 0 && len(omit) > 0 {
		return nil, fmt.Errorf("pick and omit cannot both be set")
	}
	if len(pick) > 0 {
		out := map[string]interface{}{}
		for _, p := range pick {
			if v, ok := mappipeline.GetPath(doc, p); ok {
				out = mappipeline.SetPath(out, p, v).(map[string]interface{})
			}
		}
		return out, nil
	}
	if len(omit) > 0 {
		result := doc
		for _, p := range omit {
			result = mappipeline.UnsetPath(result, p)
		}
		return result, nil
	}
	return doc, nil
}
