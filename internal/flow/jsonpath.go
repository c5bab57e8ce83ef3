package flow

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/opkgdev/opkg/internal/errors"
)

// ExtractPath implements §4.4 step 4 ("JSONPath extract via path") using
// tidwall/gjson, a direct dependency the roivaz-aro-hcp-intelhub example
// repo pulls in for exactly this kind of ad hoc structural query. The
// already-decoded document is re-marshaled to JSON so gjson's path
// dialect can run against it, then the extracted fragment is decoded
// back into a native Go value for the rest of the pipeline.
func ExtractPath(doc interface{}, path string) (interface{}, error) {
	const op errors.Op = "flow.ExtractPath"
	if path == "" {
		return doc, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.E(op, errors.Internal, err)
	}
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(res.Raw), &v); err != nil {
		// Scalar results (e.g. a bare string/number) aren't valid JSON
		// documents on their own; fall back to the typed gjson value.
		return res.Value(), nil
	}
	return v, nil
}
