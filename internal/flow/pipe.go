package flow

import (
	"fmt"
	"strings"

	"github.com/opkgdev/opkg/internal/docformat"
	"github.com/opkgdev/opkg/internal/errors"
)

// ApplyPipe implements a $pipe map-pipeline op (§4.5): a named
// format/codec transform run post-merge, e.g. "json-to-toml". The
// in-memory document is re-serialized in the source format and
// re-parsed in the destination format, then returned as the raw string
// a $pipe step is allowed to produce (§4.4 step 10 "they may replace
// the in-memory document with a serialized string").
func ApplyPipe(doc interface{}, name string) (interface{}, error) {
	const op errors.Op = "flow.ApplyPipe"
	parts := strings.SplitN(name, "-to-", 2)
	if len(parts) != 2 {
		return nil, errors.E(op, errors.Validation, fmt.Errorf("unrecognized $pipe name %q, want \"<from>-to-<to>\"", name))
	}
	to := docformat.Format(parts[1])

	out, err := docformat.Serialize(doc, to)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return string(out), nil
}
