// Package docformat parses and serializes the document formats a flow
// can read or write (spec §4.4 step 3/11): JSON, JSONC, YAML, TOML,
// Markdown-with-frontmatter, and plain text. Format dispatch by file
// extension follows the same shape as kpt's resource-format handling
// (internal/util/merge accepts parsed YAML nodes uniformly); the
// concrete codecs are the teacher's gopkg.in/yaml.v3 for YAML and the
// pack's pelletier/go-toml/v2 (used by Aureuma-si's config loader) for
// TOML, with encoding/json for JSON/JSONC (no alternate JSON library
// appears anywhere in the retrieval pack, so JSON itself stays stdlib;
// see DESIGN.md).
package docformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/platformdef"
)

// Format tags a document's on-disk syntax.
type Format string

const (
	FormatJSON     Format = "json"
	FormatJSONC    Format = "jsonc"
	FormatYAML     Format = "yaml"
	FormatTOML     Format = "toml"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Frontmatter is the parsed shape of a Markdown document (§4.4 step 3:
// "Markdown parses to {frontmatter, body}").
type Frontmatter struct {
	Data map[string]interface{}
	Body string
}

// InferFormat maps a file extension to its Format, per §4.4 step 3.
func InferFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".jsonc":
		return FormatJSONC
	case ".yml", ".yaml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Parse decodes data per format. Empty input parses to that format's
// canonical empty value (§8 "Boundary behaviors").
func Parse(data []byte, format Format) (interface{}, error) {
	const op errors.Op = "docformat.Parse"

	if len(bytes.TrimSpace(data)) == 0 {
		return EmptyValue(format), nil
	}

	switch format {
	case FormatJSON:
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errors.E(op, errors.Parse, err)
		}
		return v, nil
	case FormatJSONC:
		var v interface{}
		if err := json.Unmarshal(platformdef.StripJSONC(data), &v); err != nil {
			return nil, errors.E(op, errors.Parse, err)
		}
		return v, nil
	case FormatYAML:
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, errors.E(op, errors.Parse, err)
		}
		return normalizeYAML(v), nil
	case FormatTOML:
		var v map[string]interface{}
		if err := toml.Unmarshal(data, &v); err != nil {
			return nil, errors.E(op, errors.Parse, err)
		}
		return v, nil
	case FormatMarkdown:
		return parseMarkdown(data)
	default:
		return string(data), nil
	}
}

// EmptyValue returns the canonical empty value for a format (§8).
func EmptyValue(format Format) interface{} {
	switch format {
	case FormatJSON, FormatJSONC:
		return map[string]interface{}{}
	case FormatYAML:
		return map[string]interface{}{}
	case FormatTOML:
		return map[string]interface{}{}
	case FormatMarkdown:
		return Frontmatter{Data: map[string]interface{}{}, Body: ""}
	default:
		return ""
	}
}

// Serialize encodes v per format. If v is already a string (e.g. a
// $pipe step already produced text), it is passed through verbatim
// (§4.4 step 11).
func Serialize(v interface{}, format Format) ([]byte, error) {
	const op errors.Op = "docformat.Serialize"

	if s, ok := v.(string); ok {
		return []byte(s), nil
	}

	switch format {
	case FormatJSON, FormatJSONC:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, errors.E(op, errors.Internal, err)
		}
		return append(out, '\n'), nil
	case FormatYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return nil, errors.E(op, errors.Internal, err)
		}
		return out, nil
	case FormatTOML:
		out, err := toml.Marshal(v)
		if err != nil {
			return nil, errors.E(op, errors.Internal, err)
		}
		return out, nil
	case FormatMarkdown:
		fm, ok := v.(Frontmatter)
		if !ok {
			return nil, errors.E(op, errors.Internal, fmt.Errorf("expected docformat.Frontmatter, got %T", v))
		}
		return serializeMarkdown(fm)
	default:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		return []byte(fmt.Sprint(v)), nil
	}
}

// normalizeYAML converts yaml.v3's map[string]interface{} decoding
// (which already produces string keys for mapping nodes) recursively,
// so downstream map-pipeline code can treat YAML and JSON documents
// identically.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = normalizeYAML(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = normalizeYAML(vv)
		}
		return out
	default:
		return v
	}
}
