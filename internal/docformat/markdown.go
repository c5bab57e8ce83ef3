package docformat

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opkgdev/opkg/internal/errors"
)

const frontmatterDelim = "---"

// parseMarkdown splits a document into its YAML frontmatter and body
// (§4.4 step 3). A document with no frontmatter delimiters parses to an
// empty frontmatter map and the whole file as body.
func parseMarkdown(data []byte) (Frontmatter, error) {
	const op errors.Op = "docformat.parseMarkdown"

	text := string(data)
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelim {
		return Frontmatter{Data: map[string]interface{}{}, Body: text}, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelim {
			end = i
			break
		}
	}
	if end < 0 {
		return Frontmatter{Data: map[string]interface{}{}, Body: text}, nil
	}

	fmBlock := strings.Join(lines[1:end], "\n")
	body := strings.Join(lines[end+1:], "\n")
	body = strings.TrimPrefix(body, "\n")

	var raw map[string]interface{}
	if strings.TrimSpace(fmBlock) != "" {
		if err := yaml.Unmarshal([]byte(fmBlock), &raw); err != nil {
			return Frontmatter{}, errors.E(op, errors.Parse, err)
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	return Frontmatter{Data: normalizeYAML(raw).(map[string]interface{}), Body: body}, nil
}

// serializeMarkdown re-serializes a Frontmatter to
// "---frontmatter---\nbody" (§4.4 step 11).
func serializeMarkdown(fm Frontmatter) ([]byte, error) {
	const op errors.Op = "docformat.serializeMarkdown"

	if len(fm.Data) == 0 {
		return []byte(fm.Body), nil
	}

	fmBytes, err := yaml.Marshal(fm.Data)
	if err != nil {
		return nil, errors.E(op, errors.Internal, err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim + "\n")
	buf.Write(fmBytes)
	buf.WriteString(frontmatterDelim + "\n")
	buf.WriteString(fm.Body)
	return buf.Bytes(), nil
}
