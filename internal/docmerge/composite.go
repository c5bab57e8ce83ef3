package docmerge

import (
	"fmt"
	"strings"
)

const (
	compositeBeginFmt = "<!-- opkg:begin %s -->"
	compositeEndFmt   = "<!-- opkg:end %s -->"
)

// mergeComposite text-merges Markdown-like content by wrapping the
// incoming package's contribution in a pair of delimiter comments keyed
// by packageName, so multiple packages' contributions coexist and are
// individually removable by name (§4.4 step 9 "composite").
func mergeComposite(existing, incoming interface{}, packageName string) (Result, error) {
	existingText := toText(existing)
	incomingText := toText(incoming)

	block := RenderBlock(packageName, incomingText)

	if current := findBlock(existingText, packageName); current != "" {
		return Result{Value: replaceBlock(existingText, packageName, block)}, nil
	}

	merged := strings.TrimRight(existingText, "\n")
	if merged != "" {
		merged += "\n\n"
	}
	merged += block
	return Result{Value: merged}, nil
}

// RenderBlock wraps content in packageName's delimiter comments.
func RenderBlock(packageName, content string) string {
	return fmt.Sprintf("%s\n%s\n%s\n", fmt.Sprintf(compositeBeginFmt, packageName), strings.TrimRight(content, "\n"), fmt.Sprintf(compositeEndFmt, packageName))
}

// RemoveBlock strips packageName's delimiter-bounded block from text,
// for the uninstall engine's composite-target removal.
func RemoveBlock(text, packageName string) string {
	begin := fmt.Sprintf(compositeBeginFmt, packageName)
	end := fmt.Sprintf(compositeEndFmt, packageName)
	startIdx := strings.Index(text, begin)
	if startIdx < 0 {
		return text
	}
	endIdx := strings.Index(text[startIdx:], end)
	if endIdx < 0 {
		return text
	}
	endIdx = startIdx + endIdx + len(end)
	for endIdx < len(text) && text[endIdx] == '\n' {
		endIdx++
	}
	return text[:startIdx] + text[endIdx:]
}

// ExtractBlock returns the inner content of packageName's delimiter-
// bounded block (without the delimiter comments themselves), for the
// save engine's semantic-equivalence extraction of a composite target
// (§4.8 step 1). Returns ok=false if the block isn't present.
func ExtractBlock(text, packageName string) (content string, ok bool) {
	begin := fmt.Sprintf(compositeBeginFmt, packageName)
	end := fmt.Sprintf(compositeEndFmt, packageName)
	startIdx := strings.Index(text, begin)
	if startIdx < 0 {
		return "", false
	}
	contentStart := startIdx + len(begin)
	endIdx := strings.Index(text[contentStart:], end)
	if endIdx < 0 {
		return "", false
	}
	inner := text[contentStart : contentStart+endIdx]
	return strings.Trim(inner, "\n"), true
}

func findBlock(text, packageName string) string {
	begin := fmt.Sprintf(compositeBeginFmt, packageName)
	if !strings.Contains(text, begin) {
		return ""
	}
	return begin
}

func replaceBlock(text, packageName, newBlock string) string {
	stripped := RemoveBlock(text, packageName)
	stripped = strings.TrimRight(stripped, "\n")
	if stripped != "" {
		stripped += "\n\n"
	}
	return stripped + newBlock
}

func toText(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
