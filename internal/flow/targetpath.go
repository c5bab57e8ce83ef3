package flow

import (
	"path"
	"regexp"
	"strings"
)

// ResolveTargetPath implements §4.4's "Target path resolution for
// globbed to": a recursive "**" in the to pattern maps the matched
// sub-path verbatim; a single-level "*" is replaced by the source's
// whole base filename, extension included, whatever follows the "*".
// Platform-suffixed filenames (name.<platformId>.ext) are
// stripped from the final target filename regardless of which form
// matched.
func ResolveTargetPath(fromPattern, matchedPath, toPattern, platformID string) string {
	base := stripPlatformSuffix(path.Base(matchedPath), platformID)

	if strings.Contains(toPattern, "**") {
		sub := matchedSubPath(fromPattern, matchedPath)
		sub = stripPlatformSuffix(sub, platformID)
		return strings.Replace(toPattern, "**", sub, 1)
	}

	if strings.Contains(toPattern, "*") {
		return strings.Replace(toPattern, "*", base, 1)
	}

	return toPattern
}

// matchedSubPath returns the portion of matchedPath that corresponds to
// the "**" segment of fromPattern: everything after the longest fixed
// (non-glob) directory prefix fromPattern specifies.
func matchedSubPath(fromPattern, matchedPath string) string {
	fixedSegs := strings.Split(fromPattern, "/")
	cut := 0
	for _, seg := range fixedSegs {
		if strings.ContainsAny(seg, "*?[{") {
			break
		}
		cut++
	}
	matchSegs := strings.Split(matchedPath, "/")
	if cut >= len(matchSegs) {
		return path.Base(matchedPath)
	}
	return strings.Join(matchSegs[cut:], "/")
}

var platformSuffixRe = regexp.MustCompile(`\.([A-Za-z0-9_-]+)(\.[A-Za-z0-9]+)$`)

// stripPlatformSuffix removes a ".<platformId>" component immediately
// before the final extension, e.g. "rules.cursor.md" -> "rules.md".
func stripPlatformSuffix(name, platformID string) string {
	if platformID == "" {
		return name
	}
	m := platformSuffixRe.FindStringSubmatch(name)
	if m == nil || m[1] != platformID {
		return name
	}
	return strings.TrimSuffix(name, "."+platformID+m[2]) + m[2]
}
