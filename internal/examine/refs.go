package examine

import (
	"regexp"
	"strings"
)

// urlLike matches http(s) URL-like strings in text content. The match is
// deliberately loose — the mint records what an artifact could reach, and
// over-capture is resolved by the stable-sort-unique normalization.
var urlLike = regexp.MustCompile(`https?://[A-Za-z0-9][A-Za-z0-9.\-]*(?::\d+)?(?:/[^\s"'<>)\]}]*)?`)

// maxExternalRefsPerFile bounds how many refs a single file can contribute,
// keeping mints bounded on adversarial inputs.
const maxExternalRefsPerFile = 256

// extractExternalRefs returns the URL-like strings found in text content,
// trimmed of trailing punctuation. De-duplication and ordering happen later
// in mint normalization.
func extractExternalRefs(text string) []string {
	matches := urlLike.FindAllString(text, maxExternalRefsPerFile)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimRight(m, ".,;"))
	}
	return out
}

// DomainOf extracts the lowercased host portion of a URL-like string,
// without the port. It is used by the compare normalizer for the
// unique-domain and top-domain summaries.
func DomainOf(ref string) string {
	s := ref
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
