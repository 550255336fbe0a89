package retriever

import (
	"strings"
	"unicode"
)

// Snippet extracts a window of at most maxChars around the best query
// match in content. Windows start and end on word boundaries; the text is
// never cut mid-word. When nothing matches, the snippet is the leading
// window of the content.
func Snippet(content, query string, maxChars int) string {
	content = strings.TrimSpace(content)
	if maxChars <= 0 || content == "" {
		return ""
	}
	if len(content) <= maxChars {
		return content
	}

	center := bestMatchOffset(content, query)

	start := center - maxChars/2
	if start < 0 {
		start = 0
	}
	end := start + maxChars
	if end > len(content) {
		end = len(content)
		start = end - maxChars
	}

	// Pull both edges in to the nearest word boundary.
	if start > 0 {
		for start < end && !unicode.IsSpace(rune(content[start-1])) {
			start++
		}
	}
	if end < len(content) {
		for end > start && !unicode.IsSpace(rune(content[end])) {
			end--
		}
	}

	snippet := strings.TrimSpace(content[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}
	return snippet
}

// bestMatchOffset finds the position of the longest query term present in
// the content, preferring earlier occurrences on equal length.
func bestMatchOffset(content, query string) int {
	lower := strings.ToLower(content)

	if query != "" {
		if pos := strings.Index(lower, strings.ToLower(query)); pos >= 0 {
			return pos
		}
	}

	best, bestLen := 0, 0
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if len(term) <= bestLen {
			continue
		}
		if pos := strings.Index(lower, term); pos >= 0 {
			best, bestLen = pos, len(term)
		}
	}
	return best
}
