package rag

import (
	"regexp"
	"strconv"
)

// Citation markers are the only bridge between free-form model output and
// canonical entries, so parsing is kept in one place with a fixed policy:
// markers may be written as [N] or [Entry N]; markers outside 1..contextSize
// are synthesis artifacts and are dropped; repeated markers collapse to
// their first occurrence.
var citationMarker = regexp.MustCompile(`\[(?:[Ee]ntry\s+)?(\d+)\]`)

// ParseCitationMarkers extracts the distinct in-range context indexes
// (1-based) referenced by an answer, in order of first appearance.
func ParseCitationMarkers(answer string, contextSize int) []int {
	seen := make(map[int]bool)
	var order []int
	for _, m := range citationMarker.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > contextSize {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		order = append(order, n)
	}
	return order
}
