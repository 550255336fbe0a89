package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCitationMarkers(t *testing.T) {
	t.Run("plain and entry-prefixed markers", func(t *testing.T) {
		got := ParseCitationMarkers("I ran on Monday [1] and swam on Friday [Entry 2].", 3)
		assert.Equal(t, []int{1, 2}, got)
	})

	t.Run("order of first appearance", func(t *testing.T) {
		got := ParseCitationMarkers("First [3], then [1], back to [3], and [2].", 3)
		assert.Equal(t, []int{3, 1, 2}, got)
	})

	t.Run("out of range markers dropped", func(t *testing.T) {
		got := ParseCitationMarkers("See [0], [4] and [12], but [2] is real.", 3)
		assert.Equal(t, []int{2}, got)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		got := ParseCitationMarkers("[1] [1] [1]", 2)
		assert.Equal(t, []int{1}, got)
	})

	t.Run("no markers", func(t *testing.T) {
		assert.Empty(t, ParseCitationMarkers("no citations here", 5))
	})

	t.Run("non numeric brackets ignored", func(t *testing.T) {
		assert.Empty(t, ParseCitationMarkers("[abc] [entry] [ 1 ]", 5))
	})
}
