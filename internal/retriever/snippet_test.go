package retriever

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippet(t *testing.T) {
	t.Run("short content returned whole", func(t *testing.T) {
		assert.Equal(t, "a short note", Snippet("a short note", "note", 240))
	})

	t.Run("window centers on the match", func(t *testing.T) {
		content := strings.Repeat("filler words here ", 20) +
			"the marathon was exhausting " +
			strings.Repeat("more filler after ", 20)

		got := Snippet(content, "marathon", 80)
		assert.Contains(t, got, "marathon")
		assert.LessOrEqual(t, len(got), 80+6) // window plus ellipses
	})

	t.Run("never cuts mid-word", func(t *testing.T) {
		content := strings.Repeat("abcdefghij ", 50)
		got := Snippet(content, "zzz", 64)
		trimmed := strings.Trim(got, ".")
		for _, w := range strings.Fields(trimmed) {
			assert.Equal(t, "abcdefghij", w)
		}
	})

	t.Run("ellipses mark truncation", func(t *testing.T) {
		content := strings.Repeat("start ", 30) + "needle " + strings.Repeat("end ", 30)
		got := Snippet(content, "needle", 60)
		assert.True(t, strings.HasPrefix(got, "..."))
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.Equal(t, "", Snippet("", "query", 100))
		assert.Equal(t, "", Snippet("content", "query", 0))
	})
}
