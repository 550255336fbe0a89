package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/internal/retriever"
)

type stubSearcher struct {
	candidates []retriever.Candidate
	calls      int
}

func (s *stubSearcher) Search(ctx context.Context, query string, filters models.SearchFilters, limit int) ([]retriever.Candidate, error) {
	s.calls++
	return s.candidates, nil
}

func candidate(id string, score float64, date time.Time) retriever.Candidate {
	return retriever.Candidate{
		Entry: &models.Entry{
			ID:        id,
			Title:     "entry " + id,
			Body:      "body of " + id,
			EntryDate: date,
		},
		Score:   score,
		Snippet: "snippet of " + id,
	}
}

func TestComposerCompose(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("drops candidates below the relevance floor", func(t *testing.T) {
		searcher := &stubSearcher{candidates: []retriever.Candidate{
			candidate("a", 0.9, day),
			candidate("b", 0.9, day.AddDate(0, 0, 1)),
			candidate("c", 0.4, day.AddDate(0, 0, 2)),
		}}
		composer := NewComposer(searcher, 0.5, zap.NewNop())

		entries, err := composer.Compose(context.Background(), "question", models.SearchFilters{}, 3)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "a", entries[0].EntryID)
		assert.Equal(t, "b", entries[1].EntryID)
	})

	t.Run("zero max entries skips retrieval", func(t *testing.T) {
		searcher := &stubSearcher{candidates: []retriever.Candidate{candidate("a", 0.9, day)}}
		composer := NewComposer(searcher, 0.3, zap.NewNop())

		entries, err := composer.Compose(context.Background(), "question", models.SearchFilters{}, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Zero(t, searcher.calls)
	})

	t.Run("maps candidate fields through", func(t *testing.T) {
		searcher := &stubSearcher{candidates: []retriever.Candidate{candidate("a", 0.8, day)}}
		composer := NewComposer(searcher, 0.3, zap.NewNop())

		entries, err := composer.Compose(context.Background(), "question", models.SearchFilters{}, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a", entries[0].EntryID)
		assert.Equal(t, "entry a", entries[0].Title)
		assert.Equal(t, "body of a", entries[0].Body)
		assert.Equal(t, "snippet of a", entries[0].Snippet)
		assert.Equal(t, 0.8, entries[0].RelevanceScore)
		assert.Equal(t, day, entries[0].EntryDate)
	})
}
