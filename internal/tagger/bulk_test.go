package tagger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/internal/storage"
	"github.com/xaenox/journal-engine/internal/vocab"
	"github.com/xaenox/journal-engine/pkg/config"
)

func seedBulkEntries(t *testing.T, store storage.Storage, ids ...string) {
	t.Helper()
	for i, id := range ids {
		err := store.SaveEntry(context.Background(), &models.Entry{
			ID:        id,
			Body:      "Long day at work, then gym for health.",
			EntryDate: time.Date(2024, 7, 1+i, 0, 0, 0, 0, time.UTC),
			TextHash:  id,
		})
		require.NoError(t, err)
	}
}

func TestBulkProcess(t *testing.T) {
	tg := New(config.TaggerConfig{MaxTags: 5, ConfidenceThreshold: 0.5}, zap.NewNop())
	vocabulary := vocab.DefaultVocabulary()

	t.Run("results preserve input length and order", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		seedBulkEntries(t, store, "one", "two", "three")
		p := NewBulkProcessor(tg, store, 2, zap.NewNop())

		ids := []string{"one", "two", "three"}
		results := p.Process(context.Background(), nil, ids, vocabulary, 0, -1)
		require.Len(t, results, 3)
		for i, id := range ids {
			assert.Equal(t, id, results[i].EntryID)
			assert.True(t, results[i].Success)
			assert.NotEmpty(t, results[i].Suggestions)
		}
	})

	t.Run("one failing entry does not abort the batch", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		seedBulkEntries(t, store, "known")
		p := NewBulkProcessor(tg, store, 2, zap.NewNop())

		results := p.Process(context.Background(), nil, []string{"known", "missing", "known"}, vocabulary, 0, -1)
		require.Len(t, results, 3)
		assert.True(t, results[0].Success)
		assert.False(t, results[1].Success)
		assert.Contains(t, results[1].Error, "not found")
		assert.True(t, results[2].Success)
	})

	t.Run("cancellation marks unprocessed items failed", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		seedBulkEntries(t, store, "a", "b")
		p := NewBulkProcessor(tg, store, 1, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := p.Process(ctx, nil, []string{"a", "b"}, vocabulary, 0, -1)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.False(t, r.Success)
			assert.NotEmpty(t, r.Error)
		}
	})

	t.Run("worker count below one is clamped", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		seedBulkEntries(t, store, "solo")
		p := NewBulkProcessor(tg, store, 0, zap.NewNop())

		results := p.Process(context.Background(), nil, []string{"solo"}, vocabulary, 0, -1)
		require.Len(t, results, 1)
		assert.True(t, results[0].Success)
	})
}
