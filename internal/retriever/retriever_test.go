package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/internal/storage"
	"github.com/xaenox/journal-engine/pkg/config"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbeddingModel() string { return "test-embed" }

func testConfig() config.RetrievalConfig {
	return config.RetrievalConfig{HybridWeight: 0.6, MinScore: 0.3, SnippetChars: 240}
}

func seedEntry(t *testing.T, store storage.Storage, id, title, body string, date time.Time, embedding []float32) {
	t.Helper()
	err := store.SaveEntry(context.Background(), &models.Entry{
		ID:        id,
		Title:     title,
		Body:      body,
		EntryDate: date,
		TextHash:  id,
		Embedding: embedding,
	})
	require.NoError(t, err)
}

func TestSearchLexicalOnly(t *testing.T) {
	store := storage.NewMemoryStorage()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seedEntry(t, store, "run", "Morning run", "Went for a long run by the river.", day, nil)
	seedEntry(t, store, "swim", "Pool day", "Swam forty laps at the pool.", day.AddDate(0, 0, 1), nil)
	seedEntry(t, store, "cook", "Dinner", "Cooked pasta for friends.", day.AddDate(0, 0, 2), nil)

	r := New(store, nil, testConfig(), zap.NewNop())

	results, err := r.Search(context.Background(), "run river", models.SearchFilters{}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "run", results[0].Entry.ID)
	for _, c := range results {
		assert.NotEqual(t, "cook", c.Entry.ID)
	}
}

func TestSearchSemanticGating(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no index state skips the embedder", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		seedEntry(t, store, "a", "", "running is great", day, []float32{1, 0})
		embedder := &fakeEmbedder{vector: []float32{1, 0}}

		r := New(store, embedder, testConfig(), zap.NewNop())
		_, err := r.Search(ctx, "running", models.SearchFilters{}, 5)
		require.NoError(t, err)
		assert.Zero(t, embedder.calls)
	})

	t.Run("stale index model skips the embedder", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		seedEntry(t, store, "a", "", "running is great", day, []float32{1, 0})
		require.NoError(t, store.SetIndexState(ctx, models.IndexState{
			EmbeddingModel: "old-model",
			BuiltAt:        time.Now(),
		}))
		embedder := &fakeEmbedder{vector: []float32{1, 0}}

		r := New(store, embedder, testConfig(), zap.NewNop())
		_, err := r.Search(ctx, "running", models.SearchFilters{}, 5)
		require.NoError(t, err)
		assert.Zero(t, embedder.calls)
	})

	t.Run("matching index enables hybrid scoring", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		// Both entries mention the query term; only one is semantically close.
		seedEntry(t, store, "near", "", "travel plans for the trip", day, []float32{1, 0})
		seedEntry(t, store, "far", "", "travel paperwork chores and more words here", day.AddDate(0, 0, 1), []float32{0, 1})
		require.NoError(t, store.SetIndexState(ctx, models.IndexState{
			EmbeddingModel: "test-embed",
			BuiltAt:        time.Now(),
		}))
		embedder := &fakeEmbedder{vector: []float32{1, 0}}

		r := New(store, embedder, testConfig(), zap.NewNop())
		results, err := r.Search(ctx, "travel", models.SearchFilters{}, 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, 1, embedder.calls)
		assert.Equal(t, "near", results[0].Entry.ID)
	})

	t.Run("embedder failure degrades to lexical", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		seedEntry(t, store, "a", "", "running is great", day, []float32{1, 0})
		require.NoError(t, store.SetIndexState(ctx, models.IndexState{
			EmbeddingModel: "test-embed",
			BuiltAt:        time.Now(),
		}))
		embedder := &fakeEmbedder{err: assert.AnError}

		r := New(store, embedder, testConfig(), zap.NewNop())
		results, err := r.Search(ctx, "running", models.SearchFilters{}, 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].Entry.ID)
	})
}

func TestSearchFilters(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seedEntry(t, store, "early", "", "gym workout session", day, nil)
	seedEntry(t, store, "late", "", "gym workout session", day.AddDate(0, 1, 0), nil)

	_, err := store.CreateTag(ctx, models.Tag{Name: "health"}, nil)
	require.NoError(t, err)
	require.NoError(t, store.AddEntryTag(ctx, "late", "health"))

	r := New(store, nil, testConfig(), zap.NewNop())

	t.Run("date range is inclusive", func(t *testing.T) {
		results, err := r.Search(ctx, "gym", models.SearchFilters{
			DateRange: &models.DateRange{From: day, To: day},
		}, 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "early", results[0].Entry.ID)
	})

	t.Run("tag filter matches case-insensitively", func(t *testing.T) {
		results, err := r.Search(ctx, "gym", models.SearchFilters{Tags: []string{"Health"}}, 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "late", results[0].Entry.ID)
	})
}

func TestSearchLimits(t *testing.T) {
	store := storage.NewMemoryStorage()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d"} {
		seedEntry(t, store, id, "", "shared keyword text", day.AddDate(0, 0, i), nil)
	}
	r := New(store, nil, testConfig(), zap.NewNop())

	t.Run("truncated to limit", func(t *testing.T) {
		results, err := r.Search(context.Background(), "keyword", models.SearchFilters{}, 2)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("zero limit returns nothing", func(t *testing.T) {
		results, err := r.Search(context.Background(), "keyword", models.SearchFilters{}, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("recency breaks score ties", func(t *testing.T) {
		results, err := r.Search(context.Background(), "keyword", models.SearchFilters{}, 4)
		require.NoError(t, err)
		require.Len(t, results, 4)
		assert.Equal(t, "d", results[0].Entry.ID)
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}
