// Package retriever ranks journal entries against a query. It combines
// lexical full-text scoring from the entry store with optional semantic
// scoring over stored embeddings, and falls back to lexical-only whenever
// the semantic index is stale or absent.
package retriever

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/apperr"
	"github.com/xaenox/journal-engine/internal/llm"
	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/internal/storage"
	"github.com/xaenox/journal-engine/pkg/config"
)

// Candidate is one ranked retrieval hit. Score is in [0,1] after
// within-set normalization (and weighting, for hybrid results).
type Candidate struct {
	Entry   *models.Entry
	Tags    []string
	Score   float64
	Snippet string
}

type Retriever struct {
	store storage.Storage
	// embedder may be nil, which disables semantic retrieval outright.
	embedder llm.Embedder
	// weight is the semantic share of the hybrid score; lexical gets the
	// remainder. Fixed by configuration, default 0.6.
	weight       float64
	snippetChars int
	logger       *zap.Logger
}

func New(store storage.Storage, embedder llm.Embedder, cfg config.RetrievalConfig, logger *zap.Logger) *Retriever {
	return &Retriever{
		store:        store,
		embedder:     embedder,
		weight:       cfg.HybridWeight,
		snippetChars: cfg.SnippetChars,
		logger:       logger,
	}
}

// Search returns up to limit candidates ranked by hybrid relevance. An
// empty result is not an error.
func (r *Retriever) Search(ctx context.Context, query string, filters models.SearchFilters, limit int) ([]Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Over-fetch before filtering so date/tag filters do not starve the
	// result set.
	fetch := limit * 3
	if fetch < 10 {
		fetch = 10
	}

	lexical, err := r.store.SearchLexical(ctx, query, fetch)
	if err != nil {
		return nil, err
	}
	lexScores := normalize(lexical)

	semScores, semantic := map[string]float64{}, map[string]*models.Entry{}
	if r.semanticUsable(ctx) {
		semScores, semantic, err = r.semanticScores(ctx, query)
		if err != nil {
			// Semantic trouble degrades to lexical-only rather than
			// failing the query.
			r.logger.Warn("semantic retrieval unavailable, using lexical only", zap.Error(err))
			semScores, semantic = map[string]float64{}, map[string]*models.Entry{}
		}
	}

	entries := make(map[string]*models.Entry, len(lexical))
	for _, hit := range lexical {
		entries[hit.Entry.ID] = hit.Entry
	}
	for id, e := range semantic {
		if _, ok := entries[id]; !ok {
			entries[id] = e
		}
	}

	var candidates []Candidate
	for id, entry := range entries {
		var score float64
		if len(semScores) > 0 {
			score = r.weight*semScores[id] + (1-r.weight)*lexScores[id]
		} else {
			score = lexScores[id]
		}
		candidates = append(candidates, Candidate{
			Entry:   entry,
			Score:   score,
			Snippet: Snippet(entry.Body, query, r.snippetChars),
		})
	}

	candidates, err = r.applyFilters(ctx, candidates, filters)
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Entry.EntryDate.After(candidates[j].Entry.EntryDate)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// semanticUsable gates semantic retrieval on the index state: the backing
// index must exist and have been built with the current embedding model.
func (r *Retriever) semanticUsable(ctx context.Context) bool {
	if r.embedder == nil {
		return false
	}
	state, err := r.store.GetIndexState(ctx)
	if err != nil {
		if !apperr.IsNotFound(err) {
			r.logger.Warn("failed to read index state", zap.Error(err))
		}
		return false
	}
	return state.EmbeddingModel == r.embedder.EmbeddingModel()
}

func (r *Retriever) semanticScores(ctx context.Context, query string) (map[string]float64, map[string]*models.Entry, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	entries, err := r.store.EntriesWithEmbeddings(ctx)
	if err != nil {
		return nil, nil, err
	}

	raw := make(map[string]float64, len(entries))
	byID := make(map[string]*models.Entry, len(entries))
	for _, entry := range entries {
		sim := CosineSimilarity(queryVec, entry.Embedding)
		if sim <= 0 {
			continue
		}
		raw[entry.ID] = sim
		byID[entry.ID] = entry
	}

	return normalizeMap(raw), byID, nil
}

func (r *Retriever) applyFilters(ctx context.Context, candidates []Candidate, filters models.SearchFilters) ([]Candidate, error) {
	var out []Candidate
	for _, c := range candidates {
		if dr := filters.DateRange; dr != nil {
			if c.Entry.EntryDate.Before(dr.From) || c.Entry.EntryDate.After(dr.To) {
				continue
			}
		}
		tags, err := r.store.EntryTagNames(ctx, c.Entry.ID)
		if err != nil {
			return nil, err
		}
		c.Tags = tags
		if len(filters.Tags) > 0 && !hasAnyTag(tags, filters.Tags) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

// normalize min/max-scales raw lexical scores into [0,1] within the
// result set. A single-element or constant set maps to 1.
func normalize(hits []storage.ScoredEntry) map[string]float64 {
	raw := make(map[string]float64, len(hits))
	for _, h := range hits {
		raw[h.Entry.ID] = h.Score
	}
	return normalizeMap(raw)
}

func normalizeMap(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return raw
	}
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range raw {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	out := make(map[string]float64, len(raw))
	for id, v := range raw {
		if max == min {
			out[id] = 1
		} else {
			out[id] = (v - min) / (max - min)
		}
	}
	return out
}

// CosineSimilarity computes similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
