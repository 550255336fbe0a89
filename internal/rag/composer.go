// Package rag turns a question into a grounded, citation-bearing answer:
// the composer selects a bounded context from retrieval, the synthesizer
// prompts the model over that context, and the citation and confidence
// helpers score the result.
package rag

import (
	"context"

	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/internal/retriever"
)

// Searcher is the retrieval dependency of the composer, satisfied by
// *retriever.Retriever.
type Searcher interface {
	Search(ctx context.Context, query string, filters models.SearchFilters, limit int) ([]retriever.Candidate, error)
}

// Composer selects the entries a question is answered against.
type Composer struct {
	searcher Searcher
	// minScore drops weakly relevant candidates even when slots remain;
	// an underfilled context beats a padded one.
	minScore float64
	logger   *zap.Logger
}

func NewComposer(searcher Searcher, minScore float64, logger *zap.Logger) *Composer {
	return &Composer{searcher: searcher, minScore: minScore, logger: logger}
}

// Compose retrieves and filters context for a question. maxEntries of zero
// means no context at all, which is a valid request. The returned slice is
// ordered by descending relevance; its positions are the [Entry N] numbers
// the synthesizer shows the model.
func (c *Composer) Compose(ctx context.Context, question string, filters models.SearchFilters, maxEntries int) ([]models.ContextEntry, error) {
	if maxEntries <= 0 {
		return nil, nil
	}

	candidates, err := c.searcher.Search(ctx, question, filters, maxEntries)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ContextEntry, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Score < c.minScore {
			continue
		}
		entries = append(entries, models.ContextEntry{
			EntryID:        cand.Entry.ID,
			Title:          cand.Entry.Title,
			Body:           cand.Entry.Body,
			EntryDate:      cand.Entry.EntryDate,
			Tags:           cand.Tags,
			RelevanceScore: cand.Score,
			Snippet:        cand.Snippet,
		})
	}

	c.logger.Debug("composed answer context",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(entries)))
	return entries, nil
}
