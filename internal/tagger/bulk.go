package tagger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/llm"
	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/internal/storage"
)

// BulkProcessor runs tag extraction over many entries with a bounded
// worker pool. Items are isolated: one entry failing, or being unknown,
// never aborts the batch.
type BulkProcessor struct {
	tagger  *Tagger
	entries storage.EntryStore
	workers int
	logger  *zap.Logger
}

func NewBulkProcessor(tagger *Tagger, entries storage.EntryStore, workers int, logger *zap.Logger) *BulkProcessor {
	if workers < 1 {
		workers = 1
	}
	return &BulkProcessor{tagger: tagger, entries: entries, workers: workers, logger: logger}
}

// Process extracts tags for every entry id. The result slice has exactly
// one element per input id, in input order, each marked success or failure
// independently. Cancellation stops scheduling new items; items never
// started are reported as failed with the context error. maxTags and
// threshold follow the same default rules as Tagger.Extract.
func (p *BulkProcessor) Process(ctx context.Context, client llm.Client, entryIDs []string, vocab models.ControlledVocabulary, maxTags int, threshold float64) []models.BulkTagResult {
	results := make([]models.BulkTagResult, len(entryIDs))

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i, id := range entryIDs {
		if ctx.Err() != nil {
			results[i] = models.BulkTagResult{EntryID: id, Success: false, Error: ctx.Err().Error()}
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.processOne(ctx, client, id, vocab, maxTags, threshold)
		}(i, id)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	p.logger.Info("bulk extraction finished",
		zap.Int("entries", len(entryIDs)),
		zap.Int("failed", failed))
	return results
}

func (p *BulkProcessor) processOne(ctx context.Context, client llm.Client, entryID string, vocab models.ControlledVocabulary, maxTags int, threshold float64) models.BulkTagResult {
	entry, err := p.entries.GetEntry(ctx, entryID)
	if err != nil {
		return models.BulkTagResult{EntryID: entryID, Success: false, Error: err.Error()}
	}

	suggestions, err := p.tagger.Extract(ctx, client, entry.Body, vocab, maxTags, threshold)
	if err != nil {
		return models.BulkTagResult{EntryID: entryID, Success: false, Error: err.Error()}
	}
	return models.BulkTagResult{EntryID: entryID, Success: true, Suggestions: suggestions}
}
