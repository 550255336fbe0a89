// Package engine is the facade over retrieval, synthesis, tagging and
// conversation management. Callers hand it raw requests; it validates
// them, applies the request timeout and orchestrates the components.
package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/apperr"
	"github.com/xaenox/journal-engine/internal/conversation"
	"github.com/xaenox/journal-engine/internal/llm"
	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/internal/rag"
	"github.com/xaenox/journal-engine/internal/retriever"
	"github.com/xaenox/journal-engine/internal/storage"
	"github.com/xaenox/journal-engine/internal/tagger"
	"github.com/xaenox/journal-engine/internal/vocab"
	"github.com/xaenox/journal-engine/pkg/config"
)

// defaultContextEntries is the context size used when a caller does not
// set MaxContextEntries.
const defaultContextEntries = 5

// AskRequest is a question against the journal. Provider and Model are
// raw caller input, validated here. MaxContextEntries below zero means the
// default; exactly zero means answer with no context.
type AskRequest struct {
	Question          string
	ConversationID    string
	Provider          string
	Model             string
	Filters           models.SearchFilters
	MaxContextEntries int
}

// AskResponse is a grounded answer plus the conversation it was recorded
// in. ContextUsed is the exact entry set the answer was synthesized over;
// every citation resolves into it.
type AskResponse struct {
	ConversationID   string                `json:"conversation_id"`
	MessageID        string                `json:"message_id"`
	Answer           string                `json:"answer"`
	Citations        []models.Citation     `json:"citations,omitempty"`
	ContextUsed      []models.ContextEntry `json:"context_used,omitempty"`
	Confidence       float64               `json:"confidence"`
	LowConfidence    bool                  `json:"low_confidence"`
	ModelUsed        string                `json:"model_used"`
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
}

type Engine struct {
	store         storage.Storage
	factory       *llm.Factory
	composer      *rag.Composer
	synthesizer   *rag.Synthesizer
	conversations *conversation.Manager
	vocabulary    *vocab.Service
	tagger        *tagger.Tagger
	bulk          *tagger.BulkProcessor
	timeout       time.Duration
	logger        *zap.Logger
}

// New wires the engine from configuration. The embedder provider mirrors
// the generation default (Ollama) so local setups work with no API key.
func New(cfg *config.Config, store storage.Storage, logger *zap.Logger) *Engine {
	factory := llm.NewFactory(cfg, logger)

	var embedder llm.Embedder
	if e, err := factory.Embedder(models.ProviderOllama); err == nil {
		embedder = e
	}

	ret := retriever.New(store, embedder, cfg.Retrieval, logger)
	tg := tagger.New(cfg.Tagger, logger)

	return &Engine{
		store:         store,
		factory:       factory,
		composer:      rag.NewComposer(ret, cfg.Retrieval.MinScore, logger),
		synthesizer:   rag.NewSynthesizer(logger),
		conversations: conversation.NewManager(store, logger),
		vocabulary:    vocab.NewService(store, logger),
		tagger:        tg,
		bulk:          tagger.NewBulkProcessor(tg, store, cfg.Engine.BulkWorkers, logger),
		timeout:       cfg.Engine.RequestTimeout,
		logger:        logger,
	}
}

// AskQuestion answers a question from the journal and records the turn.
// The conversation is created lazily on the first successful answer; a
// failed synthesis leaves no trace, so no conversation ever holds a
// question without its answer.
func (e *Engine) AskQuestion(ctx context.Context, req AskRequest) (*AskResponse, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, "question is required")
	}
	provider, err := models.ParseProvider(req.Provider)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidInput, err, "invalid provider")
	}
	client, err := e.factory.Client(models.ModelRef{Provider: provider, Model: req.Model})
	if err != nil {
		return nil, err
	}

	maxEntries := req.MaxContextEntries
	if maxEntries < 0 {
		maxEntries = defaultContextEntries
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var history []models.Message
	if req.ConversationID != "" {
		history, err = e.conversations.History(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
	}

	contextEntries, err := e.composer.Compose(ctx, question, req.Filters, maxEntries)
	if err != nil {
		return nil, err
	}

	answer, err := e.synthesizer.Synthesize(ctx, client, question, contextEntries, history)
	if err != nil {
		return nil, err
	}

	conv, err := e.conversations.Resolve(ctx, req.ConversationID, question, provider)
	if err != nil {
		return nil, err
	}
	messageID, err := e.conversations.RecordTurn(ctx, conv.ID, question, answer.Text, answer.Citations)
	if err != nil {
		return nil, err
	}

	return &AskResponse{
		ConversationID:   conv.ID,
		MessageID:        messageID,
		Answer:           answer.Text,
		Citations:        answer.Citations,
		ContextUsed:      contextEntries,
		Confidence:       answer.Confidence,
		LowConfidence:    answer.Confidence < rag.LowConfidenceThreshold,
		ModelUsed:        answer.ModelUsed,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// ExtractTagsForEntry suggests vocabulary tags for one stored entry.
// maxTags and threshold override the configured defaults when maxTags is
// positive and threshold is non-negative.
func (e *Engine) ExtractTagsForEntry(ctx context.Context, entryID, providerRaw, model string, maxTags int, threshold float64) (*models.TagExtractionResult, error) {
	start := time.Now()

	client, err := e.clientFor(providerRaw, model)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	entry, err := e.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	vocabulary, err := e.vocabulary.Vocabulary(ctx)
	if err != nil {
		return nil, err
	}

	suggestions, err := e.tagger.Extract(ctx, client, entry.Body, vocabulary, maxTags, threshold)
	if err != nil {
		return nil, err
	}

	return &models.TagExtractionResult{
		Suggestions:      suggestions,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ModelUsed:        client.Model(),
	}, nil
}

// BulkExtractTags runs extraction over many entries with per-item
// isolation. The returned slice matches entryIDs in length and order.
func (e *Engine) BulkExtractTags(ctx context.Context, entryIDs []string, providerRaw, model string, maxTags int, threshold float64) ([]models.BulkTagResult, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}
	client, err := e.clientFor(providerRaw, model)
	if err != nil {
		return nil, err
	}
	vocabulary, err := e.vocabulary.Vocabulary(ctx)
	if err != nil {
		return nil, err
	}
	return e.bulk.Process(ctx, client, entryIDs, vocabulary, maxTags, threshold), nil
}

func (e *Engine) clientFor(providerRaw, model string) (llm.Client, error) {
	provider, err := models.ParseProvider(providerRaw)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidInput, err, "invalid provider")
	}
	return e.factory.Client(models.ModelRef{Provider: provider, Model: model})
}

func (e *Engine) CreateCustomTag(ctx context.Context, name, description, category string, aliases []string) (*models.Tag, error) {
	return e.vocabulary.CreateCustomTag(ctx, name, description, category, aliases)
}

func (e *Engine) DeleteTag(ctx context.Context, name string) error {
	return e.vocabulary.DeleteTag(ctx, name)
}

func (e *Engine) Vocabulary(ctx context.Context) (models.ControlledVocabulary, error) {
	return e.vocabulary.Vocabulary(ctx)
}

func (e *Engine) AcceptTagSuggestion(ctx context.Context, entryID, tagName string) error {
	return e.vocabulary.AcceptSuggestion(ctx, entryID, tagName)
}

func (e *Engine) TagStatistics(ctx context.Context) ([]models.TagStatistic, error) {
	return e.vocabulary.TagStatistics(ctx)
}

func (e *Engine) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	return e.conversations.List(ctx)
}

func (e *Engine) ConversationHistory(ctx context.Context, conversationID string) ([]models.Message, error) {
	return e.conversations.History(ctx, conversationID)
}

func (e *Engine) DeleteConversation(ctx context.Context, conversationID string) error {
	return e.conversations.Delete(ctx, conversationID)
}
