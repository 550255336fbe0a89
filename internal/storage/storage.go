package storage

import (
	"context"

	"github.com/xaenox/journal-engine/internal/models"
)

// ScoredEntry is a lexical search hit with its raw relevance score.
type ScoredEntry struct {
	Entry *models.Entry
	Score float64
}

// EntryStore reads journal entries. The engine never mutates entry bodies;
// SaveEntry exists for importers, seeding and tests.
type EntryStore interface {
	SaveEntry(ctx context.Context, entry *models.Entry) error
	GetEntry(ctx context.Context, id string) (*models.Entry, error)
	SearchLexical(ctx context.Context, query string, limit int) ([]ScoredEntry, error)
	EntriesWithEmbeddings(ctx context.Context) ([]*models.Entry, error)
	EntryTagNames(ctx context.Context, entryID string) ([]string, error)

	GetIndexState(ctx context.Context) (*models.IndexState, error)
	SetIndexState(ctx context.Context, state models.IndexState) error
}

// VocabularyStore manages the controlled vocabulary. Tag and alias writes
// are transactional; conflict checks cover tag names and alias text across
// the whole vocabulary.
type VocabularyStore interface {
	CreateTag(ctx context.Context, tag models.Tag, aliases []string) (*models.Tag, error)
	DeleteTag(ctx context.Context, name string) error
	GetVocabulary(ctx context.Context) (models.ControlledVocabulary, error)
	AddEntryTag(ctx context.Context, entryID, tagName string) error
	TagStatistics(ctx context.Context) ([]models.TagStatistic, error)
}

// ConversationStore persists conversations, messages and citations.
// AppendTurn is atomic: both messages and all citations commit, or none.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
	DeleteConversation(ctx context.Context, id string) error
	AppendTurn(ctx context.Context, conversationID string, user, assistant models.Message) error
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
}

type Storage interface {
	EntryStore
	VocabularyStore
	ConversationStore
	Close() error
}
