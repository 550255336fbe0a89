package models

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies a language-model backend. It is a closed set: raw
// provider strings are validated once at the boundary via ParseProvider.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// ParseProvider validates a provider identifier supplied by a caller.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOllama:
		return ProviderOllama, nil
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// ModelRef pairs a validated provider with a model name. An empty model
// means the provider default.
type ModelRef struct {
	Provider Provider `json:"provider"`
	Model    string   `json:"model"`
}

// Entry is one journal record. Entries are immutable once imported except
// for their tag associations; the engine never mutates bodies.
type Entry struct {
	ID            string    `json:"id"`
	Title         string    `json:"title,omitempty"`
	Body          string    `json:"body"`
	EntryDate     time.Time `json:"entry_date"`
	EntryTimezone string    `json:"entry_timezone"`
	SourcePath    string    `json:"source_path"`
	SourceType    string    `json:"source_type"`
	TextHash      string    `json:"text_hash"`
	Embedding     []float32 `json:"-"`
	Sentiment     *float64  `json:"sentiment,omitempty"`
	Language      string    `json:"language,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Tag is a canonical vocabulary tag. A tag has at most one parent; the tag
// graph is a tree, never a DAG.
type Tag struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ParentID    string    `json:"parent_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Alias is an alternate name for a tag. Alias text is unique across the
// whole vocabulary, not just within its owning tag.
type Alias struct {
	ID    string `json:"id"`
	TagID string `json:"tag_id"`
	Text  string `json:"text"`
}

// VocabularyTag is a tag joined with its aliases, the read shape consumed
// by the tag matcher.
type VocabularyTag struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// ControlledVocabulary is the closed tag set used to constrain extraction.
// Aliases maps alias text to the canonical tag name.
type ControlledVocabulary struct {
	Tags    []VocabularyTag   `json:"tags"`
	Aliases map[string]string `json:"aliases"`
}

// TagNames returns the canonical tag names in vocabulary order.
func (v ControlledVocabulary) TagNames() []string {
	names := make([]string, 0, len(v.Tags))
	for _, t := range v.Tags {
		names = append(names, t.Name)
	}
	return names
}

// Conversation is a question/answer thread. Created lazily on the first
// successful answer when the caller supplies no id.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Provider     Provider  `json:"provider"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConversationSummary is the listing shape for conversations.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a conversation, append-only and ordered by
// creation time.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Role           string     `json:"role"`
	Content        string     `json:"content"`
	Citations      []Citation `json:"citations,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Citation grounds a span of an assistant message in a source entry.
// CitationNumber is 1-based, unique within its message, assigned in order
// of first reference in the answer text.
type Citation struct {
	ID             string    `json:"id"`
	MessageID      string    `json:"message_id,omitempty"`
	EntryID        string    `json:"entry_id"`
	EntryTitle     string    `json:"entry_title,omitempty"`
	EntryDate      time.Time `json:"entry_date"`
	Snippet        string    `json:"snippet"`
	RelevanceScore float64   `json:"relevance_score"`
	CitationNumber int       `json:"citation_number"`
}

// ContextEntry is a transient, per-query view of an entry selected for the
// answer context. It references the entry, never copies ownership of it.
type ContextEntry struct {
	EntryID        string    `json:"entry_id"`
	Title          string    `json:"title,omitempty"`
	Body           string    `json:"body"`
	EntryDate      time.Time `json:"entry_date"`
	Tags           []string  `json:"tags,omitempty"`
	RelevanceScore float64   `json:"relevance_score"`
	Snippet        string    `json:"snippet"`
}

// EvidenceSpan is a fragment of source text supporting a tag suggestion.
// Offset is the byte position of the fragment in the analyzed text.
type EvidenceSpan struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// TagSuggestion is a transient extraction result; it is persisted only if
// accepted into an entry/tag association.
type TagSuggestion struct {
	Tag        string         `json:"tag"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Spans      []EvidenceSpan `json:"text_spans,omitempty"`
}

// TagExtractionResult is the response shape for single-entry extraction.
type TagExtractionResult struct {
	Suggestions      []TagSuggestion `json:"suggestions"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	ModelUsed        string          `json:"model_used"`
}

// BulkTagResult is one per-entry outcome of a bulk extraction. Exactly one
// of Suggestions or Error is meaningful, selected by Success.
type BulkTagResult struct {
	EntryID     string          `json:"entry_id"`
	Success     bool            `json:"success"`
	Suggestions []TagSuggestion `json:"suggestions,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// TagStatistic reports usage of one tag across the corpus.
type TagStatistic struct {
	Tag         string    `json:"tag"`
	Count       int       `json:"count"`
	Percentage  float64   `json:"percentage"`
	RecentUsage time.Time `json:"recent_usage,omitempty"`
}

// IndexState versions the semantic index backing the retriever. A stale or
// missing state means semantic retrieval is unusable and the retriever
// falls back to lexical-only.
type IndexState struct {
	EmbeddingModel   string    `json:"embedding_model"`
	EmbeddingVersion int       `json:"embedding_version"`
	BuiltAt          time.Time `json:"built_at"`
}

// DateRange filters retrieval by entry date, inclusive on both ends.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SearchFilters narrows retrieval candidates before ranking.
type SearchFilters struct {
	DateRange *DateRange `json:"date_range,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
}
