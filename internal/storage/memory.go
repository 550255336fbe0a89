package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xaenox/journal-engine/internal/apperr"
	"github.com/xaenox/journal-engine/internal/models"
)

// MemoryStorage is a full in-memory Storage used for tests and the
// use_in_memory configuration mode.
type MemoryStorage struct {
	mu            sync.RWMutex
	entries       map[string]*models.Entry
	tags          map[string]*models.Tag // keyed by tag id
	aliases       map[string]*models.Alias
	entryTags     map[string]map[string]time.Time // entry id -> tag id -> applied at
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message // conversation id -> ordered messages
	indexState    *models.IndexState
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries:       make(map[string]*models.Entry),
		tags:          make(map[string]*models.Tag),
		aliases:       make(map[string]*models.Alias),
		entryTags:     make(map[string]map[string]time.Time),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func (s *MemoryStorage) Close() error { return nil }

func (s *MemoryStorage) SaveEntry(ctx context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.TextHash != "" && e.TextHash == entry.TextHash {
			return apperr.New(apperr.CodeConflict, "duplicate entry content (existing entry: %s)", e.ID)
		}
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	s.entries[entry.ID] = entry
	return nil
}

func (s *MemoryStorage) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, exists := s.entries[id]; exists {
		return entry, nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "entry %s not found", id)
}

// SearchLexical scores entries by query term matches: body matches weight
// 1, title matches weight 2, normalized by content length and capped at 1.
func (s *MemoryStorage) SearchLexical(ctx context.Context, query string, limit int) ([]ScoredEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var results []ScoredEntry
	for _, entry := range s.entries {
		body := strings.ToLower(entry.Body)
		title := strings.ToLower(entry.Title)

		var score float64
		for _, term := range terms {
			score += float64(strings.Count(body, term))
			score += 2 * float64(strings.Count(title, term))
		}
		if score == 0 {
			continue
		}

		length := float64(len(body)+len(title)) / 100.0
		if length > 1 {
			score /= length
		}
		if score > 1 {
			score = 1
		}
		results = append(results, ScoredEntry{Entry: entry, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.EntryDate.After(results[j].Entry.EntryDate)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStorage) EntriesWithEmbeddings(ctx context.Context) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*models.Entry
	for _, e := range s.entries {
		if len(e.Embedding) > 0 {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (s *MemoryStorage) EntryTagNames(ctx context.Context, entryID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for tagID := range s.entryTags[entryID] {
		if tag, ok := s.tags[tagID]; ok {
			names = append(names, tag.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStorage) GetIndexState(ctx context.Context) (*models.IndexState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.indexState == nil {
		return nil, apperr.New(apperr.CodeNotFound, "semantic index not built")
	}
	state := *s.indexState
	return &state, nil
}

func (s *MemoryStorage) SetIndexState(ctx context.Context, state models.IndexState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.indexState = &state
	return nil
}

func (s *MemoryStorage) CreateTag(ctx context.Context, tag models.Tag, aliases []string) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]bool)
	for _, t := range s.tags {
		taken[strings.ToLower(t.Name)] = true
	}
	for _, a := range s.aliases {
		taken[strings.ToLower(a.Text)] = true
	}

	for _, name := range append([]string{tag.Name}, aliases...) {
		if taken[strings.ToLower(name)] {
			return nil, apperr.New(apperr.CodeConflict, "tag %q or one of its aliases already exists", tag.Name)
		}
	}

	tag.ID = uuid.New().String()
	tag.CreatedAt = time.Now().UTC()
	stored := tag
	s.tags[tag.ID] = &stored
	for _, alias := range aliases {
		id := uuid.New().String()
		s.aliases[id] = &models.Alias{ID: id, TagID: tag.ID, Text: alias}
	}
	return &tag, nil
}

func (s *MemoryStorage) DeleteTag(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tagID string
	for id, t := range s.tags {
		if strings.EqualFold(t.Name, name) {
			tagID = id
			break
		}
	}
	if tagID == "" {
		return apperr.New(apperr.CodeNotFound, "tag %q not found", name)
	}

	delete(s.tags, tagID)
	for id, a := range s.aliases {
		if a.TagID == tagID {
			delete(s.aliases, id)
		}
	}
	for entryID := range s.entryTags {
		delete(s.entryTags[entryID], tagID)
	}
	return nil
}

func (s *MemoryStorage) GetVocabulary(ctx context.Context) (models.ControlledVocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vocab := models.ControlledVocabulary{Aliases: make(map[string]string)}
	ids := make([]string, 0, len(s.tags))
	for id := range s.tags {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.tags[ids[i]].Name < s.tags[ids[j]].Name })

	for _, id := range ids {
		tag := s.tags[id]
		vt := models.VocabularyTag{
			Name:        tag.Name,
			Description: tag.Description,
			Category:    tag.Category,
		}
		for _, a := range s.aliases {
			if a.TagID == id {
				vt.Aliases = append(vt.Aliases, a.Text)
				vocab.Aliases[a.Text] = tag.Name
			}
		}
		sort.Strings(vt.Aliases)
		vocab.Tags = append(vocab.Tags, vt)
	}
	return vocab, nil
}

func (s *MemoryStorage) AddEntryTag(ctx context.Context, entryID, tagName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entryID]; !ok {
		return apperr.New(apperr.CodeNotFound, "entry %s not found", entryID)
	}
	var tagID string
	for id, t := range s.tags {
		if strings.EqualFold(t.Name, tagName) {
			tagID = id
			break
		}
	}
	if tagID == "" {
		return apperr.New(apperr.CodeNotFound, "tag %q not found", tagName)
	}

	if s.entryTags[entryID] == nil {
		s.entryTags[entryID] = make(map[string]time.Time)
	}
	if _, applied := s.entryTags[entryID][tagID]; applied {
		return nil
	}
	s.entryTags[entryID][tagID] = time.Now().UTC()
	return nil
}

func (s *MemoryStorage) TagStatistics(ctx context.Context) ([]models.TagStatistic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	recent := make(map[string]time.Time)
	for _, tagTimes := range s.entryTags {
		for tagID, at := range tagTimes {
			counts[tagID]++
			if at.After(recent[tagID]) {
				recent[tagID] = at
			}
		}
	}

	var stats []models.TagStatistic
	for id, tag := range s.tags {
		st := models.TagStatistic{Tag: tag.Name, Count: counts[id], RecentUsage: recent[id]}
		if len(s.entries) > 0 {
			st.Percentage = float64(st.Count) / float64(len(s.entries)) * 100
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Tag < stats[j].Tag
	})
	return stats, nil
}

func (s *MemoryStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	stored := *conv
	s.conversations[conv.ID] = &stored
	return nil
}

func (s *MemoryStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if conv, exists := s.conversations[id]; exists {
		c := *conv
		return &c, nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "conversation %s not found", id)
}

func (s *MemoryStorage) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summaries []models.ConversationSummary
	for id, conv := range s.conversations {
		summaries = append(summaries, models.ConversationSummary{
			ID:           id,
			Title:        conv.Title,
			MessageCount: len(s.messages[id]),
			UpdatedAt:    conv.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (s *MemoryStorage) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryStorage) AppendTurn(ctx context.Context, conversationID string, user, assistant models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists {
		return apperr.New(apperr.CodeNotFound, "conversation %s not found", conversationID)
	}

	for _, msg := range []*models.Message{&user, &assistant} {
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		msg.ConversationID = conversationID
	}
	s.messages[conversationID] = append(s.messages[conversationID], user, assistant)
	conv.UpdatedAt = assistant.CreatedAt
	return nil
}

func (s *MemoryStorage) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.conversations[conversationID]; !exists {
		return nil, apperr.New(apperr.CodeNotFound, "conversation %s not found", conversationID)
	}
	msgs := make([]models.Message, len(s.messages[conversationID]))
	copy(msgs, s.messages[conversationID])
	return msgs, nil
}
