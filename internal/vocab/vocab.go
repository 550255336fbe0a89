// Package vocab serves the controlled tag vocabulary. Reads go through an
// in-process cache; any write invalidates it. The vocabulary is the only
// source of truth for which tags extraction may suggest.
package vocab

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/apperr"
	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/internal/storage"
)

type Service struct {
	store  storage.VocabularyStore
	logger *zap.Logger

	mu     sync.RWMutex
	cached *models.ControlledVocabulary
}

func NewService(store storage.VocabularyStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Vocabulary returns the current controlled vocabulary, cached until the
// next write. An empty store is seeded with the built-in default set on
// first read so extraction always has tags to match against.
func (s *Service) Vocabulary(ctx context.Context) (models.ControlledVocabulary, error) {
	s.mu.RLock()
	if s.cached != nil {
		v := *s.cached
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	vocab, err := s.store.GetVocabulary(ctx)
	if err != nil {
		return models.ControlledVocabulary{}, err
	}
	if len(vocab.Tags) == 0 {
		if err := s.seedDefaults(ctx); err != nil {
			return models.ControlledVocabulary{}, err
		}
		if vocab, err = s.store.GetVocabulary(ctx); err != nil {
			return models.ControlledVocabulary{}, err
		}
	}

	s.mu.Lock()
	s.cached = &vocab
	s.mu.Unlock()
	return vocab, nil
}

// seedDefaults persists the built-in vocabulary. Conflicts are ignored so
// concurrent first reads both succeed.
func (s *Service) seedDefaults(ctx context.Context) error {
	s.logger.Info("seeding default vocabulary")
	for _, t := range DefaultVocabulary().Tags {
		_, err := s.store.CreateTag(ctx, models.Tag{
			Name:        t.Name,
			Description: t.Description,
			Category:    t.Category,
		}, t.Aliases)
		if err != nil && !apperr.IsConflict(err) {
			return err
		}
	}
	return nil
}

// CreateCustomTag adds a tag with optional aliases. Names and aliases are
// stored lowercased; a name or alias colliding with any existing tag name
// or alias is a conflict and leaves the vocabulary unchanged.
func (s *Service) CreateCustomTag(ctx context.Context, name, description, category string, aliases []string) (*models.Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, "tag name is required")
	}

	// Make sure the defaults are in place before the first custom tag so
	// conflict checks run against the full vocabulary.
	if _, err := s.Vocabulary(ctx); err != nil {
		return nil, err
	}

	cleaned := make([]string, 0, len(aliases))
	seen := map[string]bool{name: true}
	for _, a := range aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		cleaned = append(cleaned, a)
	}

	tag, err := s.store.CreateTag(ctx, models.Tag{
		Name:        name,
		Description: description,
		Category:    category,
	}, cleaned)
	if err != nil {
		return nil, err
	}

	s.invalidate()
	s.logger.Info("custom tag created", zap.String("tag", name), zap.Int("aliases", len(cleaned)))
	return tag, nil
}

// DeleteTag removes a tag, cascading to its aliases and entry
// associations.
func (s *Service) DeleteTag(ctx context.Context, name string) error {
	if err := s.store.DeleteTag(ctx, strings.ToLower(strings.TrimSpace(name))); err != nil {
		return err
	}
	s.invalidate()
	s.logger.Info("tag deleted", zap.String("tag", name))
	return nil
}

// AcceptSuggestion persists an entry/tag association for an accepted
// suggestion. Re-accepting the same pair is a no-op.
func (s *Service) AcceptSuggestion(ctx context.Context, entryID, tagName string) error {
	return s.store.AddEntryTag(ctx, entryID, strings.ToLower(tagName))
}

func (s *Service) TagStatistics(ctx context.Context) ([]models.TagStatistic, error) {
	return s.store.TagStatistics(ctx)
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// DefaultVocabulary is the built-in tag set used when the store holds no
// vocabulary yet.
func DefaultVocabulary() models.ControlledVocabulary {
	tags := []models.VocabularyTag{
		{Name: "personal", Description: "Personal thoughts, feelings, and experiences", Category: "general", Aliases: []string{"private", "self"}},
		{Name: "work", Description: "Work-related entries, career, and professional life", Category: "general", Aliases: []string{"job", "career", "professional"}},
		{Name: "travel", Description: "Travel experiences, trips, and adventures", Category: "activities", Aliases: []string{"trip", "vacation", "journey"}},
		{Name: "reflection", Description: "Deep thoughts, introspection, and self-analysis", Category: "mental", Aliases: []string{"introspection", "contemplation"}},
		{Name: "goals", Description: "Goals, plans, aspirations, and future objectives", Category: "planning", Aliases: []string{"plans", "objectives", "aspirations"}},
		{Name: "relationships", Description: "Relationships, family, friends, and social connections", Category: "social", Aliases: []string{"family", "friends", "social"}},
		{Name: "health", Description: "Health, wellness, fitness, and medical topics", Category: "lifestyle", Aliases: []string{"wellness", "fitness", "medical"}},
		{Name: "creativity", Description: "Creative pursuits, art, writing, and inspiration", Category: "activities", Aliases: []string{"art", "creative", "inspiration"}},
		{Name: "learning", Description: "Learning, education, skills, and knowledge acquisition", Category: "development", Aliases: []string{"education", "study", "knowledge"}},
		{Name: "emotions", Description: "Emotional states, feelings, and mood tracking", Category: "mental", Aliases: []string{"feelings", "mood", "emotional"}},
	}

	aliases := make(map[string]string)
	for _, t := range tags {
		for _, a := range t.Aliases {
			aliases[a] = t.Name
		}
	}
	return models.ControlledVocabulary{Tags: tags, Aliases: aliases}
}
