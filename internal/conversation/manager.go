// Package conversation manages question/answer threads. Turns append
// atomically through the store; the manager adds per-conversation
// serialization so concurrent asks on the same thread cannot interleave
// their message pairs.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/apperr"
	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/internal/storage"
)

// maxTitleChars bounds the auto-title derived from the first question.
const maxTitleChars = 60

type Manager struct {
	store  storage.ConversationStore
	logger *zap.Logger

	mu     sync.Mutex
	states map[string]*convState
}

// convState serializes writes to one conversation and remembers the
// timestamp of its newest persisted message, so each turn's messages are
// stamped strictly after everything already in the thread.
type convState struct {
	mu   sync.Mutex
	last time.Time
}

func NewManager(store storage.ConversationStore, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		states: make(map[string]*convState),
	}
}

// stateFor returns the write state for one conversation. States are
// created on demand and reclaimed on delete; the set is bounded by the
// number of live conversations in a process.
func (m *Manager) stateFor(id string) *convState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		st = &convState{}
		m.states[id] = st
	}
	return st
}

// Resolve returns the existing conversation for id, or creates a new one
// when id is empty. The title of a new conversation is derived from the
// first question.
func (m *Manager) Resolve(ctx context.Context, id, firstQuestion string, provider models.Provider) (*models.Conversation, error) {
	if id != "" {
		return m.store.GetConversation(ctx, id)
	}

	conv := &models.Conversation{
		ID:        uuid.New().String(),
		Title:     deriveTitle(firstQuestion),
		Provider:  provider,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := m.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	m.logger.Info("conversation created", zap.String("conversation_id", conv.ID))
	return conv, nil
}

// RecordTurn persists a question/answer pair with its citations and
// returns the assistant message id. The write is atomic in the store and
// serialized per conversation here, so a reader never observes a question
// without its answer.
func (m *Manager) RecordTurn(ctx context.Context, conversationID, question string, answer string, citations []models.Citation) (string, error) {
	st := m.stateFor(conversationID)
	st.mu.Lock()
	defer st.mu.Unlock()

	// Seed the high-water timestamp from the store the first time this
	// process writes to the conversation.
	if st.last.IsZero() {
		msgs, err := m.store.Messages(ctx, conversationID)
		if err != nil {
			return "", err
		}
		if len(msgs) > 0 {
			st.last = msgs[len(msgs)-1].CreatedAt
		}
	}

	// Message ordering must stay monotonic by creation time even when the
	// store sorts by timestamp, so back-to-back turns never get stamps at
	// or before the previous assistant message.
	userAt := time.Now()
	if !userAt.After(st.last) {
		userAt = st.last.Add(time.Millisecond)
	}
	assistantAt := userAt.Add(time.Millisecond)

	user := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        question,
		CreatedAt:      userAt,
	}
	assistant := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        answer,
		Citations:      citations,
		CreatedAt:      assistantAt,
	}
	if err := m.store.AppendTurn(ctx, conversationID, user, assistant); err != nil {
		return "", err
	}
	st.last = assistantAt
	return assistant.ID, nil
}

// History returns the full ordered message list of a conversation.
func (m *Manager) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, err := m.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return m.store.Messages(ctx, conversationID)
}

func (m *Manager) List(ctx context.Context) ([]models.ConversationSummary, error) {
	return m.store.ListConversations(ctx)
}

// Delete removes a conversation and everything under it. Deleting an
// unknown id is not an error.
func (m *Manager) Delete(ctx context.Context, conversationID string) error {
	err := m.store.DeleteConversation(ctx, conversationID)
	if err != nil && !apperr.IsNotFound(err) {
		return err
	}

	m.mu.Lock()
	delete(m.states, conversationID)
	m.mu.Unlock()
	return nil
}

func deriveTitle(question string) string {
	title, _, _ := strings.Cut(strings.TrimSpace(question), "\n")
	title = strings.TrimSpace(title)
	if title == "" {
		return "New conversation"
	}
	if len(title) > maxTitleChars {
		cut := strings.LastIndex(title[:maxTitleChars], " ")
		if cut <= 0 {
			cut = maxTitleChars
		}
		title = strings.TrimSpace(title[:cut]) + "..."
	}
	return title
}
