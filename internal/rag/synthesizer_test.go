package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/apperr"
	"github.com/xaenox/journal-engine/internal/llm"
	"github.com/xaenox/journal-engine/internal/models"
)

type fakeClient struct {
	response string
	err      error
	calls    int
	lastReq  llm.GenerateRequest
}

func (f *fakeClient) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	f.calls++
	f.lastReq = req
	return f.response, f.err
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }
func (f *fakeClient) Model() string                  { return "fake-model" }

func testContext(n int) []models.ContextEntry {
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	entries := make([]models.ContextEntry, n)
	for i := range entries {
		entries[i] = models.ContextEntry{
			EntryID:        string(rune('a' + i)),
			Title:          "title",
			Body:           "body text",
			EntryDate:      day.AddDate(0, 0, i),
			RelevanceScore: 0.8,
			Snippet:        "snippet",
		}
	}
	return entries
}

func TestSynthesize(t *testing.T) {
	synth := NewSynthesizer(zap.NewNop())

	t.Run("empty context declines without a model call", func(t *testing.T) {
		client := &fakeClient{response: "should not be used"}

		answer, err := synth.Synthesize(context.Background(), client, "what happened?", nil, nil)
		require.NoError(t, err)
		assert.Zero(t, client.calls)
		assert.Equal(t, declineAnswer, answer.Text)
		assert.Empty(t, answer.Citations)
		assert.Less(t, answer.Confidence, LowConfidenceThreshold)
	})

	t.Run("citations renumbered by first appearance", func(t *testing.T) {
		client := &fakeClient{response: "You swam [2], then ran [1], and swam again [2]."}

		answer, err := synth.Synthesize(context.Background(), client, "what did I do?", testContext(2), nil)
		require.NoError(t, err)
		require.Len(t, answer.Citations, 2)

		// Context entry 2 was cited first, so it gets citation number 1.
		assert.Equal(t, 1, answer.Citations[0].CitationNumber)
		assert.Equal(t, "b", answer.Citations[0].EntryID)
		assert.Equal(t, 2, answer.Citations[1].CitationNumber)
		assert.Equal(t, "a", answer.Citations[1].EntryID)
	})

	t.Run("prompt numbers entries from one", func(t *testing.T) {
		client := &fakeClient{response: "ok [1]"}

		_, err := synth.Synthesize(context.Background(), client, "q", testContext(2), nil)
		require.NoError(t, err)
		assert.Contains(t, client.lastReq.Prompt, "[Entry 1]")
		assert.Contains(t, client.lastReq.Prompt, "[Entry 2]")
		assert.Contains(t, client.lastReq.Prompt, "Question: q")
	})

	t.Run("history included in the prompt", func(t *testing.T) {
		client := &fakeClient{response: "ok [1]"}
		history := []models.Message{
			{Role: models.RoleUser, Content: "earlier question"},
			{Role: models.RoleAssistant, Content: "earlier answer"},
		}

		_, err := synth.Synthesize(context.Background(), client, "q", testContext(1), history)
		require.NoError(t, err)
		assert.Contains(t, client.lastReq.Prompt, "User: earlier question")
		assert.Contains(t, client.lastReq.Prompt, "Assistant: earlier answer")
	})

	t.Run("upstream errors pass through typed", func(t *testing.T) {
		client := &fakeClient{err: apperr.New(apperr.CodeUpstreamTimeout, "model timed out")}

		_, err := synth.Synthesize(context.Background(), client, "q", testContext(1), nil)
		require.Error(t, err)
		assert.Equal(t, apperr.CodeUpstreamTimeout, apperr.CodeOf(err))
	})

	t.Run("uncited answer has low confidence", func(t *testing.T) {
		client := &fakeClient{response: "Something without any citation markers."}

		answer, err := synth.Synthesize(context.Background(), client, "q", testContext(3), nil)
		require.NoError(t, err)
		assert.Empty(t, answer.Citations)
		assert.Less(t, answer.Confidence, LowConfidenceThreshold)
	})
}
