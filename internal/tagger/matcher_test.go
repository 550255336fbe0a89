package tagger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/llm"
	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/internal/vocab"
	"github.com/xaenox/journal-engine/pkg/config"
)

type fakeClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeClient) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }
func (f *fakeClient) Model() string                  { return "fake-model" }

func newTagger() *Tagger {
	return New(config.TaggerConfig{MaxTags: 5, ConfidenceThreshold: 0.5}, zap.NewNop())
}

func suggestionFor(suggestions []models.TagSuggestion, tag string) *models.TagSuggestion {
	for i := range suggestions {
		if suggestions[i].Tag == tag {
			return &suggestions[i]
		}
	}
	return nil
}

func TestLexicalMatching(t *testing.T) {
	tg := newTagger()
	vocabulary := vocab.DefaultVocabulary()

	t.Run("alias resolves to canonical tag", func(t *testing.T) {
		suggestions, err := tg.ExtractTags(context.Background(), nil, "Visited the job site today.", vocabulary)
		require.NoError(t, err)

		work := suggestionFor(suggestions, "work")
		require.NotNil(t, work)
		assert.InDelta(t, canonicalConfidence*aliasDiscount, work.Confidence, 1e-9)
		require.Len(t, work.Spans, 1)
		assert.Equal(t, "job", work.Spans[0].Text)
		assert.Equal(t, 12, work.Spans[0].Offset)

		assert.Nil(t, suggestionFor(suggestions, "job"))
	})

	t.Run("canonical match outranks alias on the same tag", func(t *testing.T) {
		suggestions, err := tg.ExtractTags(context.Background(), nil, "Work is hard, my job drains me.", vocabulary)
		require.NoError(t, err)

		work := suggestionFor(suggestions, "work")
		require.NotNil(t, work)
		assert.InDelta(t, canonicalConfidence, work.Confidence, 1e-9)
		// Spans from both the name and the alias survive, ordered by offset.
		require.Len(t, work.Spans, 2)
		assert.Equal(t, "Work", work.Spans[0].Text)
		assert.Equal(t, "job", work.Spans[1].Text)
	})

	t.Run("whole words only", func(t *testing.T) {
		suggestions, err := tg.ExtractTags(context.Background(), nil, "The network jobless rate fell.", vocabulary)
		require.NoError(t, err)
		assert.Nil(t, suggestionFor(suggestions, "work"))
	})

	t.Run("empty text", func(t *testing.T) {
		suggestions, err := tg.ExtractTags(context.Background(), nil, "   ", vocabulary)
		require.NoError(t, err)
		assert.Empty(t, suggestions)
	})
}

func TestModelAssistedMatching(t *testing.T) {
	tg := newTagger()
	vocabulary := vocab.DefaultVocabulary()

	t.Run("model confidence is capped", func(t *testing.T) {
		client := &fakeClient{response: `{"tags":[{"tag":"travel","confidence":0.95,"reasoning":"trip planning themes"}]}`}

		suggestions, err := tg.ExtractTags(context.Background(), client, "Thinking about where to go next year.", vocabulary)
		require.NoError(t, err)

		travel := suggestionFor(suggestions, "travel")
		require.NotNil(t, travel)
		assert.Equal(t, modelConfidenceCap, travel.Confidence)
		assert.Empty(t, travel.Spans)
	})

	t.Run("unknown tags are dropped, aliases remapped", func(t *testing.T) {
		client := &fakeClient{response: `{"tags":[
			{"tag":"nonsense","confidence":0.9,"reasoning":"x"},
			{"tag":"vacation","confidence":0.6,"reasoning":"time off"}
		]}`}

		suggestions, err := tg.ExtractTags(context.Background(), client, "Thinking about taking time off.", vocabulary)
		require.NoError(t, err)
		assert.Nil(t, suggestionFor(suggestions, "nonsense"))
		travel := suggestionFor(suggestions, "travel")
		require.NotNil(t, travel)
		assert.Equal(t, 0.6, travel.Confidence)
	})

	t.Run("lexical evidence outranks the model", func(t *testing.T) {
		client := &fakeClient{response: `{"tags":[{"tag":"work","confidence":0.99,"reasoning":"x"}]}`}

		suggestions, err := tg.ExtractTags(context.Background(), client, "Stressful day at work.", vocabulary)
		require.NoError(t, err)

		work := suggestionFor(suggestions, "work")
		require.NotNil(t, work)
		assert.InDelta(t, canonicalConfidence, work.Confidence, 1e-9)
		assert.NotEmpty(t, work.Spans)
	})

	t.Run("model failure degrades to lexical", func(t *testing.T) {
		client := &fakeClient{err: assert.AnError}

		suggestions, err := tg.ExtractTags(context.Background(), client, "Stressful day at work.", vocabulary)
		require.NoError(t, err)
		assert.NotNil(t, suggestionFor(suggestions, "work"))
	})

	t.Run("json wrapped in prose still parses", func(t *testing.T) {
		client := &fakeClient{response: "Here you go:\n{\"tags\":[{\"tag\":\"health\",\"confidence\":0.6,\"reasoning\":\"x\"}]}\nDone."}

		suggestions, err := tg.ExtractTags(context.Background(), client, "Feeling okay lately.", vocabulary)
		require.NoError(t, err)
		assert.NotNil(t, suggestionFor(suggestions, "health"))
	})
}

func TestThresholdAndLimit(t *testing.T) {
	vocabulary := vocab.DefaultVocabulary()

	t.Run("below threshold suggestions dropped", func(t *testing.T) {
		tg := New(config.TaggerConfig{MaxTags: 5, ConfidenceThreshold: 0.7}, zap.NewNop())
		client := &fakeClient{response: `{"tags":[{"tag":"travel","confidence":0.9,"reasoning":"x"}]}`}

		// Model tier caps at 0.6, below the 0.7 threshold.
		suggestions, err := tg.ExtractTags(context.Background(), client, "Thinking about places.", vocabulary)
		require.NoError(t, err)
		assert.Nil(t, suggestionFor(suggestions, "travel"))
	})

	t.Run("truncated to max tags", func(t *testing.T) {
		tg := New(config.TaggerConfig{MaxTags: 2, ConfidenceThreshold: 0.5}, zap.NewNop())

		text := "Work with family on health and travel goals."
		suggestions, err := tg.ExtractTags(context.Background(), nil, text, vocabulary)
		require.NoError(t, err)
		assert.Len(t, suggestions, 2)
	})

	t.Run("ties broken by earliest evidence", func(t *testing.T) {
		tg := newTagger()

		// Both canonical names appear once; "travel" comes first in the text.
		suggestions, err := tg.ExtractTags(context.Background(), nil, "travel plans before work tomorrow", vocabulary)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(suggestions), 2)
		assert.Equal(t, "travel", suggestions[0].Tag)
		assert.Equal(t, "work", suggestions[1].Tag)
	})
}
