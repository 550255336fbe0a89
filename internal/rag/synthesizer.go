package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/llm"
	"github.com/xaenox/journal-engine/internal/models"
)

const answerSystemPrompt = `You are a thoughtful assistant answering questions about the user's personal journal.
Answer ONLY from the journal entries provided. Cite every claim with the entry number in square brackets, like [1] or [2].
If the entries do not contain the answer, say so plainly instead of guessing.`

// declineAnswer is returned without a model call when no context survives
// composition. Its fixed confidence sits below LowConfidenceThreshold.
const declineAnswer = "I couldn't find any journal entries relevant to that question, so I can't give a grounded answer."

// maxHistoryTurns bounds how much prior conversation is replayed into the
// prompt.
const maxHistoryTurns = 6

// Answer is a synthesized response with its grounding.
type Answer struct {
	Text       string
	Citations  []models.Citation
	Confidence float64
	ModelUsed  string
}

// Synthesizer prompts a model over composed context and converts the raw
// answer into a cited, confidence-scored result.
type Synthesizer struct {
	logger *zap.Logger
}

func NewSynthesizer(logger *zap.Logger) *Synthesizer {
	return &Synthesizer{logger: logger}
}

// Synthesize produces an answer for the question over the given context.
// Upstream failures from the client pass through typed; the caller decides
// whether to persist anything.
func (s *Synthesizer) Synthesize(ctx context.Context, client llm.Client, question string, contextEntries []models.ContextEntry, history []models.Message) (*Answer, error) {
	if len(contextEntries) == 0 {
		return &Answer{
			Text:       declineAnswer,
			Confidence: emptyContextConfidence,
			ModelUsed:  client.Model(),
		}, nil
	}

	prompt := buildPrompt(question, contextEntries, history)

	raw, err := client.Generate(ctx, llm.GenerateRequest{
		System:      answerSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)

	cited := ParseCitationMarkers(raw, len(contextEntries))
	citations := buildCitations(cited, contextEntries)

	scores := make([]float64, len(contextEntries))
	for i, e := range contextEntries {
		scores[i] = e.RelevanceScore
	}

	answer := &Answer{
		Text:       raw,
		Citations:  citations,
		Confidence: Confidence(raw, cited, scores),
		ModelUsed:  client.Model(),
	}
	s.logger.Debug("synthesized answer",
		zap.Int("citations", len(citations)),
		zap.Float64("confidence", answer.Confidence))
	return answer, nil
}

// buildPrompt lays out recent history, the numbered context block and the
// question. Entry numbers in the block are the 1-based context positions
// the citation parser later resolves.
func buildPrompt(question string, contextEntries []models.ContextEntry, history []models.Message) string {
	var b strings.Builder

	if len(history) > 0 {
		turns := history
		if len(turns) > maxHistoryTurns {
			turns = turns[len(turns)-maxHistoryTurns:]
		}
		b.WriteString("Previous conversation:\n")
		for _, m := range turns {
			label := "User"
			if m.Role == models.RoleAssistant {
				label = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, m.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("Journal entries:\n\n")
	for i, e := range contextEntries {
		fmt.Fprintf(&b, "[Entry %d] (%s)", i+1, e.EntryDate.Format("2006-01-02"))
		if e.Title != "" {
			fmt.Fprintf(&b, " %s", e.Title)
		}
		if len(e.Tags) > 0 {
			fmt.Fprintf(&b, " [tags: %s]", strings.Join(e.Tags, ", "))
		}
		b.WriteString("\n")
		b.WriteString(e.Body)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String()
}

// buildCitations converts cited context indexes into citation records.
// Citation numbers restart at 1 and follow the order markers first appear
// in the answer, independent of context position.
func buildCitations(citedIndexes []int, contextEntries []models.ContextEntry) []models.Citation {
	citations := make([]models.Citation, 0, len(citedIndexes))
	for seq, idx := range citedIndexes {
		e := contextEntries[idx-1]
		citations = append(citations, models.Citation{
			EntryID:        e.EntryID,
			EntryTitle:     e.Title,
			EntryDate:      e.EntryDate,
			Snippet:        e.Snippet,
			RelevanceScore: e.RelevanceScore,
			CitationNumber: seq + 1,
		})
	}
	return citations
}
