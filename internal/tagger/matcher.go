// Package tagger suggests controlled-vocabulary tags for entry text. It
// blends deterministic lexical matching against tag names and aliases
// with model-assisted extraction, and never suggests a tag outside the
// vocabulary.
package tagger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/xaenox/journal-engine/internal/llm"
	"github.com/xaenox/journal-engine/internal/models"
	"github.com/xaenox/journal-engine/pkg/config"
)

const (
	// canonicalConfidence is the score of a direct match on a tag name.
	canonicalConfidence = 0.9
	// aliasDiscount scales alias matches below canonical ones.
	aliasDiscount = 0.85
	// modelConfidenceCap bounds model-reported confidence. Lexical evidence
	// in the text always outranks the model's self-assessment.
	modelConfidenceCap = 0.6
)

type Tagger struct {
	maxTags   int
	threshold float64
	logger    *zap.Logger
}

func New(cfg config.TaggerConfig, logger *zap.Logger) *Tagger {
	return &Tagger{
		maxTags:   cfg.MaxTags,
		threshold: cfg.ConfidenceThreshold,
		logger:    logger,
	}
}

// ExtractTags suggests tags for text against the vocabulary using the
// configured limits.
func (t *Tagger) ExtractTags(ctx context.Context, client llm.Client, text string, vocab models.ControlledVocabulary) ([]models.TagSuggestion, error) {
	return t.Extract(ctx, client, text, vocab, 0, -1)
}

// Extract suggests tags with per-call limits. maxTags of zero or less and
// a negative threshold fall back to the configured defaults. A nil client
// skips the model tier and matches lexically only. Model failures degrade
// to lexical results rather than failing the extraction.
func (t *Tagger) Extract(ctx context.Context, client llm.Client, text string, vocab models.ControlledVocabulary, maxTags int, threshold float64) ([]models.TagSuggestion, error) {
	if maxTags <= 0 {
		maxTags = t.maxTags
	}
	if threshold < 0 {
		threshold = t.threshold
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	byTag := t.lexicalSuggestions(text, vocab)

	if client != nil {
		modelSuggestions, err := t.modelSuggestions(ctx, client, text, vocab)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			t.logger.Warn("model-assisted extraction failed, using lexical matches only", zap.Error(err))
		}
		for _, ms := range modelSuggestions {
			existing, ok := byTag[ms.Tag]
			if !ok {
				byTag[ms.Tag] = ms
				continue
			}
			// Lexical evidence wins; the model only ever raises a tag the
			// text did not surface on its own.
			if ms.Confidence > existing.Confidence {
				existing.Confidence = ms.Confidence
				existing.Reasoning = ms.Reasoning
				byTag[ms.Tag] = existing
			}
		}
	}

	suggestions := make([]models.TagSuggestion, 0, len(byTag))
	for _, s := range byTag {
		if s.Confidence >= threshold {
			suggestions = append(suggestions, s)
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return firstOffset(suggestions[i]) < firstOffset(suggestions[j])
	})
	if len(suggestions) > maxTags {
		suggestions = suggestions[:maxTags]
	}
	return suggestions, nil
}

// lexicalSuggestions matches canonical names and aliases as whole words in
// the text. When both a tag name and one of its aliases match, the
// canonical match sets the confidence and both spans are kept.
func (t *Tagger) lexicalSuggestions(text string, vocab models.ControlledVocabulary) map[string]models.TagSuggestion {
	byTag := make(map[string]models.TagSuggestion)

	record := func(canonical, matched string, confidence float64, reasoning string) {
		spans := wordSpans(text, matched)
		if len(spans) == 0 {
			return
		}
		existing, ok := byTag[canonical]
		if !ok {
			byTag[canonical] = models.TagSuggestion{
				Tag:        canonical,
				Confidence: confidence,
				Reasoning:  reasoning,
				Spans:      spans,
			}
			return
		}
		if confidence > existing.Confidence {
			existing.Confidence = confidence
			existing.Reasoning = reasoning
		}
		existing.Spans = mergeSpans(existing.Spans, spans)
		byTag[canonical] = existing
	}

	for _, tag := range vocab.Tags {
		record(tag.Name, tag.Name, canonicalConfidence, fmt.Sprintf("text mentions %q", tag.Name))
	}
	for alias, canonical := range vocab.Aliases {
		record(canonical, alias, canonicalConfidence*aliasDiscount,
			fmt.Sprintf("text mentions %q, an alias of %q", alias, canonical))
	}
	return byTag
}

type modelTagResponse struct {
	Tags []struct {
		Tag        string  `json:"tag"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	} `json:"tags"`
}

func (t *Tagger) modelSuggestions(ctx context.Context, client llm.Client, text string, vocab models.ControlledVocabulary) ([]models.TagSuggestion, error) {
	prompt := fmt.Sprintf(
		"Analyze the following text and suggest relevant tags from the provided vocabulary.\n"+
			"Return JSON with a 'tags' array of objects with 'tag', 'confidence' (0.0-1.0) and 'reasoning' fields.\n"+
			"Use only tags from the vocabulary.\n\n"+
			"Vocabulary: %s\n\nText to analyze:\n%s",
		strings.Join(vocab.TagNames(), ", "), text)

	raw, err := client.Generate(ctx, llm.GenerateRequest{
		Prompt:      prompt,
		Temperature: 0.2,
		MaxTokens:   300,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, err
	}

	var parsed modelTagResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("error parsing model response: %w", err)
	}

	canonical := make(map[string]bool, len(vocab.Tags))
	for _, tag := range vocab.Tags {
		canonical[tag.Name] = true
	}

	var out []models.TagSuggestion
	for _, item := range parsed.Tags {
		name := strings.ToLower(strings.TrimSpace(item.Tag))
		// Map alias answers back to their canonical tag; drop anything the
		// vocabulary does not know.
		if !canonical[name] {
			mapped, ok := vocab.Aliases[name]
			if !ok {
				continue
			}
			name = mapped
		}
		confidence := item.Confidence
		if confidence > modelConfidenceCap {
			confidence = modelConfidenceCap
		}
		if confidence <= 0 {
			continue
		}
		reasoning := item.Reasoning
		if reasoning == "" {
			reasoning = "model-suggested tag"
		}
		out = append(out, models.TagSuggestion{Tag: name, Confidence: confidence, Reasoning: reasoning})
	}
	return out, nil
}

// wordSpans finds whole-word, case-insensitive occurrences of term in text
// and returns them with their byte offsets.
func wordSpans(text, term string) []models.EvidenceSpan {
	if term == "" {
		return nil
	}
	lower := strings.ToLower(text)
	term = strings.ToLower(term)

	var spans []models.EvidenceSpan
	for start := 0; ; {
		pos := strings.Index(lower[start:], term)
		if pos < 0 {
			break
		}
		pos += start
		end := pos + len(term)
		if isWordBoundary(lower, pos-1) && isWordBoundary(lower, end) {
			spans = append(spans, models.EvidenceSpan{Text: text[pos:end], Offset: pos})
		}
		start = end
	}
	return spans
}

func isWordBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func mergeSpans(a, b []models.EvidenceSpan) []models.EvidenceSpan {
	seen := make(map[int]bool, len(a))
	for _, s := range a {
		seen[s.Offset] = true
	}
	for _, s := range b {
		if !seen[s.Offset] {
			a = append(a, s)
			seen[s.Offset] = true
		}
	}
	sort.Slice(a, func(i, j int) bool { return a[i].Offset < a[j].Offset })
	return a
}

func firstOffset(s models.TagSuggestion) int {
	if len(s.Spans) == 0 {
		return int(^uint(0) >> 1)
	}
	return s.Spans[0].Offset
}

// extractJSON trims any prose the model wraps around its JSON object.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
