package rag

import "strings"

// LowConfidenceThreshold is the documented floor below which a response
// should be treated as a decline-to-answer rather than a grounded answer.
const LowConfidenceThreshold = 0.25

// emptyContextConfidence is the fixed confidence of an answer produced
// with no retrieved context. It must stay below LowConfidenceThreshold.
const emptyContextConfidence = 0.1

// hedgePhrases are surface signals that the model is uncertain. Matching
// any of them halves the confidence score.
var hedgePhrases = []string{
	"i don't know",
	"i do not know",
	"i'm not sure",
	"i am not sure",
	"not enough information",
	"don't have enough information",
	"cannot determine",
	"can't determine",
	"it is unclear",
	"it's unclear",
	"no relevant entries",
}

// Confidence scores an answer from retrieval and citation strength, not
// factual truth. The formula is deterministic and documented so it can be
// reproduced in tests:
//
//	coverage   = cited entries / context entries
//	meanRel    = mean relevance score of the cited entries
//	hedge      = 0.5 if the answer contains a hedging phrase, else 1.0
//	confidence = clamp01((0.5*meanRel + 0.5*coverage) * hedge)
//
// It is monotonic in both coverage and cited relevance.
func Confidence(answer string, citedIndexes []int, contextScores []float64) float64 {
	if len(contextScores) == 0 {
		return emptyContextConfidence
	}

	coverage := float64(len(citedIndexes)) / float64(len(contextScores))

	var meanRel float64
	if len(citedIndexes) > 0 {
		for _, idx := range citedIndexes {
			meanRel += contextScores[idx-1]
		}
		meanRel /= float64(len(citedIndexes))
	}

	hedge := 1.0
	lower := strings.ToLower(answer)
	for _, phrase := range hedgePhrases {
		if strings.Contains(lower, phrase) {
			hedge = 0.5
			break
		}
	}

	confidence := (0.5*meanRel + 0.5*coverage) * hedge
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
