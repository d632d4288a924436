package phrase

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	SentimentGood = "good"
	SentimentBad  = "bad"

	maxPhraseLen = 120
)

// Candidate is one sanitized, deduplicated phrase proposal.
type Candidate struct {
	Phrase    string `json:"phrase"`
	Counts    int    `json:"counts"`
	Sentiment string `json:"sentiment,omitempty"` // "good" | "bad" | ""
}

// rawCandidate mirrors the model's claimed shape. counts is kept raw because
// models return numbers, quoted numbers and worse; it gets coerced, never
// trusted.
type rawCandidate struct {
	Phrase    string          `json:"phrase"`
	Counts    json.RawMessage `json:"counts"`
	Sentiment string          `json:"sentiment"`
}

type modelPhrases struct {
	Phrases []rawCandidate `json:"phrases"`
}

// sanitize trims and bounds a raw model candidate. Returns ok=false when the
// phrase is empty after trimming.
func sanitize(raw rawCandidate, maxCounts int) (Candidate, bool) {
	text := strings.TrimSpace(raw.Phrase)
	if text == "" {
		return Candidate{}, false
	}
	if r := []rune(text); len(r) > maxPhraseLen {
		text = string(r[:maxPhraseLen])
	}

	sentiment := strings.ToLower(strings.TrimSpace(raw.Sentiment))
	if sentiment != SentimentGood && sentiment != SentimentBad {
		sentiment = ""
	}

	return Candidate{
		Phrase:    text,
		Counts:    coerceCounts(raw.Counts, maxCounts),
		Sentiment: sentiment,
	}, true
}

// coerceCounts turns whatever the model claimed into a bounded non-negative
// int. Anything unparseable becomes 0.
func coerceCounts(raw json.RawMessage, maxCounts int) int {
	n := 0
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		n = int(f)
	} else {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				n = int(parsed)
			}
		}
	}
	if n < 0 {
		n = 0
	}
	if maxCounts > 0 && n > maxCounts {
		n = maxCounts
	}
	return n
}

// dedupe collapses case-variant duplicates: counts take the maximum seen,
// sentiments merge with bad winning over good winning over unclassified.
// First-seen order is preserved.
func dedupe(cands []Candidate) []Candidate {
	index := make(map[string]int, len(cands))
	out := make([]Candidate, 0, len(cands))

	for _, c := range cands {
		key := strings.ToLower(c.Phrase)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, c)
			continue
		}
		if c.Counts > out[i].Counts {
			out[i].Counts = c.Counts
		}
		out[i].Sentiment = mergeSentiment(out[i].Sentiment, c.Sentiment)
	}
	return out
}

// mergeSentiment resolves conflicting sentiments for the same phrase.
// Negative themes matter more operationally, so bad wins.
func mergeSentiment(a, b string) string {
	if a == SentimentBad || b == SentimentBad {
		return SentimentBad
	}
	if a == SentimentGood || b == SentimentGood {
		return SentimentGood
	}
	return ""
}
