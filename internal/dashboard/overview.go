// Package dashboard serves stored phrases with their excerpts to the UI,
// applying the display selection policy.
package dashboard

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/Pougar/upreview/internal/store"
)

// selectLimit caps how many phrases the dashboard shows.
const selectLimit = 50

type Service struct {
	store  *store.Store
	logger *slog.Logger
}

func New(st *store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// ExcerptView is one excerpt as the dashboard consumes it.
type ExcerptView struct {
	ExcerptID  uuid.UUID `json:"excerpt_id"`
	Text       string    `json:"text"`
	Happy      bool      `json:"happy"`
	FromGoogle bool      `json:"from_google"`
}

// PhraseView is one phrase with its attached excerpts.
type PhraseView struct {
	PhraseID  uuid.UUID     `json:"phrase_id"`
	Phrase    string        `json:"phrase"`
	Counts    int           `json:"counts"`
	GoodCount int           `json:"good_count"`
	BadCount  int           `json:"bad_count"`
	Sentiment string        `json:"sentiment,omitempty"` // "good" | "bad" | ""
	Excerpts  []ExcerptView `json:"excerpts"`
}

// Overview returns the tenant's display phrase selection with excerpts
// grouped per phrase. Read-only; no model calls.
func (s *Service) Overview(ctx context.Context, tenantID uuid.UUID) ([]PhraseView, error) {
	all, err := s.store.AllPhrases(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	selected := selectDisplay(all, selectLimit)
	if len(selected) == 0 {
		return []PhraseView{}, nil
	}

	ids := make([]uuid.UUID, len(selected))
	for i, p := range selected {
		ids[i] = p.ID
	}

	grouped, err := s.store.ExcerptsByPhrase(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	views := make([]PhraseView, len(selected))
	for i, p := range selected {
		view := PhraseView{
			PhraseID:  p.ID,
			Phrase:    p.Phrase,
			Counts:    p.Counts,
			GoodCount: p.GoodCount,
			BadCount:  p.BadCount,
			Sentiment: normalizeSentiment(p.Sentiment),
			Excerpts:  []ExcerptView{},
		}
		for _, e := range grouped[p.ID] {
			view.Excerpts = append(view.Excerpts, ExcerptView{
				ExcerptID:  e.ID,
				Text:       e.Text,
				Happy:      e.Happy,
				FromGoogle: e.GoogleReviewID != nil,
			})
		}
		views[i] = view
	}
	return views, nil
}

// selectDisplay takes the top phrases by mention count but guarantees at
// least one bad-sentiment phrase is represented when the tenant has one:
// negative themes need attention even when the raw ranking crowds them out.
func selectDisplay(all []store.Phrase, limit int) []store.Phrase {
	selected := all
	if len(selected) > limit {
		selected = selected[:limit]
	}

	if hasBad(selected) {
		return selected
	}

	for _, p := range all[len(selected):] {
		if normalizeSentiment(p.Sentiment) == "bad" {
			// Swap out the lowest-count selected phrase for the bad one.
			swapped := make([]store.Phrase, len(selected))
			copy(swapped, selected)
			swapped[lowestCountIndex(swapped)] = p
			sort.SliceStable(swapped, func(i, j int) bool {
				return swapped[i].Counts > swapped[j].Counts
			})
			return swapped
		}
	}
	return selected
}

func hasBad(phrases []store.Phrase) bool {
	for _, p := range phrases {
		if normalizeSentiment(p.Sentiment) == "bad" {
			return true
		}
	}
	return false
}

func lowestCountIndex(phrases []store.Phrase) int {
	idx := 0
	for i, p := range phrases {
		if p.Counts < phrases[idx].Counts {
			idx = i
		}
	}
	return idx
}

func normalizeSentiment(s *string) string {
	if s == nil {
		return ""
	}
	if *s == "good" || *s == "bad" {
		return *s
	}
	return ""
}
