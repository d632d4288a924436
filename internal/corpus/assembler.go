// Package corpus assembles the bounded, time-ordered set of review texts
// a tenant's pipeline runs are prompted with.
package corpus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourceInternal Source = "internal"
	SourceGoogle   Source = "google"
)

// SourceReview is a raw review row as loaded from storage, before
// truncation and ordering.
type SourceReview struct {
	ID        uuid.UUID
	Stars     *int
	Text      string
	UpdatedAt *time.Time
	CreatedAt *time.Time
}

// Item is one entry of the assembled corpus.
type Item struct {
	ID     uuid.UUID `json:"id"`
	Source Source    `json:"source"`
	Stars  *int      `json:"stars"`
	Text   string    `json:"text"`
}

// ReviewSource abstracts the two review tables. Implemented by the store.
type ReviewSource interface {
	TenantReviews(ctx context.Context, tenantID uuid.UUID) ([]SourceReview, error)
	TenantGoogleReviews(ctx context.Context, tenantID uuid.UUID) ([]SourceReview, error)
}

type Assembler struct {
	reviews ReviewSource

	// MaxReviews caps the corpus size, MaxChars caps each review text.
	// Both bound prompt size.
	MaxReviews int
	MaxChars   int
}

func NewAssembler(reviews ReviewSource, maxReviews, maxChars int) *Assembler {
	if maxReviews <= 0 {
		maxReviews = 100
	}
	if maxChars <= 0 {
		maxChars = 600
	}
	return &Assembler{reviews: reviews, MaxReviews: maxReviews, MaxChars: maxChars}
}

// Assemble loads both review sources for the tenant and returns at most
// MaxReviews items, most recent first. An empty result is valid and means
// there is nothing to analyze.
func (a *Assembler) Assemble(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	internal, err := a.reviews.TenantReviews(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	google, err := a.reviews.TenantGoogleReviews(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load google reviews: %w", err)
	}
	return a.merge(internal, google), nil
}

type datedItem struct {
	Item
	at time.Time
}

func (a *Assembler) merge(internal, google []SourceReview) []Item {
	dated := make([]datedItem, 0, len(internal)+len(google))
	for _, r := range internal {
		dated = append(dated, datedItem{Item: a.item(r, SourceInternal), at: recency(r)})
	}
	for _, r := range google {
		dated = append(dated, datedItem{Item: a.item(r, SourceGoogle), at: recency(r)})
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].at.After(dated[j].at)
	})

	if len(dated) > a.MaxReviews {
		dated = dated[:a.MaxReviews]
	}

	items := make([]Item, len(dated))
	for i, d := range dated {
		items[i] = d.Item
	}
	return items
}

func (a *Assembler) item(r SourceReview, src Source) Item {
	text := r.Text
	if len(text) > a.MaxChars {
		text = text[:a.MaxChars]
	}
	return Item{ID: r.ID, Source: src, Stars: r.Stars, Text: text}
}

// recency picks updated_at, falling back to created_at, falling back to the
// epoch so undated rows sort last.
func recency(r SourceReview) time.Time {
	if r.UpdatedAt != nil {
		return *r.UpdatedAt
	}
	if r.CreatedAt != nil {
		return *r.CreatedAt
	}
	return time.Unix(0, 0).UTC()
}
