package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Pougar/upreview/internal/corpus"
)

// primaryText selects the authoritative text column. Reviews synced from
// Google carry the original text in google_text; the internal submission
// flow writes text.
const primaryText = `CASE WHEN primary_source = 'google' THEN COALESCE(google_text, '') ELSE COALESCE(text, '') END`

// TenantReviews returns first-party reviews whose primary text is non-empty.
func (s *Store) TenantReviews(ctx context.Context, tenantID uuid.UUID) ([]corpus.SourceReview, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, stars, `+primaryText+` AS body, updated_at, created_at
		FROM reviews
		WHERE tenant_id = $1 AND `+primaryText+` <> ''`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	return scanSourceReviews(rows)
}

// TenantGoogleReviews returns google-sourced reviews not yet linked to an
// internal client record.
func (s *Store) TenantGoogleReviews(ctx context.Context, tenantID uuid.UUID) ([]corpus.SourceReview, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, stars, COALESCE(text, '') AS body, updated_at, created_at
		FROM google_reviews
		WHERE tenant_id = $1 AND linked = false AND COALESCE(text, '') <> ''`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("query google reviews: %w", err)
	}
	return scanSourceReviews(rows)
}

func scanSourceReviews(rows pgx.Rows) ([]corpus.SourceReview, error) {
	defer rows.Close()

	var out []corpus.SourceReview
	for rows.Next() {
		var r corpus.SourceReview
		if err := rows.Scan(&r.ID, &r.Stars, &r.Text, &r.UpdatedAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return out, nil
}
