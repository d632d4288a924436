package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Excerpt is a short quoted span tied to one phrase and one source review.
// Exactly one of ReviewID / GoogleReviewID is set.
type Excerpt struct {
	ID             uuid.UUID
	PhraseID       uuid.UUID
	TenantID       uuid.UUID
	Happy          bool
	Text           string
	ReviewID       *uuid.UUID
	GoogleReviewID *uuid.UUID
	CreatedAt      time.Time
}

// ExcerptInsert is one validated excerpt candidate ready to persist.
type ExcerptInsert struct {
	Happy          bool
	Text           string
	ReviewID       *uuid.UUID
	GoogleReviewID *uuid.UUID
}

// ExcerptGroup is the full replacement excerpt set for one phrase.
type ExcerptGroup struct {
	PhraseID uuid.UUID
	Excerpts []ExcerptInsert
}

// ReplaceExcerpts swaps out each touched phrase's excerpt set and recomputes
// its sentiment counters, all inside one transaction. Concurrent generation
// runs for the same tenant are serialized with an advisory lock held for the
// duration of the transaction. Returns the number of excerpts inserted.
func (s *Store) ReplaceExcerpts(ctx context.Context, tenantID uuid.UUID, groups []ExcerptGroup) (int, error) {
	if len(groups) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrWrite, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, tenantID); err != nil {
		return 0, fmt.Errorf("%w: advisory lock: %v", ErrWrite, err)
	}

	var total int
	for _, g := range groups {
		if _, err := tx.Exec(ctx, `
			DELETE FROM excerpts WHERE phrase_id = $1 AND tenant_id = $2`,
			g.PhraseID, tenantID,
		); err != nil {
			return 0, fmt.Errorf("%w: delete excerpts: %v", ErrWrite, err)
		}

		for _, e := range g.Excerpts {
			if _, err := tx.Exec(ctx, `
				INSERT INTO excerpts (id, phrase_id, tenant_id, happy, text, review_id, google_review_id, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
				uuid.New(), g.PhraseID, tenantID, e.Happy, e.Text, e.ReviewID, e.GoogleReviewID,
			); err != nil {
				return 0, fmt.Errorf("%w: insert excerpt: %v", ErrWrite, err)
			}
			total++
		}

		if _, err := tx.Exec(ctx, `
			UPDATE phrases SET
				good_count = (SELECT count(*) FROM excerpts WHERE phrase_id = $1 AND happy),
				bad_count  = (SELECT count(*) FROM excerpts WHERE phrase_id = $1 AND NOT happy),
				updated_at = now()
			WHERE id = $1 AND tenant_id = $2`,
			g.PhraseID, tenantID,
		); err != nil {
			return 0, fmt.Errorf("%w: recompute counts: %v", ErrWrite, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrWrite, err)
	}
	return total, nil
}

// ExcerptsByPhrase loads all excerpts for the given phrases, grouped by
// phrase id.
func (s *Store) ExcerptsByPhrase(ctx context.Context, tenantID uuid.UUID, phraseIDs []uuid.UUID) (map[uuid.UUID][]Excerpt, error) {
	if len(phraseIDs) == 0 {
		return map[uuid.UUID][]Excerpt{}, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, phrase_id, tenant_id, happy, text, review_id, google_review_id, created_at
		FROM excerpts
		WHERE tenant_id = $1 AND phrase_id = ANY($2)
		ORDER BY created_at DESC`,
		tenantID, phraseIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query excerpts: %w", err)
	}
	defer rows.Close()

	grouped := make(map[uuid.UUID][]Excerpt)
	for rows.Next() {
		var e Excerpt
		if err := rows.Scan(&e.ID, &e.PhraseID, &e.TenantID, &e.Happy, &e.Text, &e.ReviewID, &e.GoogleReviewID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan excerpt: %w", err)
		}
		grouped[e.PhraseID] = append(grouped[e.PhraseID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate excerpts: %w", err)
	}
	return grouped, nil
}
