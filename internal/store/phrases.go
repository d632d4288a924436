package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Phrase is a tenant-scoped recurring topic extracted from review text.
// GoodCount and BadCount are derived from the phrase's current excerpt set.
type Phrase struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Phrase    string
	Counts    int
	GoodCount int
	BadCount  int
	Sentiment *string // "good" | "bad" | nil
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PhraseUpsert is one candidate to persist in a direct-extract run.
type PhraseUpsert struct {
	Phrase    string
	Counts    int
	Sentiment string // "" means unclassified
}

const phraseColumns = `id, tenant_id, phrase, counts, good_count, bad_count, sentiment, created_at, updated_at`

// TopPhrases returns the tenant's phrases ranked for the dashboard:
// mention count first, recency second.
func (s *Store) TopPhrases(ctx context.Context, tenantID uuid.UUID, limit int) ([]Phrase, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+phraseColumns+`
		FROM phrases
		WHERE tenant_id = $1
		ORDER BY counts DESC, updated_at DESC
		LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query top phrases: %w", err)
	}
	return scanPhrases(rows)
}

// AllPhrases returns every phrase for the tenant, highest mention count
// first. Used to exclude known phrases from suggestion runs and to apply
// the dashboard selection policy over the full candidate set.
func (s *Store) AllPhrases(ctx context.Context, tenantID uuid.UUID) ([]Phrase, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+phraseColumns+`
		FROM phrases
		WHERE tenant_id = $1
		ORDER BY counts DESC, updated_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("query phrases: %w", err)
	}
	return scanPhrases(rows)
}

// RecentPhrases returns the most-recently-touched phrases, the authoritative
// list for excerpt generation.
func (s *Store) RecentPhrases(ctx context.Context, tenantID uuid.UUID, limit int) ([]Phrase, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+phraseColumns+`
		FROM phrases
		WHERE tenant_id = $1
		ORDER BY updated_at DESC, counts DESC, id
		LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent phrases: %w", err)
	}
	return scanPhrases(rows)
}

// UpsertPhrases persists a batch of extracted candidates in one transaction.
// A candidate matching an existing phrase case-insensitively updates its
// counts and timestamp; otherwise a new row is inserted with zeroed
// sentiment counters. Returns (inserted, updated).
func (s *Store) UpsertPhrases(ctx context.Context, tenantID uuid.UUID, batch []PhraseUpsert) (int, int, error) {
	if len(batch) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: begin: %v", ErrWrite, err)
	}
	defer tx.Rollback(ctx)

	var inserted, updated int
	for _, c := range batch {
		var existingID uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT id FROM phrases
			WHERE tenant_id = $1 AND LOWER(phrase) = LOWER($2)`,
			tenantID, c.Phrase,
		).Scan(&existingID)

		switch {
		case err == nil:
			_, err = tx.Exec(ctx, `
				UPDATE phrases SET counts = $1, updated_at = now()
				WHERE id = $2 AND tenant_id = $3`,
				c.Counts, existingID, tenantID,
			)
			if err != nil {
				return 0, 0, fmt.Errorf("%w: update phrase: %v", ErrWrite, err)
			}
			updated++
		case errors.Is(err, pgx.ErrNoRows):
			_, err = tx.Exec(ctx, `
				INSERT INTO phrases (id, tenant_id, phrase, counts, good_count, bad_count, sentiment, created_at, updated_at)
				VALUES ($1, $2, $3, $4, 0, 0, $5, now(), now())`,
				uuid.New(), tenantID, c.Phrase, c.Counts, nullIfEmpty(c.Sentiment),
			)
			if err != nil {
				return 0, 0, fmt.Errorf("%w: insert phrase: %v", ErrWrite, err)
			}
			inserted++
		default:
			return 0, 0, fmt.Errorf("%w: lookup phrase: %v", ErrWrite, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("%w: commit: %v", ErrWrite, err)
	}
	return inserted, updated, nil
}

// AddPhrase inserts a manually-added or accepted-suggestion phrase unless a
// case-insensitive match already exists. Returns whether a row was created.
func (s *Store) AddPhrase(ctx context.Context, tenantID uuid.UUID, text string, counts int, sentiment string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO phrases (id, tenant_id, phrase, counts, good_count, bad_count, sentiment, created_at, updated_at)
		SELECT $1, $2, $3, $4, 0, 0, $5, now(), now()
		WHERE NOT EXISTS (
			SELECT 1 FROM phrases WHERE tenant_id = $2 AND LOWER(phrase) = LOWER($3)
		)`,
		uuid.New(), tenantID, text, counts, nullIfEmpty(sentiment),
	)
	if err != nil {
		return false, fmt.Errorf("%w: add phrase: %v", ErrWrite, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeletePhrase removes a phrase; its excerpts go with it via the cascade on
// the foreign key.
func (s *Store) DeletePhrase(ctx context.Context, tenantID, phraseID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM phrases WHERE id = $1 AND tenant_id = $2`,
		phraseID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("%w: delete phrase: %v", ErrWrite, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPhrases(rows pgx.Rows) ([]Phrase, error) {
	defer rows.Close()

	var out []Phrase
	for rows.Next() {
		var p Phrase
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Phrase, &p.Counts, &p.GoodCount, &p.BadCount, &p.Sentiment, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan phrase: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phrases: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
