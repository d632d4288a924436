package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phraseRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "tenant_id", "phrase", "counts", "good_count", "bad_count", "sentiment", "created_at", "updated_at"})
}

func TestUpsertPhrases_InsertAndUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	existingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM phrases`).WithArgs(tenantID, "friendly staff").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO phrases`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id FROM phrases`).WithArgs(tenantID, "long waits").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(existingID))
	mock.ExpectExec(`UPDATE phrases SET counts`).WithArgs(4, existingID, tenantID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	st := NewWithDB(mock)
	inserted, updated, err := st.UpsertPhrases(context.Background(), tenantID, []PhraseUpsert{
		{Phrase: "friendly staff", Counts: 3, Sentiment: "good"},
		{Phrase: "long waits", Counts: 4, Sentiment: "bad"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, updated)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPhrases_EmptyBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st := NewWithDB(mock)
	inserted, updated, err := st.UpsertPhrases(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Zero(t, updated)
}

func TestUpsertPhrases_RollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM phrases`).WithArgs(tenantID, "friendly staff").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO phrases`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	st := NewWithDB(mock)
	_, _, err = st.UpsertPhrases(context.Background(), tenantID, []PhraseUpsert{
		{Phrase: "friendly staff", Counts: 3},
	})
	assert.ErrorIs(t, err, ErrWrite)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddPhrase(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()

	mock.ExpectExec(`INSERT INTO phrases`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO phrases`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	st := NewWithDB(mock)
	created, err := st.AddPhrase(context.Background(), tenantID, "friendly staff", 1, "good")
	require.NoError(t, err)
	assert.True(t, created, "first add should create the phrase")

	created, err = st.AddPhrase(context.Background(), tenantID, "Friendly Staff", 1, "good")
	require.NoError(t, err)
	assert.False(t, created, "case-variant duplicate should be skipped")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePhrase_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	phraseID := uuid.New()

	mock.ExpectExec(`DELETE FROM phrases`).WithArgs(phraseID, tenantID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	st := NewWithDB(mock)
	err = st.DeletePhrase(context.Background(), tenantID, phraseID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTopPhrases_ScansNullableSentiment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	now := time.Now()
	good := "good"

	mock.ExpectQuery(`FROM phrases`).WithArgs(tenantID, 10).
		WillReturnRows(phraseRows().
			AddRow(uuid.New(), tenantID, "friendly staff", 5, 2, 0, &good, now, now).
			AddRow(uuid.New(), tenantID, "fair prices", 3, 0, 0, nil, now, now))

	st := NewWithDB(mock)
	phrases, err := st.TopPhrases(context.Background(), tenantID, 10)
	require.NoError(t, err)
	require.Len(t, phrases, 2)

	require.NotNil(t, phrases[0].Sentiment)
	assert.Equal(t, "good", *phrases[0].Sentiment)
	assert.Nil(t, phrases[1].Sentiment)
}
