package excerpt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/Pougar/upreview/internal/corpus"
	"github.com/Pougar/upreview/internal/llm"
	"github.com/Pougar/upreview/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func modelServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": text}},
			"stop_reason": "end_turn",
		})
	}))
}

func newGenerator(t *testing.T, mock pgxmock.PgxPoolIface, modelURL string) *Generator {
	t.Helper()
	client := llm.NewClient("test-key", "test-model")
	client.SetTestTransport(modelURL)
	st := store.NewWithDB(mock)
	asm := corpus.NewAssembler(st, 100, 600)
	return New(client, st, asm, 20, discardLogger())
}

func reviewColumns() []string {
	return []string{"id", "stars", "body", "updated_at", "created_at"}
}

func phraseColumnNames() []string {
	return []string{"id", "tenant_id", "phrase", "counts", "good_count", "bad_count", "sentiment", "created_at", "updated_at"}
}

func TestGenerate_NoPhrases(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery(`FROM phrases`).WithArgs(tenantID, 20).
		WillReturnRows(pgxmock.NewRows(phraseColumnNames()))

	gen := newGenerator(t, mock, "http://unused.invalid")
	_, err = gen.Generate(context.Background(), tenantID)
	if !errors.Is(err, ErrNoPhrases) {
		t.Errorf("expected ErrNoPhrases, got %v", err)
	}
}

func TestGenerate_EmptyCorpusShortCircuits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	tenantID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM phrases`).WithArgs(tenantID, 20).
		WillReturnRows(pgxmock.NewRows(phraseColumnNames()).
			AddRow(uuid.New(), tenantID, "friendly staff", 3, 0, 0, nil, now, now))
	mock.ExpectQuery(`FROM reviews`).WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows(reviewColumns()))
	mock.ExpectQuery(`FROM google_reviews`).WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows(reviewColumns()))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("model must not be called for an empty corpus")
	}))
	defer server.Close()

	gen := newGenerator(t, mock, server.URL)
	result, err := gen.Generate(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PhrasesTouched != 0 || result.ExcerptsInserted != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestGenerate_ValidatesAndReplaces(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	tenantID := uuid.New()
	phraseID := uuid.New()
	internalID := uuid.New()
	googleID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM phrases`).WithArgs(tenantID, 20).
		WillReturnRows(pgxmock.NewRows(phraseColumnNames()).
			AddRow(phraseID, tenantID, "friendly staff", 3, 0, 0, nil, now, now))
	mock.ExpectQuery(`FROM reviews`).WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows(reviewColumns()).
			AddRow(internalID, nil, "The staff were so friendly", &now, &now))
	mock.ExpectQuery(`FROM google_reviews`).WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows(reviewColumns()).
			AddRow(googleID, nil, "Friendly staff, quick service", &now, &now))

	// The model claims four excerpts: one valid internal, one pointing at an
	// id it invented, one claiming a google source for an internal id, and
	// one valid google. Only the two valid ones survive. A group for a
	// phrase outside the stored list is dropped wholesale.
	response := fmt.Sprintf(`{"phrases":[
		{"phrase":"Friendly Staff","excerpts":[
			{"text":"staff were so friendly","sentiment":"good","review_id":"%s","is_google":false},
			{"text":"made up quote","sentiment":"good","review_id":"%s","is_google":false},
			{"text":"wrong source flag","sentiment":"good","review_id":"%s","is_google":true},
			{"text":"Friendly staff, quick service","sentiment":"good","review_id":"%s","is_google":true}
		]},
		{"phrase":"invented phrase","excerpts":[
			{"text":"anything","sentiment":"bad","review_id":"%s","is_google":false}
		]}
	]}`, internalID, uuid.New(), internalID, googleID, internalID)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs(tenantID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`DELETE FROM excerpts`).WithArgs(phraseID, tenantID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO excerpts`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO excerpts`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE phrases SET`).WithArgs(phraseID, tenantID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	server := modelServer(t, response)
	defer server.Close()

	gen := newGenerator(t, mock, server.URL)
	result, err := gen.Generate(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.PhrasesTouched != 1 {
		t.Errorf("expected 1 phrase touched, got %d", result.PhrasesTouched)
	}
	if result.ExcerptsInserted != 2 {
		t.Errorf("expected 2 excerpts inserted, got %d", result.ExcerptsInserted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGenerate_NothingSurvivesValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	tenantID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM phrases`).WithArgs(tenantID, 20).
		WillReturnRows(pgxmock.NewRows(phraseColumnNames()).
			AddRow(uuid.New(), tenantID, "friendly staff", 3, 0, 0, nil, now, now))
	mock.ExpectQuery(`FROM reviews`).WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows(reviewColumns()).
			AddRow(uuid.New(), nil, "The staff were so friendly", &now, &now))
	mock.ExpectQuery(`FROM google_reviews`).WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows(reviewColumns()))

	// Every excerpt references a fabricated review id; no transaction runs.
	response := fmt.Sprintf(`{"phrases":[
		{"phrase":"friendly staff","excerpts":[
			{"text":"made up","sentiment":"good","review_id":"%s","is_google":false}
		]}
	]}`, uuid.New())

	server := modelServer(t, response)
	defer server.Close()

	gen := newGenerator(t, mock, server.URL)
	result, err := gen.Generate(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PhrasesTouched != 0 || result.ExcerptsInserted != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestValidateExcerpt(t *testing.T) {
	internalID := uuid.New()
	googleID := uuid.New()
	internalIDs := map[uuid.UUID]bool{internalID: true}
	googleIDs := map[uuid.UUID]bool{googleID: true}

	tests := []struct {
		name string
		raw  rawExcerpt
		ok   bool
	}{
		{"valid internal", rawExcerpt{Text: "great", Sentiment: "good", ReviewID: internalID.String()}, true},
		{"valid google", rawExcerpt{Text: "great", Sentiment: "bad", ReviewID: googleID.String(), IsGoogle: true}, true},
		{"empty text", rawExcerpt{Text: "  ", Sentiment: "good", ReviewID: internalID.String()}, false},
		{"bad sentiment", rawExcerpt{Text: "great", Sentiment: "neutral", ReviewID: internalID.String()}, false},
		{"unparseable id", rawExcerpt{Text: "great", Sentiment: "good", ReviewID: "not-a-uuid"}, false},
		{"unknown id", rawExcerpt{Text: "great", Sentiment: "good", ReviewID: uuid.New().String()}, false},
		{"google id flagged internal", rawExcerpt{Text: "great", Sentiment: "good", ReviewID: googleID.String()}, false},
		{"internal id flagged google", rawExcerpt{Text: "great", Sentiment: "good", ReviewID: internalID.String(), IsGoogle: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ins, ok := validateExcerpt(tt.raw, internalIDs, googleIDs)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if !ok {
				return
			}
			if (ins.ReviewID != nil) == (ins.GoogleReviewID != nil) {
				t.Error("exactly one review reference must be set")
			}
		})
	}
}
