package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Pougar/upreview/internal/events"
	"github.com/Pougar/upreview/internal/excerpt"
	"github.com/Pougar/upreview/internal/llm"
	"github.com/Pougar/upreview/internal/metrics"
	"github.com/Pougar/upreview/internal/store"
)

type tenantRequest struct {
	TenantID string `json:"tenantId"`
}

// extractPhrases handles POST /api/v1/pipeline/extract-phrases.
func (s *Server) extractPhrases(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.decodeTenant(w, r)
	if !ok {
		return
	}

	result, err := s.extractor.Extract(r.Context(), tenantID)
	if err != nil {
		s.writePipelineError(w, "extract_phrases", tenantID, err)
		return
	}
	metrics.PipelineRuns.WithLabelValues("extract_phrases", "success").Inc()

	s.publish(events.SubjectPhrasesExtracted, events.PhrasesExtracted{
		TenantID:  tenantID.String(),
		Inserted:  result.Inserted,
		Updated:   result.Updated,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	phrases := make([]map[string]any, len(result.Phrases))
	for i, c := range result.Phrases {
		phrases[i] = map[string]any{"phrase": c.Phrase, "counts": c.Counts}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"phrases_created": result.Inserted,
		"phrases_updated": result.Updated,
		"phrases":         phrases,
	})
}

// generateExcerpts handles POST /api/v1/pipeline/generate-excerpts.
func (s *Server) generateExcerpts(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.decodeTenant(w, r)
	if !ok {
		return
	}

	result, err := s.generator.Generate(r.Context(), tenantID)
	if err != nil {
		s.writePipelineError(w, "generate_excerpts", tenantID, err)
		return
	}
	metrics.PipelineRuns.WithLabelValues("generate_excerpts", "success").Inc()

	s.publish(events.SubjectExcerptsGenerated, events.ExcerptsGenerated{
		TenantID:         tenantID.String(),
		PhrasesTouched:   result.PhrasesTouched,
		ExcerptsInserted: result.ExcerptsInserted,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"phrases_updated":   result.PhrasesTouched,
		"excerpts_inserted": result.ExcerptsInserted,
	})
}

// suggestPhrases handles POST /api/v1/pipeline/suggest-phrases. No writes.
func (s *Server) suggestPhrases(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.decodeTenant(w, r)
	if !ok {
		return
	}

	result, err := s.extractor.Suggest(r.Context(), tenantID)
	if err != nil {
		s.writePipelineError(w, "suggest_phrases", tenantID, err)
		return
	}
	metrics.PipelineRuns.WithLabelValues("suggest_phrases", "success").Inc()

	newPhrases := make([]map[string]any, len(result.Candidates))
	for i, c := range result.Candidates {
		entry := map[string]any{"phrase": c.Phrase, "counts": c.Counts}
		if c.Sentiment != "" {
			entry["sentiment"] = c.Sentiment
		} else {
			entry["sentiment"] = nil
		}
		newPhrases[i] = entry
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"new_phrases":      newPhrases,
		"existing_skipped": result.SkippedExisting,
	})
}

// listPhrases handles POST /api/v1/pipeline/phrases, the dashboard read
// path.
func (s *Server) listPhrases(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.decodeTenant(w, r)
	if !ok {
		return
	}

	views, err := s.dashboard.Overview(r.Context(), tenantID)
	if err != nil {
		s.writePipelineError(w, "list_phrases", tenantID, err)
		return
	}
	metrics.PipelineRuns.WithLabelValues("list_phrases", "success").Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"phrases": views,
	})
}

type addPhraseRequest struct {
	TenantID  string `json:"tenantId"`
	Phrase    string `json:"phrase"`
	Counts    int    `json:"counts"`
	Sentiment string `json:"sentiment"`
}

// addPhrase handles POST /api/v1/pipeline/phrases/add for manual adds and
// accepted suggestions.
func (s *Server) addPhrase(w http.ResponseWriter, r *http.Request) {
	var req addPhraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", nil)
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", nil)
		return
	}
	if req.Phrase == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PHRASE", nil)
		return
	}
	if req.Sentiment != "good" && req.Sentiment != "bad" {
		req.Sentiment = ""
	}

	created, err := s.store.AddPhrase(r.Context(), tenantID, req.Phrase, req.Counts, req.Sentiment)
	if err != nil {
		s.writePipelineError(w, "add_phrase", tenantID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"created": created,
	})
}

type deletePhraseRequest struct {
	TenantID string `json:"tenantId"`
	PhraseID string `json:"phraseId"`
}

// deletePhrase handles POST /api/v1/pipeline/phrases/delete. The phrase's
// excerpts cascade with it.
func (s *Server) deletePhrase(w http.ResponseWriter, r *http.Request) {
	var req deletePhraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", nil)
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", nil)
		return
	}
	phraseID, err := uuid.Parse(req.PhraseID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_PHRASE_ID", nil)
		return
	}

	if err := s.store.DeletePhrase(r.Context(), tenantID, phraseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", nil)
			return
		}
		s.writePipelineError(w, "delete_phrase", tenantID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// decodeTenant reads the {tenantId} body shared by the pipeline operations.
// A missing or invalid tenant id is rejected before anything else runs.
func (s *Server) decodeTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", nil)
		return uuid.Nil, false
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", nil)
		return uuid.Nil, false
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", map[string]any{"detail": "tenantId is not a valid uuid"})
		return uuid.Nil, false
	}
	return tenantID, true
}

// writePipelineError translates pipeline failures to the structured error
// codes the UI branches on. Raw provider errors never leak through.
func (s *Server) writePipelineError(w http.ResponseWriter, operation string, tenantID uuid.UUID, err error) {
	metrics.PipelineRuns.WithLabelValues(operation, "error").Inc()
	s.logger.Error("pipeline operation failed", "operation", operation, "tenant", tenantID, "error", err)

	var perr *llm.ParseError
	switch {
	case errors.Is(err, excerpt.ErrNoPhrases):
		writeError(w, http.StatusBadRequest, "NO_PHRASES", map[string]any{
			"detail": "no phrases exist for this tenant; run extract-phrases first",
		})
	case errors.As(err, &perr):
		writeError(w, http.StatusBadGateway, "MODEL_PARSE_ERROR", map[string]any{"raw": perr.Raw})
	case errors.Is(err, llm.ErrShape):
		writeError(w, http.StatusBadGateway, "BAD_MODEL_SHAPE", nil)
	case errors.Is(err, llm.ErrCompletion):
		writeError(w, http.StatusBadGateway, "MODEL_ERROR", nil)
	case errors.Is(err, store.ErrWrite):
		writeError(w, http.StatusInternalServerError, "DB_WRITE_ERROR", nil)
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", nil)
	}
}

func (s *Server) publish(subject string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string, extra map[string]any) {
	body := map[string]any{"error": code}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}
