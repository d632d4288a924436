// Package phrase turns a tenant's review corpus into deduplicated topic
// phrases via the model, in two modes: direct extraction (persists) and
// suggestion (proposes without writing).
package phrase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Pougar/upreview/internal/corpus"
	"github.com/Pougar/upreview/internal/llm"
	"github.com/Pougar/upreview/internal/metrics"
	"github.com/Pougar/upreview/internal/store"
)

const completionMaxTokens = 4096

type Extractor struct {
	llm       *llm.Client
	store     *store.Store
	assembler *corpus.Assembler
	maxCounts int
	logger    *slog.Logger
}

func New(llmClient *llm.Client, st *store.Store, asm *corpus.Assembler, maxCounts int, logger *slog.Logger) *Extractor {
	return &Extractor{
		llm:       llmClient,
		store:     st,
		assembler: asm,
		maxCounts: maxCounts,
		logger:    logger,
	}
}

// ExtractResult reports a direct-extract run.
type ExtractResult struct {
	Inserted int
	Updated  int
	Phrases  []Candidate
}

// SuggestResult reports a suggestion run. Nothing is persisted.
type SuggestResult struct {
	Candidates      []Candidate
	SkippedExisting int
}

// Extract assembles the corpus, asks the model for phrases and upserts every
// candidate. An empty corpus short-circuits: success, no model call, no
// writes.
func (e *Extractor) Extract(ctx context.Context, tenantID uuid.UUID) (*ExtractResult, error) {
	items, err := e.assembler.Assemble(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		e.logger.Info("empty corpus, skipping extraction", "tenant", tenantID)
		return &ExtractResult{}, nil
	}

	candidates, err := e.propose(ctx, tenantID, fmt.Sprintf(extractUserPrompt, corpus.Format(items)))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &ExtractResult{}, nil
	}

	batch := make([]store.PhraseUpsert, len(candidates))
	for i, c := range candidates {
		batch[i] = store.PhraseUpsert{Phrase: c.Phrase, Counts: c.Counts, Sentiment: c.Sentiment}
	}

	inserted, updated, err := e.store.UpsertPhrases(ctx, tenantID, batch)
	if err != nil {
		return nil, err
	}

	e.logger.Info("phrases extracted",
		"tenant", tenantID,
		"candidates", len(candidates),
		"inserted", inserted,
		"updated", updated,
	)

	return &ExtractResult{Inserted: inserted, Updated: updated, Phrases: candidates}, nil
}

// Suggest proposes phrases the tenant does not have yet. Candidates matching
// a stored phrase case-insensitively are dropped and counted instead; the
// caller persists accepted suggestions later through the add-phrase surface.
func (e *Extractor) Suggest(ctx context.Context, tenantID uuid.UUID) (*SuggestResult, error) {
	items, err := e.assembler.Assemble(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		e.logger.Info("empty corpus, skipping suggestion", "tenant", tenantID)
		return &SuggestResult{Candidates: []Candidate{}}, nil
	}

	existing, err := e.store.AllPhrases(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(existing))
	knownList := make([]string, 0, len(existing))
	for _, p := range existing {
		known[strings.ToLower(p.Phrase)] = true
		knownList = append(knownList, "- "+p.Phrase)
	}
	knownText := "(none)"
	if len(knownList) > 0 {
		knownText = strings.Join(knownList, "\n")
	}

	candidates, err := e.propose(ctx, tenantID, fmt.Sprintf(suggestUserPrompt, knownText, corpus.Format(items)))
	if err != nil {
		return nil, err
	}

	result := &SuggestResult{Candidates: []Candidate{}}
	for _, c := range candidates {
		if known[strings.ToLower(c.Phrase)] {
			result.SkippedExisting++
			continue
		}
		result.Candidates = append(result.Candidates, c)
	}

	e.logger.Info("phrases suggested",
		"tenant", tenantID,
		"new", len(result.Candidates),
		"skipped_existing", result.SkippedExisting,
	)

	return result, nil
}

// propose runs one model call and returns sanitized, deduplicated
// candidates.
func (e *Extractor) propose(ctx context.Context, tenantID uuid.UUID, prompt string) ([]Candidate, error) {
	start := time.Now()
	raw, err := e.llm.Complete(ctx, systemPrompt, []llm.Message{{Role: "user", Content: prompt}}, completionMaxTokens)
	metrics.ModelCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrCompletion, err)
	}

	var resp modelPhrases
	if err := llm.DecodeObject(raw, &resp); err != nil {
		metrics.ModelParseFailures.Inc()
		e.logger.Error("failed to parse phrase response", "tenant", tenantID, "error", err)
		return nil, err
	}
	if resp.Phrases == nil {
		metrics.ModelParseFailures.Inc()
		return nil, fmt.Errorf("%w: missing phrases array", llm.ErrShape)
	}

	sanitized := make([]Candidate, 0, len(resp.Phrases))
	for _, rc := range resp.Phrases {
		if c, ok := sanitize(rc, e.maxCounts); ok {
			sanitized = append(sanitized, c)
		}
	}
	return dedupe(sanitized), nil
}

// reviewStoredEvent is the payload published by the review ingestion flow.
type reviewStoredEvent struct {
	TenantID string `json:"tenantId"`
}

// HandleReviewStored re-runs direct extraction for a tenant when a new
// review lands. Registered as a NATS handler when events are configured.
func (e *Extractor) HandleReviewStored(subject string, data []byte) {
	ctx := context.Background()

	var evt reviewStoredEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		e.logger.Error("failed to parse review stored event", "error", err)
		return
	}

	tenantID, err := uuid.Parse(evt.TenantID)
	if err != nil {
		e.logger.Error("invalid tenant id in event", "tenant", evt.TenantID, "error", err)
		return
	}

	result, err := e.Extract(ctx, tenantID)
	if err != nil {
		e.logger.Error("event-triggered extraction failed", "tenant", tenantID, "error", err)
		return
	}

	e.logger.Info("event-triggered extraction complete",
		"tenant", tenantID,
		"inserted", result.Inserted,
		"updated", result.Updated,
	)
}
