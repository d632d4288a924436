// Package excerpt retrieves short supporting quotes for a tenant's stored
// phrases and atomically replaces each touched phrase's excerpt set.
package excerpt

import (
	"context"
	"errors"
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

// ErrNoPhrases means the tenant has no stored phrases; extraction has to run
// first.
var ErrNoPhrases = errors.New("no phrases to generate excerpts for")

const completionMaxTokens = 8192

type Generator struct {
	llm        *llm.Client
	store      *store.Store
	assembler  *corpus.Assembler
	maxPhrases int
	logger     *slog.Logger
}

func New(llmClient *llm.Client, st *store.Store, asm *corpus.Assembler, maxPhrases int, logger *slog.Logger) *Generator {
	if maxPhrases <= 0 {
		maxPhrases = 20
	}
	return &Generator{
		llm:        llmClient,
		store:      st,
		assembler:  asm,
		maxPhrases: maxPhrases,
		logger:     logger,
	}
}

// Result reports one generation run.
type Result struct {
	PhrasesTouched   int
	ExcerptsInserted int
}

type rawExcerpt struct {
	Text      string `json:"text"`
	Sentiment string `json:"sentiment"`
	ReviewID  string `json:"review_id"`
	IsGoogle  bool   `json:"is_google"`
}

type rawGroup struct {
	Phrase   string       `json:"phrase"`
	Excerpts []rawExcerpt `json:"excerpts"`
}

type modelExcerpts struct {
	Phrases []rawGroup `json:"phrases"`
}

// Generate loads the authoritative phrase list and the corpus, asks the
// model for supporting quotes, validates every candidate against the corpus
// id whitelist and replaces each touched phrase's excerpts transactionally.
func (g *Generator) Generate(ctx context.Context, tenantID uuid.UUID) (*Result, error) {
	phrases, err := g.store.RecentPhrases(ctx, tenantID, g.maxPhrases)
	if err != nil {
		return nil, err
	}
	if len(phrases) == 0 {
		return nil, ErrNoPhrases
	}

	items, err := g.assembler.Assemble(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		g.logger.Info("empty corpus, skipping excerpt generation", "tenant", tenantID)
		return &Result{}, nil
	}

	resp, err := g.retrieve(ctx, tenantID, phrases, items)
	if err != nil {
		return nil, err
	}

	groups := g.validate(phrases, items, resp)
	if len(groups) == 0 {
		g.logger.Info("no excerpt candidates survived validation", "tenant", tenantID)
		return &Result{}, nil
	}

	inserted, err := g.store.ReplaceExcerpts(ctx, tenantID, groups)
	if err != nil {
		return nil, err
	}

	g.logger.Info("excerpts generated",
		"tenant", tenantID,
		"phrases_touched", len(groups),
		"excerpts_inserted", inserted,
	)

	return &Result{PhrasesTouched: len(groups), ExcerptsInserted: inserted}, nil
}

func (g *Generator) retrieve(ctx context.Context, tenantID uuid.UUID, phrases []store.Phrase, items []corpus.Item) (*modelExcerpts, error) {
	lines := make([]string, len(phrases))
	for i, p := range phrases {
		lines[i] = "- " + p.Phrase
	}
	prompt := fmt.Sprintf(generateUserPrompt, strings.Join(lines, "\n"), corpus.Format(items))

	start := time.Now()
	raw, err := g.llm.Complete(ctx, systemPrompt, []llm.Message{{Role: "user", Content: prompt}}, completionMaxTokens)
	metrics.ModelCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrCompletion, err)
	}

	var resp modelExcerpts
	if err := llm.DecodeObject(raw, &resp); err != nil {
		metrics.ModelParseFailures.Inc()
		g.logger.Error("failed to parse excerpt response", "tenant", tenantID, "error", err)
		return nil, err
	}
	if resp.Phrases == nil {
		metrics.ModelParseFailures.Inc()
		return nil, fmt.Errorf("%w: missing phrases array", llm.ErrShape)
	}
	return &resp, nil
}

const maxExcerptLen = 350

// validate drops everything the model was not entitled to say: excerpts for
// phrases outside the authoritative list, empty texts, and review ids absent
// from the whitelist matching their claimed source. Groups left with zero
// excerpts are dropped, leaving those phrases untouched this pass.
func (g *Generator) validate(phrases []store.Phrase, items []corpus.Item, resp *modelExcerpts) []store.ExcerptGroup {
	authoritative := make(map[string]uuid.UUID, len(phrases))
	for _, p := range phrases {
		authoritative[strings.ToLower(p.Phrase)] = p.ID
	}

	internalIDs := make(map[uuid.UUID]bool)
	googleIDs := make(map[uuid.UUID]bool)
	for _, it := range items {
		if it.Source == corpus.SourceGoogle {
			googleIDs[it.ID] = true
		} else {
			internalIDs[it.ID] = true
		}
	}

	// Case-variant groups for the same phrase merge into one.
	byPhrase := make(map[uuid.UUID][]store.ExcerptInsert)
	var order []uuid.UUID

	for _, group := range resp.Phrases {
		phraseID, ok := authoritative[strings.ToLower(strings.TrimSpace(group.Phrase))]
		if !ok {
			metrics.ExcerptsDropped.Add(float64(len(group.Excerpts)))
			continue
		}

		for _, raw := range group.Excerpts {
			ins, ok := validateExcerpt(raw, internalIDs, googleIDs)
			if !ok {
				metrics.ExcerptsDropped.Inc()
				continue
			}
			if _, seen := byPhrase[phraseID]; !seen {
				order = append(order, phraseID)
			}
			byPhrase[phraseID] = append(byPhrase[phraseID], ins)
		}
	}

	groups := make([]store.ExcerptGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, store.ExcerptGroup{PhraseID: id, Excerpts: byPhrase[id]})
	}
	return groups
}

func validateExcerpt(raw rawExcerpt, internalIDs, googleIDs map[uuid.UUID]bool) (store.ExcerptInsert, bool) {
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return store.ExcerptInsert{}, false
	}
	if r := []rune(text); len(r) > maxExcerptLen {
		text = string(r[:maxExcerptLen])
	}

	sentiment := strings.ToLower(strings.TrimSpace(raw.Sentiment))
	if sentiment != "good" && sentiment != "bad" {
		return store.ExcerptInsert{}, false
	}

	reviewID, err := uuid.Parse(strings.TrimSpace(raw.ReviewID))
	if err != nil {
		return store.ExcerptInsert{}, false
	}

	// The id must exist in the whitelist matching its claimed source. A
	// google-flagged id pointing at an internal review is a fabrication.
	ins := store.ExcerptInsert{Happy: sentiment == "good", Text: text}
	if raw.IsGoogle {
		if !googleIDs[reviewID] {
			return store.ExcerptInsert{}, false
		}
		ins.GoogleReviewID = &reviewID
	} else {
		if !internalIDs[reviewID] {
			return store.ExcerptInsert{}, false
		}
		ins.ReviewID = &reviewID
	}
	return ins, true
}
