package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leadscout/internal/logging"
	"leadscout/internal/services"
	"leadscout/internal/store"
)

// Completer issues a JSON completion request. Satisfied by *Client.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Analyzer scores unanalyzed items in batches and persists the results.
type Analyzer struct {
	store     *store.Store
	completer Completer
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// NewAnalyzer builds an analyzer. A nil logger disables logging.
func NewAnalyzer(st *store.Store, completer Completer, batchSize int, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Analyzer{
		store:     st,
		completer: completer,
		batchSize: batchSize,
		logger:    logging.NewComponentLogger(logger, "enrich"),
		now:       time.Now,
	}
}

// Name implements the pipeline stage contract.
func (a *Analyzer) Name() string { return "analyze" }

// Run implements the pipeline stage contract.
func (a *Analyzer) Run(ctx context.Context) error {
	_, err := a.AnalyzePending(ctx)
	return err
}

// BatchResult aggregates the outcome of one analysis pass.
type BatchResult struct {
	Analyzed int
	Scored   int
	Zeroed   int
	Batches  int
}

type promptItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Flair   string `json:"flair,omitempty"`
	OCRText string `json:"ocr_text,omitempty"`
}

type scoredItem struct {
	ID             string   `json:"id"`
	RelevanceScore float64  `json:"relevance_score"`
	Theme          string   `json:"theme"`
	Summary        string   `json:"summary"`
	Tags           []string `json:"tags"`
	Rationale      string   `json:"rationale"`
}

type relevanceResponse struct {
	Results []scoredItem `json:"results"`
}

// AnalyzePending scores every unanalyzed item batch by batch. A batch whose
// completion fails after retries is recorded with zero scores, the same as
// items the model omits from a successful response, so a flaky upstream
// never aborts the run and items are not re-submitted forever.
func (a *Analyzer) AnalyzePending(ctx context.Context) (BatchResult, error) {
	var result BatchResult
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pending, err := a.store.UnanalyzedItems(ctx, a.batchSize)
		if err != nil {
			return result, services.Wrap(services.ErrStorage, "enrich", "analyze", "load pending items", err)
		}
		if len(pending) == 0 {
			return result, nil
		}

		result.Batches++
		scored, err := a.analyzeBatch(ctx, pending)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			// The whole batch falls through to the zero-score path below.
			a.logger.Error("batch analysis failed, recording zero scores",
				logging.Int("batch_size", len(pending)),
				logging.Error(err))
			scored = nil
		}

		analyzedAt := a.now().UTC()
		for _, item := range pending {
			analysis, ok := scored[item.ID]
			if !ok {
				analysis = store.Analysis{AnalyzedAt: analyzedAt}
				result.Zeroed++
			} else {
				result.Scored++
			}
			analysis.AnalyzedAt = analyzedAt
			if err := a.store.UpdateAnalysis(ctx, item.ID, analysis); err != nil {
				return result, services.Wrap(services.ErrStorage, "enrich", "analyze", "persist analysis", err)
			}
			result.Analyzed++
		}

		a.logger.Info("batch analyzed",
			logging.Int("items", len(pending)),
			logging.Int("scored", len(scored)))
	}
}

func (a *Analyzer) analyzeBatch(ctx context.Context, items []*store.Item) (map[string]store.Analysis, error) {
	prompt := make([]promptItem, 0, len(items))
	for _, item := range items {
		prompt = append(prompt, promptItem{
			ID:      item.ID,
			Title:   item.Title,
			Body:    item.Body,
			Flair:   item.Flair,
			OCRText: item.OCRText,
		})
	}
	encoded, err := json.Marshal(prompt)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	content, err := a.completer.CompleteJSON(ctx, relevancePrompt, string(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "enrich", "analyze", "completion request", err)
	}

	var parsed relevanceResponse
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "enrich", "analyze", "parse completion payload", err)
	}

	scored := make(map[string]store.Analysis, len(parsed.Results))
	for _, entry := range parsed.Results {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			continue
		}
		score := entry.RelevanceScore
		if score < 0 {
			score = 0
		}
		if score > 10 {
			score = 10
		}
		scored[id] = store.Analysis{
			RelevanceScore: score,
			Theme:          strings.TrimSpace(entry.Theme),
			Summary:        strings.TrimSpace(entry.Summary),
			Tags:           strings.Join(entry.Tags, ", "),
			Rationale:      strings.TrimSpace(entry.Rationale),
		}
	}
	return scored, nil
}
