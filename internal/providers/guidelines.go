package providers

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/cache"
	"github.com/vporoshin/evisearch/internal/llm"
	"github.com/vporoshin/evisearch/internal/model"
)

// GuidelinesAdapter searches the vector-indexed guideline store. The query is
// embedded through the rate-limited completion client; if embedding fails the
// adapter contributes nothing rather than inventing a lookup.
type GuidelinesAdapter struct {
	httpJSON
	cfg        model.GuidelinesConfig
	completion *llm.Client
}

// NewGuidelinesAdapter creates the guideline-store adapter
func NewGuidelinesAdapter(cfg model.GuidelinesConfig, completion *llm.Client, store cache.Cache, log *zap.Logger) *GuidelinesAdapter {
	return &GuidelinesAdapter{
		httpJSON:   newHTTPJSON(store, log),
		cfg:        cfg,
		completion: completion,
	}
}

// Name returns the adapter name
func (a *GuidelinesAdapter) Name() string { return "guidelines" }

// Kind returns the provider kind
func (a *GuidelinesAdapter) Kind() model.SourceKind { return model.SourceGuidelines }

type vectorSearchRequest struct {
	Vector []float32 `json:"vector"`
	Limit  int       `json:"limit"`
}

type vectorSearchResponse struct {
	Result []vectorHit `json:"result"`
}

type vectorHit struct {
	Score   float64                `json:"score"`
	Payload model.GuidelinePassage `json:"payload"`
}

// Search implements the Adapter contract
func (a *GuidelinesAdapter) Search(ctx context.Context, variants []string, qctx model.QueryContext) []model.RawDocument {
	if a.completion == nil || len(variants) == 0 {
		return nil
	}

	vectors, err := a.completion.Embed(ctx, []string{variants[0]})
	if err != nil || len(vectors) == 0 {
		a.log.Warn("guideline query embedding failed", zap.Error(err))
		return nil
	}

	topK := a.cfg.TopK
	if topK <= 0 {
		topK = 30
	}

	searchURL := fmt.Sprintf("%s/collections/guidelines/points/search", a.cfg.BaseURL)
	var resp vectorSearchResponse
	err = a.postJSON(ctx, searchURL, vectorSearchRequest{Vector: vectors[0], Limit: topK}, &resp)
	if err != nil {
		a.log.Warn("guideline vector search failed", zap.Error(err))
		return nil
	}

	passages := make([]model.GuidelinePassage, 0, len(resp.Result))
	for _, hit := range resp.Result {
		p := hit.Payload
		p.VectorScore = hit.Score
		passages = append(passages, p)
	}

	return a.capByTier(passages)
}

// capByTier keeps the best hits per issuing-body tier: M1 from the highest
// tier, M2 from specialty bodies, M3 from the rest.
func (a *GuidelinesAdapter) capByTier(passages []model.GuidelinePassage) []model.RawDocument {
	limits := map[int]int{
		1: a.cfg.Tier1Limit,
		2: a.cfg.Tier2Limit,
		3: a.cfg.Tier3Limit,
	}
	for tier, limit := range limits {
		if limit <= 0 {
			limits[tier] = 5
		}
	}

	sorted := make([]model.GuidelinePassage, len(passages))
	copy(sorted, passages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].VectorScore > sorted[j].VectorScore
	})

	taken := map[int]int{}
	var docs []model.RawDocument
	for _, p := range sorted {
		tier := p.Tier
		if tier < 1 || tier > 3 {
			tier = 3
		}
		if taken[tier] >= limits[tier] {
			continue
		}
		taken[tier]++
		docs = append(docs, p)
	}
	return docs
}
