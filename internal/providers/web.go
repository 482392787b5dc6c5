package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/cache"
	"github.com/vporoshin/evisearch/internal/model"
)

// WebAdapter searches the open web. When the engine returns a non-empty but
// suspiciously small result it retries once with a relaxed variant before
// giving up; the fallback is the adapter's discretion, not the coordinator's.
type WebAdapter struct {
	httpJSON
	cfg model.WebConfig
}

// NewWebAdapter creates the web search adapter
func NewWebAdapter(cfg model.WebConfig, store cache.Cache, log *zap.Logger) *WebAdapter {
	return &WebAdapter{
		httpJSON: newHTTPJSON(store, log),
		cfg:      cfg,
	}
}

// Name returns the adapter name
func (a *WebAdapter) Name() string { return "web" }

// Kind returns the provider kind
func (a *WebAdapter) Kind() model.SourceKind { return model.SourceWeb }

type webResponse struct {
	Results []model.WebResult `json:"results"`
}

// Search implements the Adapter contract
func (a *WebAdapter) Search(ctx context.Context, variants []string, qctx model.QueryContext) []model.RawDocument {
	limit := a.cfg.Limit
	if limit <= 0 {
		limit = 10
	}
	minResults := a.cfg.MinResults
	if minResults <= 0 {
		minResults = 2
	}

	seen := make(map[string]bool)
	var results []model.WebResult
	for _, variant := range capVariants(variants) {
		hits := a.search(ctx, variant, limit)
		if len(hits) > 0 && len(hits) < minResults {
			if relaxed := relaxVariant(variant); relaxed != variant {
				a.log.Debug("web search retrying with relaxed variant",
					zap.String("variant", variant),
					zap.String("relaxed", relaxed),
				)
				hits = append(hits, a.search(ctx, relaxed, limit)...)
			}
		}
		for _, hit := range hits {
			if !seen[hit.URL] {
				seen[hit.URL] = true
				results = append(results, hit)
			}
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}

	docs := make([]model.RawDocument, 0, len(results))
	for _, r := range results {
		docs = append(docs, r)
	}
	return docs
}

func (a *WebAdapter) search(ctx context.Context, query string, limit int) []model.WebResult {
	searchURL := fmt.Sprintf("%s/search?q=%s&limit=%d",
		a.cfg.BaseURL, url.QueryEscape(query), limit)

	var resp webResponse
	if err := a.getJSON(ctx, searchURL, &resp); err != nil {
		a.log.Warn("web search failed",
			zap.String("query", query),
			zap.Error(err),
		)
		return nil
	}
	return resp.Results
}

// relaxVariant loosens a query: quotes and operators go, and long queries
// lose their trailing qualifiers.
func relaxVariant(variant string) string {
	relaxed := strings.NewReplacer(`"`, "", "(", "", ")", "").Replace(variant)
	words := strings.Fields(relaxed)

	var kept []string
	for _, w := range words {
		switch strings.ToUpper(w) {
		case "AND", "OR", "NOT":
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) > 6 {
		kept = kept[:6]
	}
	return strings.Join(kept, " ")
}
