package providers

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/cache"
	"github.com/vporoshin/evisearch/internal/model"
)

// LabelsAdapter searches the structured drug/product label store. It queries
// by extracted drug entity rather than free text, so it contributes nothing
// when the query names no drug.
type LabelsAdapter struct {
	httpJSON
	cfg model.LabelsConfig
}

// NewLabelsAdapter creates the drug-label adapter
func NewLabelsAdapter(cfg model.LabelsConfig, store cache.Cache, log *zap.Logger) *LabelsAdapter {
	return &LabelsAdapter{
		httpJSON: newHTTPJSON(store, log),
		cfg:      cfg,
	}
}

// Name returns the adapter name
func (a *LabelsAdapter) Name() string { return "labels" }

// Kind returns the provider kind
func (a *LabelsAdapter) Kind() model.SourceKind { return model.SourceLabels }

type labelsResponse struct {
	Results []model.DrugLabel `json:"results"`
}

// Search implements the Adapter contract
func (a *LabelsAdapter) Search(ctx context.Context, variants []string, qctx model.QueryContext) []model.RawDocument {
	drugs := qctx.Entities.Drugs
	if len(drugs) == 0 {
		return nil
	}

	limit := a.cfg.Limit
	if limit <= 0 {
		limit = 10
	}

	seen := make(map[string]bool)
	var docs []model.RawDocument
	for _, drug := range drugs {
		searchURL := fmt.Sprintf("%s/drug/label.json?search=%s&limit=%d",
			a.cfg.BaseURL, url.QueryEscape(drug), limit)

		var resp labelsResponse
		if err := a.getJSON(ctx, searchURL, &resp); err != nil {
			a.log.Warn("label search failed",
				zap.String("drug", drug),
				zap.Error(err),
			)
			continue
		}

		for _, label := range resp.Results {
			if seen[label.SetID] {
				continue
			}
			seen[label.SetID] = true
			docs = append(docs, label)
			if len(docs) >= limit {
				return docs
			}
		}
	}
	return docs
}
