package providers

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/cache"
	"github.com/vporoshin/evisearch/internal/model"
)

// TrialsAdapter searches the clinical-trial registry
type TrialsAdapter struct {
	httpJSON
	cfg model.TrialsConfig
}

// NewTrialsAdapter creates the registry adapter
func NewTrialsAdapter(cfg model.TrialsConfig, store cache.Cache, log *zap.Logger) *TrialsAdapter {
	return &TrialsAdapter{
		httpJSON: newHTTPJSON(store, log),
		cfg:      cfg,
	}
}

// Name returns the adapter name
func (a *TrialsAdapter) Name() string { return "trials" }

// Kind returns the provider kind
func (a *TrialsAdapter) Kind() model.SourceKind { return model.SourceTrials }

type trialsResponse struct {
	Studies []model.TrialRecord `json:"studies"`
}

// Search implements the Adapter contract
func (a *TrialsAdapter) Search(ctx context.Context, variants []string, qctx model.QueryContext) []model.RawDocument {
	limit := a.cfg.Limit
	if limit <= 0 {
		limit = 15
	}

	seen := make(map[string]bool)
	var docs []model.RawDocument
	for _, variant := range capVariants(variants) {
		searchURL := fmt.Sprintf("%s/v2/studies?query=%s&pageSize=%d",
			a.cfg.BaseURL, url.QueryEscape(variant), limit)

		var resp trialsResponse
		if err := a.getJSON(ctx, searchURL, &resp); err != nil {
			a.log.Warn("trial search failed",
				zap.String("variant", variant),
				zap.Error(err),
			)
			continue
		}

		for _, study := range resp.Studies {
			if seen[study.NCTID] {
				continue
			}
			seen[study.NCTID] = true
			docs = append(docs, study)
			if len(docs) >= limit {
				return docs
			}
		}
	}
	return docs
}
