package providers

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/cache"
	"github.com/vporoshin/evisearch/internal/llm"
	"github.com/vporoshin/evisearch/internal/model"
)

// expandTimeout bounds the optional completion-client query expansion
const expandTimeout = 10 * time.Second

// PubMedAdapter searches the bibliographic literature API. It is the primary
// structured source: searches run per variant, PMIDs are deduplicated across
// variants, and the result set is capped to the most-recent N plus the oldest
// M so a prolific topic cannot flood downstream ranking.
type PubMedAdapter struct {
	httpJSON
	cfg        model.PubMedConfig
	completion *llm.Client // Optional, used only for query expansion
}

// NewPubMedAdapter creates the bibliographic adapter. completion may be nil.
func NewPubMedAdapter(cfg model.PubMedConfig, completion *llm.Client, store cache.Cache, log *zap.Logger) *PubMedAdapter {
	return &PubMedAdapter{
		httpJSON:   newHTTPJSON(store, log),
		cfg:        cfg,
		completion: completion,
	}
}

// Name returns the adapter name
func (a *PubMedAdapter) Name() string { return "pubmed" }

// Kind returns the provider kind
func (a *PubMedAdapter) Kind() model.SourceKind { return model.SourcePubMed }

type pubmedSearchResponse struct {
	IDList []string `json:"idlist"`
}

type pubmedSummaryResponse struct {
	Articles []model.PubMedArticle `json:"articles"`
}

// Search implements the Adapter contract
func (a *PubMedAdapter) Search(ctx context.Context, variants []string, qctx model.QueryContext) []model.RawDocument {
	variants = capVariants(variants)
	variants = a.expand(ctx, variants, qctx)

	seen := make(map[string]bool)
	var pmids []string
	for _, variant := range variants {
		for _, pmid := range a.searchIDs(ctx, variant) {
			if !seen[pmid] {
				seen[pmid] = true
				pmids = append(pmids, pmid)
			}
		}
	}
	if len(pmids) == 0 {
		return nil
	}

	articles := a.fetchSummaries(ctx, pmids)
	articles = a.capByRecency(articles)

	docs := make([]model.RawDocument, 0, len(articles))
	for _, art := range articles {
		docs = append(docs, art)
	}
	return docs
}

// expand optionally asks the completion client for one boolean rewrite of the
// best variant. Expansion honors the client's timeout/retry contract; any
// failure just means no extra variant.
func (a *PubMedAdapter) expand(ctx context.Context, variants []string, qctx model.QueryContext) []string {
	if !a.cfg.ExpandQuery || a.completion == nil || len(variants) == 0 {
		return variants
	}
	if !a.completion.Breaker().Allow() {
		return variants
	}

	ctx, cancel := context.WithTimeout(ctx, expandTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Rewrite this clinical question as a single PubMed boolean query using MeSH-style terms. Reply with the query only.\n\nQuestion: %s",
		variants[0],
	)
	rewritten, err := a.completion.Complete(ctx, prompt)
	if err != nil {
		a.log.Debug("pubmed query expansion skipped", zap.Error(err))
		return variants
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" || strings.EqualFold(rewritten, variants[0]) {
		return variants
	}
	return append(variants, rewritten)
}

func (a *PubMedAdapter) searchIDs(ctx context.Context, variant string) []string {
	limit := a.cfg.RecentLimit + a.cfg.OlderLimit
	if limit <= 0 {
		limit = 40
	}

	searchURL := fmt.Sprintf("%s/esearch?db=pubmed&retmax=%d&term=%s",
		a.cfg.BaseURL, limit, url.QueryEscape(variant))

	var resp pubmedSearchResponse
	if err := a.getJSON(ctx, searchURL, &resp); err != nil {
		a.log.Warn("pubmed search failed",
			zap.String("variant", variant),
			zap.Error(err),
		)
		return nil
	}
	return resp.IDList
}

func (a *PubMedAdapter) fetchSummaries(ctx context.Context, pmids []string) []model.PubMedArticle {
	summaryURL := fmt.Sprintf("%s/esummary?db=pubmed&id=%s",
		a.cfg.BaseURL, url.QueryEscape(strings.Join(pmids, ",")))

	var resp pubmedSummaryResponse
	if err := a.getJSON(ctx, summaryURL, &resp); err != nil {
		a.log.Warn("pubmed summary fetch failed",
			zap.Int("pmids", len(pmids)),
			zap.Error(err),
		)
		return nil
	}
	return resp.Articles
}

// capByRecency keeps the most-recent N articles plus the oldest M of the
// remainder, preserving both current and foundational literature.
func (a *PubMedAdapter) capByRecency(articles []model.PubMedArticle) []model.PubMedArticle {
	recentN := a.cfg.RecentLimit
	olderM := a.cfg.OlderLimit
	if recentN <= 0 {
		recentN = 30
	}
	if len(articles) <= recentN {
		return articles
	}

	sorted := make([]model.PubMedArticle, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Year > sorted[j].Year
	})

	kept := sorted[:recentN]
	rest := sorted[recentN:]
	if olderM > 0 && len(rest) > 0 {
		if olderM > len(rest) {
			olderM = len(rest)
		}
		kept = append(kept, rest[len(rest)-olderM:]...)
	}
	return kept
}
