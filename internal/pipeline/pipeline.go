package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/cache"
	"github.com/vporoshin/evisearch/internal/fetch"
	"github.com/vporoshin/evisearch/internal/gap"
	"github.com/vporoshin/evisearch/internal/llm"
	"github.com/vporoshin/evisearch/internal/model"
	"github.com/vporoshin/evisearch/internal/normalize"
	"github.com/vporoshin/evisearch/internal/providers"
	"github.com/vporoshin/evisearch/internal/rerank"
	"github.com/vporoshin/evisearch/internal/retrieve"
)

// Pipeline orchestrates one query end to end: fan-out retrieval,
// normalization, two-stage reranking and gap analysis with at most one
// supplementary round.
type Pipeline struct {
	coordinator *retrieve.Coordinator
	normalizer  *normalize.Normalizer
	reranker    *rerank.Reranker
	analyzer    *gap.Analyzer
	completion  *llm.Client // nil when no credentials are configured
	log         *zap.Logger

	degraded []string // Construction-time degradation notes, copied into every result
}

// New wires the full pipeline from configuration. A missing completion
// credential degrades scoring and query expansion instead of failing.
func New(cfg *model.Config, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}

	store := cache.FromConfig(cfg.Cache)

	var degraded []string
	var completion *llm.Client
	if len(cfg.LLM.APIKeys) > 0 {
		c, err := llm.FromConfig(cfg.LLM, log)
		if err != nil {
			return nil, err
		}
		completion = c
	} else {
		degraded = append(degraded, "no completion credentials: lexical scoring only, no query expansion")
		log.Warn("completion client disabled, running fully deterministic")
	}

	adapters := []providers.Adapter{
		providers.NewPubMedAdapter(cfg.Providers.PubMed, completion, store, log),
		providers.NewLabelsAdapter(cfg.Providers.Labels, store, log),
		providers.NewGuidelinesAdapter(cfg.Providers.Guidelines, completion, store, log),
		providers.NewTrialsAdapter(cfg.Providers.Trials, store, log),
		providers.NewWebAdapter(cfg.Providers.Web, store, log),
	}

	var scorer rerank.Scorer
	if completion != nil {
		scorer = rerank.NewFallbackScorer(
			rerank.NewEmbeddingScorer(completion, log),
			rerank.NewLexicalScorer(),
			log,
		)
	} else {
		scorer = rerank.NewLexicalScorer()
	}

	fetcher := fetch.New(cfg.Fetch, store, log)

	return &Pipeline{
		coordinator: retrieve.New(adapters, cfg.Retrieval, log),
		normalizer:  normalize.New(cfg.Gap.RecentYears),
		reranker:    rerank.New(cfg.Rerank, cfg.Concurrency, scorer, fetcher, log),
		analyzer:    gap.New(cfg.Gap, cfg.Rerank.Stage2Keep, log),
		completion:  completion,
		log:         log,
		degraded:    degraded,
	}, nil
}

// Close releases the completion client's dispatcher
func (p *Pipeline) Close() {
	if p.completion != nil {
		p.completion.Close()
	}
}

// Run processes one query context and returns the evidence pack. Individual
// source failures degrade the result; Run itself fails only on a dead context.
func (p *Pipeline) Run(ctx context.Context, qctx model.QueryContext) (*model.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &model.Result{
		RunID:     uuid.NewString(),
		Query:     qctx.Query,
		StartedAt: start.UTC(),
		Degraded:  append([]string(nil), p.degraded...),
	}
	log := p.log.With(zap.String("run_id", result.RunID))

	raw := p.coordinator.Retrieve(ctx, qctx)
	result.RetrievedBySource = make(map[model.SourceKind]int, len(raw))
	for kind, docs := range raw {
		result.RetrievedBySource[kind] = len(docs)
		if len(docs) == 0 {
			result.Degraded = append(result.Degraded, "source returned nothing: "+string(kind))
		}
	}

	candidates := p.normalizer.Normalize(raw)
	result.CandidateCount = len(candidates)
	log.Info("retrieval complete",
		zap.Int("candidates", len(candidates)),
		zap.Any("by_source", result.RetrievedBySource),
	)

	result.Items = p.reranker.Rank(ctx, qctx.Query, candidates)
	result.Gap = p.analyzer.Analyze(qctx, result.Items)

	if result.Gap.Recommendation != model.RecommendProceed {
		p.supplement(ctx, qctx, candidates, result, log)
	}

	result.Elapsed = time.Since(start).Round(time.Millisecond).String()
	log.Info("run complete",
		zap.Int("items", len(result.Items)),
		zap.String("recommendation", string(result.Gap.Recommendation)),
		zap.Bool("supplemented", result.Supplemented),
		zap.String("elapsed", result.Elapsed),
	)
	return result, nil
}

// supplement runs the single follow-up round: one web-only retrieval with the
// analyzer's variant, excluding every identity already seen, then a final
// re-rank and one gap recomputation. It never runs twice.
func (p *Pipeline) supplement(ctx context.Context, qctx model.QueryContext, candidates []model.EvidenceCandidate, result *model.Result, log *zap.Logger) {
	variant := p.analyzer.SupplementaryVariant(qctx, result.Gap)
	if variant == "" {
		return
	}

	seen := make(map[model.Identity]bool, len(candidates))
	for _, c := range candidates {
		seen[c.Identity()] = true
	}

	raw := p.coordinator.RetrieveKinds(ctx, qctx, []string{variant}, []model.SourceKind{model.SourceWeb})
	extra := p.normalizer.NormalizeExcluding(raw, seen)
	result.Supplemented = true

	log.Info("supplementary round",
		zap.String("variant", variant),
		zap.Int("new_candidates", len(extra)),
	)
	if len(extra) == 0 {
		result.Degraded = append(result.Degraded, "supplementary round found nothing new")
		after := result.Gap
		result.GapAfter = &after
		return
	}

	merged := append(candidates, extra...)
	result.CandidateCount = len(merged)
	result.RetrievedBySource[model.SourceWeb] += len(raw[model.SourceWeb])

	result.Items = p.reranker.Rank(ctx, qctx.Query, merged)
	after := p.analyzer.Analyze(qctx, result.Items)
	result.GapAfter = &after
}
