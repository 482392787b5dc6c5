package rerank

import (
	"context"
	"sort"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vporoshin/evisearch/internal/model"
)

// FullTexter fetches the full document body for a stage-1 survivor
type FullTexter interface {
	FullText(ctx context.Context, url string) (string, error)
}

// Reranker reduces an unbounded candidate list to a small, well-ordered
// evidence pack in two passes: a cheap document-level triage to a shortlist,
// then passage-level scoring over the shortlist's expanded text.
type Reranker struct {
	cfg     model.RerankConfig
	scorer  Scorer
	fetcher FullTexter // nil disables full-text expansion
	log     *zap.Logger

	scoreWorkers int
	fetchWorkers int
	nowYear      int
}

// New creates a reranker. fetcher may be nil; stage 2 then scores abstracts.
func New(cfg model.RerankConfig, conc model.ConcurrencyConfig, scorer Scorer, fetcher FullTexter, log *zap.Logger) *Reranker {
	if log == nil {
		log = zap.NewNop()
	}
	scoreWorkers := conc.ScoreWorkers
	if scoreWorkers <= 0 {
		scoreWorkers = 4
	}
	fetchWorkers := conc.FetchWorkers
	if fetchWorkers <= 0 {
		fetchWorkers = 4
	}
	return &Reranker{
		cfg:          cfg,
		scorer:       scorer,
		fetcher:      fetcher,
		log:          log,
		scoreWorkers: scoreWorkers,
		fetchWorkers: fetchWorkers,
		nowYear:      time.Now().Year(),
	}
}

// scored pairs a candidate with its stage-1 document score
type scored struct {
	candidate model.EvidenceCandidate
	score     float64
}

// Rank runs both stages and returns the final pack: at most K2 items, ranks
// contiguous from 1, scores non-increasing.
func (r *Reranker) Rank(ctx context.Context, query string, candidates []model.EvidenceCandidate) []model.RankedItem {
	if len(candidates) == 0 {
		return nil
	}

	shortlist := r.stage1(ctx, query, candidates)
	r.log.Debug("stage 1 complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("shortlist", len(shortlist)),
	)

	items := r.stage2(ctx, query, shortlist)
	r.log.Debug("stage 2 complete", zap.Int("items", len(items)))
	return items
}

// stage1 triages whole candidates with cheap signals: semantic relevance
// against the query blended with static quality, keeping the top K1 under a
// minimum-share rule for the bibliographic source.
func (r *Reranker) stage1(ctx context.Context, query string, candidates []model.EvidenceCandidate) []scored {
	semantic := r.scoreBatches(ctx, query, documentTexts(candidates))

	results := make([]scored, len(candidates))
	for i, c := range candidates {
		quality := qualityScore(c, r.nowYear, r.cfg.RecencyHalfLifeYears)
		combined := r.cfg.SemanticWeight*semantic[i] +
			r.cfg.QualityWeight*quality +
			r.cfg.SourceBonus[c.Source]
		results[i] = scored{candidate: c, score: clamp(combined)}
	}

	sortScored(results)
	return r.applyMinShare(results)
}

// applyMinShare keeps the global top K1 while reserving shortlist slots for
// the bibliographic source when it has candidates, so a prolific lower-value
// source cannot crowd it out.
func (r *Reranker) applyMinShare(results []scored) []scored {
	k1 := r.cfg.Stage1Keep
	if k1 <= 0 {
		k1 = 20
	}
	if len(results) <= k1 {
		return results
	}

	reserve := r.cfg.MinBiblioShare
	if reserve > k1 {
		reserve = k1
	}

	taken := make(map[model.Identity]bool, k1)
	var shortlist []scored

	if reserve > 0 {
		for _, s := range results {
			if len(shortlist) >= reserve {
				break
			}
			if s.candidate.Source == model.SourcePubMed {
				shortlist = append(shortlist, s)
				taken[s.candidate.Identity()] = true
			}
		}
	}

	for _, s := range results {
		if len(shortlist) >= k1 {
			break
		}
		if !taken[s.candidate.Identity()] {
			shortlist = append(shortlist, s)
			taken[s.candidate.Identity()] = true
		}
	}

	sortScored(shortlist)
	return shortlist
}

// stage2 expands each survivor to passages and reranks at chunk granularity.
// A failed full-text fetch degrades that survivor to its abstract, never
// drops it.
func (r *Reranker) stage2(ctx context.Context, query string, shortlist []scored) []model.RankedItem {
	type docChunks struct {
		parentScore float64
		chunks      []model.EvidenceChunk
	}

	expanded := make([]docChunks, len(shortlist))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fetchWorkers)
	for i, s := range shortlist {
		i, s := i, s
		g.Go(func() error {
			c := s.candidate
			text := c.Text
			fullText := false

			if r.fetcher != nil && c.FullTextAvailable && c.FullTextURL != "" {
				if body, err := r.fetcher.FullText(gctx, c.FullTextURL); err == nil {
					text = body
					fullText = true
				} else {
					r.log.Debug("full-text fetch degraded to abstract",
						zap.String("id", c.Identity().String()),
						zap.Error(err),
					)
				}
			}

			parent := &shortlist[i].candidate
			expanded[i] = docChunks{
				parentScore: s.score,
				chunks:      chunkCandidate(parent, text, fullText, r.cfg.ChunkSize, r.cfg.ChunkOverlap),
			}
			return nil
		})
	}
	_ = g.Wait()

	// Flatten, keeping each chunk's parent score alongside
	var chunks []model.EvidenceChunk
	var parentScores []float64
	for _, dc := range expanded {
		for _, ch := range dc.chunks {
			chunks = append(chunks, ch)
			parentScores = append(parentScores, dc.parentScore)
		}
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	semantic := r.scoreBatches(ctx, query, texts)

	type scoredChunk struct {
		chunk model.EvidenceChunk
		score float64
	}
	scoredChunks := make([]scoredChunk, len(chunks))
	for i, ch := range chunks {
		combined := r.cfg.ChunkSemanticWeight*semantic[i] +
			r.cfg.ParentScoreWeight*parentScores[i] +
			r.cfg.ChunkQualityWeight*sectionWeight(ch.Section)
		scoredChunks[i] = scoredChunk{chunk: ch, score: clamp(combined)}
	}

	sort.SliceStable(scoredChunks, func(i, j int) bool {
		if scoredChunks[i].score != scoredChunks[j].score {
			return scoredChunks[i].score > scoredChunks[j].score
		}
		a, b := scoredChunks[i].chunk, scoredChunks[j].chunk
		if a.Parent.Identity() != b.Parent.Identity() {
			return a.Parent.Identity().String() < b.Parent.Identity().String()
		}
		return a.Index < b.Index
	})

	k2 := r.cfg.Stage2Keep
	if k2 <= 0 {
		k2 = 10
	}
	if len(scoredChunks) > k2 {
		scoredChunks = scoredChunks[:k2]
	}

	items := make([]model.RankedItem, len(scoredChunks))
	for i, sc := range scoredChunks {
		parent := sc.chunk.Parent
		items[i] = model.RankedItem{
			Rank:     i + 1,
			Score:    sc.score,
			Source:   parent.Source,
			ID:       parent.ID,
			Title:    parent.Title,
			Text:     sc.chunk.Text,
			Section:  sc.chunk.Section,
			Metadata: parent.Metadata,
		}
	}
	return items
}

// scoreBatches runs the scorer over texts in parallel batches. A batch whose
// scoring fails contributes zeros; the fallback scorer makes that rare.
func (r *Reranker) scoreBatches(ctx context.Context, query string, texts []string) []float64 {
	scores := make([]float64, len(texts))
	batchSize := r.cfg.ScoreBatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.scoreWorkers)
	for start := 0; start < len(texts); start += batchSize {
		start := start
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			batch, err := r.scorer.Score(gctx, query, texts[start:end])
			if err != nil || len(batch) != end-start {
				r.log.Warn("scoring batch degraded to zero scores", zap.Error(err))
				return nil
			}
			copy(scores[start:end], batch)
			return nil
		})
	}
	_ = g.Wait()
	return scores
}

// documentTexts builds the stage-1 scoring text for each candidate, capped so
// the cut never lands inside a multi-byte rune.
func documentTexts(candidates []model.EvidenceCandidate) []string {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		text := c.Title + ". " + c.Text
		if len(text) > 1000 {
			cut := 1000
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		texts[i] = text
	}
	return texts
}

// sortScored orders by score descending, breaking ties by identity so the
// ordering is deterministic, not time-dependent.
func sortScored(results []scored) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].candidate.Identity().String() < results[j].candidate.Identity().String()
	})
}
