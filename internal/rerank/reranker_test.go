package rerank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vporoshin/evisearch/internal/model"
)

// keywordScorer scores 1.0 when the text contains the keyword, else 0.1
type keywordScorer struct {
	keyword string
}

func (s keywordScorer) Name() string { return "keyword" }
func (s keywordScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))
	for i, text := range texts {
		if strings.Contains(strings.ToLower(text), s.keyword) {
			scores[i] = 1.0
		} else {
			scores[i] = 0.1
		}
	}
	return scores, nil
}

// fakeFetcher serves canned full texts by URL
type fakeFetcher struct {
	bodies map[string]string
	err    error
	calls  int
}

func (f *fakeFetcher) FullText(ctx context.Context, url string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.bodies[url], nil
}

func testRerankConfig() model.RerankConfig {
	cfg := model.DefaultConfig().Rerank
	cfg.Stage1Keep = 6
	cfg.MinBiblioShare = 3
	cfg.Stage2Keep = 4
	return cfg
}

func candidates(n int, source model.SourceKind, keyword string) []model.EvidenceCandidate {
	out := make([]model.EvidenceCandidate, n)
	for i := range out {
		out[i] = model.EvidenceCandidate{
			Source: source,
			ID:     fmt.Sprintf("%s-%d", source, i),
			Title:  fmt.Sprintf("Document %d", i),
			Text:   fmt.Sprintf("Some text about %s, item %d.", keyword, i),
			Year:   2020,
		}
	}
	return out
}

func TestRank_BoundsAndOrdering(t *testing.T) {
	cfg := testRerankConfig()
	r := New(cfg, model.ConcurrencyConfig{}, keywordScorer{keyword: "relevant"}, nil, nil)

	pool := append(
		candidates(10, model.SourcePubMed, "relevant"),
		candidates(10, model.SourceWeb, "noise")...,
	)

	items := r.Rank(context.Background(), "relevant question", pool)

	require.NotEmpty(t, items)
	require.LessOrEqual(t, len(items), cfg.Stage2Keep)

	for i, item := range items {
		assert.Equal(t, i+1, item.Rank, "ranks must be contiguous from 1")
		if i > 0 {
			assert.GreaterOrEqual(t, items[i-1].Score, item.Score, "scores must be non-increasing")
		}
	}
}

func TestRank_EmptyInput(t *testing.T) {
	r := New(testRerankConfig(), model.ConcurrencyConfig{}, keywordScorer{keyword: "x"}, nil, nil)
	assert.Nil(t, r.Rank(context.Background(), "query", nil))
}

func TestStage1_MinBiblioShare(t *testing.T) {
	cfg := testRerankConfig()
	r := New(cfg, model.ConcurrencyConfig{}, keywordScorer{keyword: "guideline"}, nil, nil)

	// Guideline candidates outscore everything, but the shortlist must
	// still reserve slots for the bibliographic source.
	pool := append(
		candidates(10, model.SourceGuidelines, "guideline"),
		candidates(10, model.SourcePubMed, "plain")...,
	)

	semantic := r.scoreBatches(context.Background(), "guideline question", documentTexts(pool))
	require.Len(t, semantic, len(pool))

	shortlist := r.stage1(context.Background(), "guideline question", pool)
	require.Len(t, shortlist, cfg.Stage1Keep)

	biblio := 0
	for _, s := range shortlist {
		if s.candidate.Source == model.SourcePubMed {
			biblio++
		}
	}
	assert.GreaterOrEqual(t, biblio, cfg.MinBiblioShare)
}

func TestStage1_NoPaddingWhenBiblioAbsent(t *testing.T) {
	cfg := testRerankConfig()
	r := New(cfg, model.ConcurrencyConfig{}, keywordScorer{keyword: "web"}, nil, nil)

	pool := candidates(10, model.SourceWeb, "web")
	shortlist := r.stage1(context.Background(), "web question", pool)

	require.Len(t, shortlist, cfg.Stage1Keep)
	for _, s := range shortlist {
		assert.Equal(t, model.SourceWeb, s.candidate.Source)
	}
}

func TestStage2_FullTextExpansion(t *testing.T) {
	cfg := testRerankConfig()

	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://example.org/paper": "Results\nThe intervention was relevant and effective.\n",
	}}
	r := New(cfg, model.ConcurrencyConfig{}, keywordScorer{keyword: "relevant"}, fetcher, nil)

	pool := candidates(3, model.SourcePubMed, "relevant")
	pool[0].FullTextAvailable = true
	pool[0].FullTextURL = "https://example.org/paper"

	items := r.Rank(context.Background(), "relevant question", pool)

	require.NotEmpty(t, items)
	assert.Equal(t, 1, fetcher.calls, "only full-text capable survivors are fetched")

	foundResults := false
	for _, item := range items {
		if item.ID == pool[0].ID && item.Section == "results" {
			foundResults = true
		}
	}
	assert.True(t, foundResults, "expanded document should contribute a results chunk")
}

func TestStage2_FetchFailureFallsBackToAbstract(t *testing.T) {
	cfg := testRerankConfig()

	fetcher := &fakeFetcher{err: errors.New("robots disallowed")}
	r := New(cfg, model.ConcurrencyConfig{}, keywordScorer{keyword: "relevant"}, fetcher, nil)

	pool := candidates(2, model.SourcePubMed, "relevant")
	pool[0].FullTextAvailable = true
	pool[0].FullTextURL = "https://example.org/blocked"

	items := r.Rank(context.Background(), "relevant question", pool)

	require.NotEmpty(t, items)
	survived := false
	for _, item := range items {
		if item.ID == pool[0].ID {
			survived = true
			assert.Equal(t, "abstract", item.Section)
		}
	}
	assert.True(t, survived, "a failed fetch must degrade to the abstract, not drop the item")
}

func TestQualityScore_Ordering(t *testing.T) {
	nowYear := 2026

	sysrev := model.EvidenceCandidate{
		Source: model.SourcePubMed,
		Tags:   []string{model.TagSystematicReview},
		Year:   nowYear,
	}
	caseReport := model.EvidenceCandidate{
		Source: model.SourceWeb,
		Tags:   []string{model.TagCaseReport},
		Year:   2005,
	}

	high := qualityScore(sysrev, nowYear, 5)
	low := qualityScore(caseReport, nowYear, 5)
	assert.Greater(t, high, low)
	assert.LessOrEqual(t, high, 1.0)
	assert.GreaterOrEqual(t, low, 0.0)
}

func TestSectionWeight(t *testing.T) {
	assert.Greater(t, sectionWeight("results"), sectionWeight("methods"))
	assert.Greater(t, sectionWeight("conclusion"), sectionWeight("introduction"))
	assert.Equal(t, 0.7, sectionWeight("unknown-section"))
}

func TestDocumentTexts_TruncatesOnRuneBoundary(t *testing.T) {
	// "é" is two bytes, and the 3-byte "x. " prefix puts the cap mid-rune;
	// the cut must back up instead of emitting invalid UTF-8.
	c := model.EvidenceCandidate{
		Source: model.SourceWeb,
		ID:     "utf8",
		Title:  "x",
		Text:   strings.Repeat("é", 600),
	}

	texts := documentTexts([]model.EvidenceCandidate{c})
	require.Len(t, texts, 1)
	assert.LessOrEqual(t, len(texts[0]), 1000)
	assert.True(t, utf8.ValidString(texts[0]))
}
