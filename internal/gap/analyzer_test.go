package gap

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vporoshin/evisearch/internal/model"
)

func testAnalyzer() *Analyzer {
	return New(model.GapConfig{
		MinCoverage:      0.6,
		RecentYears:      2,
		MinBibliographic: 3,
	}, 10, nil)
}

func itemsFor(query string, n int, source model.SourceKind, year int) []model.RankedItem {
	items := make([]model.RankedItem, n)
	for i := range items {
		items[i] = model.RankedItem{
			Rank:     i + 1,
			Score:    1 - float64(i)*0.05,
			Source:   source,
			ID:       fmt.Sprintf("id-%d", i),
			Title:    query,
			Text:     query + " discussed in detail",
			Metadata: map[string]string{"year": fmt.Sprintf("%d", year)},
		}
	}
	return items
}

func TestAnalyze_ProceedOnGoodCoverage(t *testing.T) {
	qctx := model.SimpleContext("empagliflozin in heart failure")
	qctx.Entities = model.Entities{Drugs: []string{"empagliflozin"}, Diseases: []string{"heart failure"}}

	items := itemsFor("empagliflozin heart failure", 10, model.SourcePubMed, time.Now().Year())
	report := testAnalyzer().Analyze(qctx, items)

	require.GreaterOrEqual(t, report.CoverageScore, 0.6)
	assert.False(t, report.RecencyConcern)
	assert.Equal(t, model.RecommendProceed, report.Recommendation)
	assert.Empty(t, report.UncoveredEntities)
	assert.Equal(t, 10, report.CountsBySource[model.SourcePubMed])
}

func TestAnalyze_LowCoverageNeverProceeds(t *testing.T) {
	qctx := model.SimpleContext("rare disease treatment")
	qctx.Entities = model.Entities{
		Diseases:   []string{"fabry disease"},
		Drugs:      []string{"migalastat", "agalsidase"},
		Procedures: []string{"enzyme replacement"},
	}

	// Items cover none of the extracted entities
	items := itemsFor("unrelated cardiology content", 4, model.SourceWeb, 2015)
	report := testAnalyzer().Analyze(qctx, items)

	require.Less(t, report.CoverageScore, 0.6)
	assert.NotEqual(t, model.RecommendProceed, report.Recommendation)
	assert.Len(t, report.UncoveredEntities, 4)
}

func TestAnalyze_ExpandGapWithoutTemporalMarkers(t *testing.T) {
	// Low coverage, zero structured items, no temporal markers in the
	// query: the verdict is expand_gap, never expand_recent.
	qctx := model.SimpleContext("management of condition")
	qctx.Entities = model.Entities{Diseases: []string{"amyloidosis", "sarcoidosis"}}

	items := itemsFor("amyloidosis overview", 5, model.SourceWeb, 2016)
	report := testAnalyzer().Analyze(qctx, items)

	require.Less(t, report.CoverageScore, 0.6)
	assert.False(t, report.RecencyConcern)
	assert.Equal(t, model.RecommendExpandGap, report.Recommendation)
}

func TestAnalyze_RecencyConcernForcesExpandRecent(t *testing.T) {
	qctx := model.SimpleContext("latest empagliflozin guidance")
	qctx.Entities = model.Entities{Drugs: []string{"empagliflozin"}}

	// Everything found predates the recency window
	items := itemsFor("empagliflozin guidance", 10, model.SourcePubMed, 2015)
	report := testAnalyzer().Analyze(qctx, items)

	assert.True(t, report.RecencyConcern)
	assert.Equal(t, model.RecommendExpandRecent, report.Recommendation)
}

func TestAnalyze_RecentItemClearsConcern(t *testing.T) {
	qctx := model.SimpleContext("latest empagliflozin guidance")
	qctx.Entities = model.Entities{Drugs: []string{"empagliflozin"}}

	items := itemsFor("empagliflozin guidance", 10, model.SourcePubMed, time.Now().Year())
	report := testAnalyzer().Analyze(qctx, items)

	assert.False(t, report.RecencyConcern)
	assert.Equal(t, model.RecommendProceed, report.Recommendation)
}

func TestCoverage_TracksPackSize(t *testing.T) {
	// Without entities, coverage is the count factor alone: fullness is
	// measured against the configured pack cap, not a fixed constant.
	qctx := model.SimpleContext("statin myopathy")
	items := itemsFor("statin myopathy", 5, model.SourcePubMed, 2020)

	small := New(model.GapConfig{}, 5, nil)
	cov, _ := small.coverage(qctx, items)
	assert.InDelta(t, 1.0, cov, 0.001)

	large := New(model.GapConfig{}, 20, nil)
	cov, _ = large.coverage(qctx, items)
	assert.InDelta(t, 0.25, cov, 0.001)
}

func TestHasTemporalMarkers(t *testing.T) {
	cases := []struct {
		query string
		want  bool
	}{
		{"latest treatment guidelines", true},
		{"recent advances in immunotherapy", true},
		{"outcomes since 2023", true},
		{"what changed this year", true},
		{"known treatment options", false}, // "now" inside "known" must not fire
		{"renovation of cardiac care", false},
		{"statin dosing in renal impairment", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, hasTemporalMarkers(tc.query), "query: %s", tc.query)
	}
}

func TestDetectContradiction(t *testing.T) {
	items := []model.RankedItem{
		{ID: "a", Text: "The drug was effective in reducing mortality."},
		{ID: "b", Text: "The drug proved ineffective in this population."},
	}
	assert.True(t, detectContradiction(items))

	agreeing := []model.RankedItem{
		{ID: "a", Text: "The drug was effective."},
		{ID: "b", Text: "Another effective option exists."},
	}
	assert.False(t, detectContradiction(agreeing))

	assert.False(t, detectContradiction(nil))
}

func TestSupplementaryVariant(t *testing.T) {
	a := testAnalyzer()
	qctx := model.SimpleContext("empagliflozin heart failure")

	recent := a.SupplementaryVariant(qctx, model.GapReport{Recommendation: model.RecommendExpandRecent})
	assert.Contains(t, recent, "empagliflozin heart failure")
	assert.Contains(t, recent, "latest evidence")

	gapped := a.SupplementaryVariant(qctx, model.GapReport{
		Recommendation:    model.RecommendExpandGap,
		UncoveredEntities: []string{"dapagliflozin"},
	})
	assert.Contains(t, gapped, "dapagliflozin")

	assert.Empty(t, a.SupplementaryVariant(qctx, model.GapReport{Recommendation: model.RecommendProceed}))
}
