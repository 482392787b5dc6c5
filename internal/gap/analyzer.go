package gap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/model"
)

// Analyzer decides whether the ranked evidence is sufficient, and if not,
// which single supplementary query to issue. It never recurses: the pipeline
// runs at most one supplementary round per query.
type Analyzer struct {
	cfg      model.GapConfig
	packSize int
	log      *zap.Logger
	nowYear  int
}

// New creates an analyzer with the given thresholds. packSize is the final
// evidence pack cap; the count factor measures fullness against it.
func New(cfg model.GapConfig, packSize int, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MinCoverage <= 0 {
		cfg.MinCoverage = 0.6
	}
	if cfg.RecentYears <= 0 {
		cfg.RecentYears = 2
	}
	if cfg.MinBibliographic <= 0 {
		cfg.MinBibliographic = 3
	}
	if packSize <= 0 {
		packSize = 10
	}
	return &Analyzer{cfg: cfg, packSize: packSize, log: log, nowYear: time.Now().Year()}
}

// Analyze scores the ranked set for coverage, recency and contradiction, then
// applies the decision table. Coverage below the minimum forbids proceed.
func (a *Analyzer) Analyze(qctx model.QueryContext, items []model.RankedItem) model.GapReport {
	report := model.GapReport{
		CountsBySource: countsBySource(items),
	}

	report.CoverageScore, report.UncoveredEntities = a.coverage(qctx, items)
	report.RecencyConcern = hasTemporalMarkers(qctx.Query) && !a.hasRecentItem(items)
	report.Contradiction = detectContradiction(items)
	report.Recommendation = a.decide(report)

	a.log.Debug("gap analysis",
		zap.Float64("coverage", report.CoverageScore),
		zap.Bool("recency_concern", report.RecencyConcern),
		zap.Bool("contradiction", report.Contradiction),
		zap.String("recommendation", string(report.Recommendation)),
	)
	return report
}

// decide applies the decision table. Recency concern wins over coverage;
// insufficient coverage can only expand, never proceed.
func (a *Analyzer) decide(report model.GapReport) model.Recommendation {
	if report.RecencyConcern {
		return model.RecommendExpandRecent
	}
	if report.CoverageScore < a.cfg.MinCoverage {
		return model.RecommendExpandGap
	}
	return model.RecommendProceed
}

// coverage blends how many query entities the evidence mentions with how full
// the final pack is. Without extracted entities only the count factor counts.
func (a *Analyzer) coverage(qctx model.QueryContext, items []model.RankedItem) (float64, []string) {
	countFactor := float64(len(items)) / float64(a.packSize)
	if countFactor > 1 {
		countFactor = 1
	}
	biblio := 0
	for _, it := range items {
		if it.Source == model.SourcePubMed {
			biblio++
		}
	}
	if biblio < a.cfg.MinBibliographic {
		// Thin structured backing caps the count signal
		countFactor *= 0.7
	}

	entities := qctx.Entities.All()
	if len(entities) == 0 {
		return countFactor, nil
	}

	var corpus strings.Builder
	for _, it := range items {
		corpus.WriteString(strings.ToLower(it.Title))
		corpus.WriteString(" ")
		corpus.WriteString(strings.ToLower(it.Text))
		corpus.WriteString(" ")
	}
	haystack := corpus.String()

	covered := 0
	var uncovered []string
	for _, entity := range entities {
		if strings.Contains(haystack, strings.ToLower(entity)) {
			covered++
		} else {
			uncovered = append(uncovered, entity)
		}
	}
	entityShare := float64(covered) / float64(len(entities))

	return 0.7*entityShare + 0.3*countFactor, uncovered
}

// hasRecentItem reports whether any ranked item carries a year within the
// configured recency window
func (a *Analyzer) hasRecentItem(items []model.RankedItem) bool {
	for _, it := range items {
		year, err := strconv.Atoi(it.Metadata["year"])
		if err != nil {
			continue
		}
		if year >= a.nowYear-a.cfg.RecentYears {
			return true
		}
	}
	return false
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// temporalWords are query terms that signal the asker cares about currency
var temporalWords = []string{
	"latest", "recent", "recently", "new", "newest", "current", "currently",
	"today", "now", "update", "updated", "emerging", "this year", "last year",
}

// hasTemporalMarkers reports whether the query asks for fresh evidence
func hasTemporalMarkers(query string) bool {
	lower := strings.ToLower(query)
	for _, word := range temporalWords {
		if containsWord(lower, word) {
			return true
		}
	}
	return yearPattern.MatchString(query)
}

// containsWord matches whole words only, so "now" does not fire on "known"
func containsWord(haystack, word string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], word)
		if pos < 0 {
			return false
		}
		pos += idx
		end := pos + len(word)
		beforeOK := pos == 0 || !isWordByte(haystack[pos-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = pos + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// contradictionPairs are opposing assertion markers. Finding both sides in
// different items flags the set, it does not resolve the disagreement.
var contradictionPairs = [][2]string{
	{"effective", "ineffective"},
	{"is recommended", "is not recommended"},
	{"increased risk", "decreased risk"},
	{"superior to", "inferior to"},
	{"significant benefit", "no significant benefit"},
	{"well tolerated", "poorly tolerated"},
}

// detectContradiction looks for opposing assertions across different items
func detectContradiction(items []model.RankedItem) bool {
	for _, pair := range contradictionPairs {
		positive, negative := -1, -1
		for i, it := range items {
			text := strings.ToLower(it.Text)
			if strings.Contains(text, pair[1]) {
				negative = i
				continue
			}
			if strings.Contains(text, pair[0]) {
				positive = i
			}
		}
		if positive >= 0 && negative >= 0 && positive != negative {
			return true
		}
	}
	return false
}

// SupplementaryVariant builds the single follow-up query for the web-style
// provider. Returns "" when the report recommends proceeding.
func (a *Analyzer) SupplementaryVariant(qctx model.QueryContext, report model.GapReport) string {
	switch report.Recommendation {
	case model.RecommendExpandRecent:
		return fmt.Sprintf("%s latest evidence %d", qctx.BestVariant(), a.nowYear)
	case model.RecommendExpandGap:
		if len(report.UncoveredEntities) > 0 {
			return qctx.BestVariant() + " " + strings.Join(report.UncoveredEntities, " ")
		}
		return qctx.BestVariant() + " clinical evidence review"
	default:
		return ""
	}
}

func countsBySource(items []model.RankedItem) map[model.SourceKind]int {
	counts := make(map[model.SourceKind]int)
	for _, it := range items {
		counts[it.Source]++
	}
	return counts
}
