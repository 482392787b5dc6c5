package model

// Recommendation is the gap analyzer's verdict on the ranked evidence set
type Recommendation string

const (
	RecommendProceed      Recommendation = "proceed"       // Evidence is good enough
	RecommendExpandRecent Recommendation = "expand_recent" // Supplement with fresher sources
	RecommendExpandGap    Recommendation = "expand_gap"    // Supplement to fill coverage holes
)

// GapReport scores the final ranked evidence set for coverage, recency and
// internal contradiction. Created once after the first ranking pass and
// recomputed at most once more if a supplementary round runs.
type GapReport struct {
	CoverageScore     float64            `json:"coverage_score"` // 0.0 - 1.0
	RecencyConcern    bool               `json:"recency_concern"`
	Contradiction     bool               `json:"contradiction"`
	CountsBySource    map[SourceKind]int `json:"counts_by_source"`
	UncoveredEntities []string           `json:"uncovered_entities,omitempty"`
	Recommendation    Recommendation     `json:"recommendation"`
}
