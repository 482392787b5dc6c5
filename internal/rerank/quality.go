package rerank

import (
	"math"
	"strings"

	"github.com/vporoshin/evisearch/internal/model"
)

// Static quality signals for stage 1. The constants are hand-tuned defaults
// inherited from operating the pipeline, not derived optima.

// evidenceTypeWeight orders study designs by strength:
// systematic review > guideline > RCT > cohort > case report.
func evidenceTypeWeight(c model.EvidenceCandidate) float64 {
	switch {
	case c.HasTag(model.TagSystematicReview):
		return 1.0
	case c.HasTag(model.TagGuideline):
		return 0.9
	case c.HasTag(model.TagRCT):
		return 0.8
	case c.HasTag(model.TagCohort):
		return 0.6
	case c.HasTag(model.TagCaseReport):
		return 0.3
	default:
		return 0.5
	}
}

// sourceTypeWeight prefers curated sources over the open web
func sourceTypeWeight(kind model.SourceKind) float64 {
	switch kind {
	case model.SourceLabels, model.SourceGuidelines:
		return 0.9
	case model.SourcePubMed:
		return 0.8
	case model.SourceTrials:
		return 0.7
	case model.SourceWeb:
		return 0.4
	default:
		return 0.5
	}
}

// venueTierWeight reads the normalized venue tier from candidate metadata
func venueTierWeight(c model.EvidenceCandidate) float64 {
	switch c.Metadata["venue_tier"] {
	case "1":
		return 1.0
	case "2":
		return 0.7
	case "3":
		return 0.4
	default:
		return 0.5
	}
}

// recencyDecay halves a candidate's recency signal every halfLife years.
// Candidates without a year sit in the middle.
func recencyDecay(year, nowYear int, halfLife float64) float64 {
	if year <= 0 {
		return 0.5
	}
	age := float64(nowYear - year)
	if age < 0 {
		age = 0
	}
	if halfLife <= 0 {
		halfLife = 5
	}
	return math.Pow(0.5, age/halfLife)
}

// qualityScore combines the static signals into one [0,1] number
func qualityScore(c model.EvidenceCandidate, nowYear int, halfLife float64) float64 {
	score := 0.35*evidenceTypeWeight(c) +
		0.25*sourceTypeWeight(c.Source) +
		0.2*venueTierWeight(c) +
		0.2*recencyDecay(c.Year, nowYear, halfLife)

	if c.FullTextAvailable {
		score += 0.05
	}
	return clamp(score)
}

// sectionWeight ranks passage sections by evidentiary value:
// results/conclusion > discussion > methods > introduction.
func sectionWeight(section string) float64 {
	switch strings.ToLower(section) {
	case "results", "conclusion", "conclusions", "findings":
		return 1.0
	case "abstract", "discussion":
		return 0.8
	case "methods", "design":
		return 0.6
	case "introduction", "background":
		return 0.5
	default:
		return 0.7
	}
}
