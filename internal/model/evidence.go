package model

import "fmt"

// Quality tags derived by the normalizer from source-specific metadata
const (
	TagSystematicReview = "systematic-review"
	TagGuideline        = "guideline"
	TagRCT              = "rct"
	TagCohort           = "cohort"
	TagCaseReport       = "case-report"
	TagRecent           = "recent"
	TagFullText         = "full-text"
)

// Identity is the globally unique key of one Evidence Candidate
type Identity struct {
	Source SourceKind `json:"source"`
	ID     string     `json:"id"`
}

func (id Identity) String() string {
	return fmt.Sprintf("%s:%s", id.Source, id.ID)
}

// EvidenceCandidate is the canonical, de-duplicated unit of evidence. No two
// candidates in one run share (Source, ID). Candidates are owned by the run
// that created them and do not outlive one query's processing.
type EvidenceCandidate struct {
	Source            SourceKind        `json:"source"`
	ID                string            `json:"id"`       // Source-native identifier
	Title             string            `json:"title"`
	Text              string            `json:"text"`     // Best available body: abstract, label section, or snippet
	Metadata          map[string]string `json:"metadata,omitempty"`
	Tags              []string          `json:"tags,omitempty"` // Derived quality tags
	Year              int               `json:"year,omitempty"`
	FullTextAvailable bool              `json:"full_text_available"`
	FullTextURL       string            `json:"full_text_url,omitempty"`
}

// Identity returns the candidate's dedup key
func (c EvidenceCandidate) Identity() Identity {
	return Identity{Source: c.Source, ID: c.ID}
}

// HasTag reports whether the candidate carries the given quality tag
func (c EvidenceCandidate) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// EvidenceChunk is a sub-span of one candidate's text, produced only during
// the reranker's second stage. A chunk never exists without its parent
// candidate in scope. Within one section, chunk spans overlap only by the
// configured overlap window and collectively reconstruct the section.
type EvidenceChunk struct {
	Parent  *EvidenceCandidate `json:"-"`
	Section string             `json:"section"` // results, conclusion, methods, abstract, ...
	Index   int                `json:"index"`   // Position within the section
	Text    string             `json:"text"`
}

// RankedItem is a candidate or chunk with its final rank and score. Ranks are
// contiguous 1..K and scores are non-increasing as rank increases.
type RankedItem struct {
	Rank     int               `json:"rank"`
	Score    float64           `json:"score"`
	Source   SourceKind        `json:"source"`
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Text     string            `json:"text"`
	Section  string            `json:"section,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
