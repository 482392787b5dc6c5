package model

import "time"

// Result is the envelope handed to the downstream synthesis stage: the final
// ranked evidence pack plus the gap report(s) that shaped it.
type Result struct {
	RunID     string    `json:"run_id"`
	Query     string    `json:"query"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   string    `json:"elapsed"`

	RetrievedBySource map[SourceKind]int `json:"retrieved_by_source"` // Raw document counts per provider
	CandidateCount    int                `json:"candidate_count"`     // After normalization/dedup

	Items []RankedItem `json:"items"`

	Gap          GapReport  `json:"gap"`
	Supplemented bool       `json:"supplemented"`           // Whether a supplementary round ran
	GapAfter     *GapReport `json:"gap_after,omitempty"`    // Recomputed report, set only when Supplemented
	Degraded     []string   `json:"degraded,omitempty"`     // Human-readable degradation notes
}
