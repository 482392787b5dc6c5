package model

// SourceKind identifies one external knowledge provider
type SourceKind string

const (
	SourcePubMed     SourceKind = "pubmed"     // Bibliographic literature
	SourceLabels     SourceKind = "labels"     // Structured drug/product labels
	SourceGuidelines SourceKind = "guidelines" // Vector-indexed guideline store
	SourceTrials     SourceKind = "trials"     // Clinical trial registry
	SourceWeb        SourceKind = "web"        // Open web search
)

// AllSources lists every provider kind in no particular order
var AllSources = []SourceKind{
	SourcePubMed,
	SourceLabels,
	SourceGuidelines,
	SourceTrials,
	SourceWeb,
}

// Entities holds the clinical entities extracted from the query by the
// upstream query-understanding step
type Entities struct {
	Diseases   []string `json:"diseases,omitempty"`
	Drugs      []string `json:"drugs,omitempty"`
	Procedures []string `json:"procedures,omitempty"`
}

// All returns every entity as a flat list
func (e Entities) All() []string {
	out := make([]string, 0, len(e.Diseases)+len(e.Drugs)+len(e.Procedures))
	out = append(out, e.Diseases...)
	out = append(out, e.Drugs...)
	out = append(out, e.Procedures...)
	return out
}

// QueryContext is the immutable input of one pipeline run. It is produced
// once by the upstream query-understanding step and only read afterwards.
type QueryContext struct {
	Query    string              `json:"query"`              // Original natural-language query
	Variants []string            `json:"query_variants"`     // Provider-oriented rewrites of the query
	Entities Entities            `json:"entities"`           // Extracted clinical entities
	Routing  map[SourceKind]bool `json:"routing"`            // Per-provider "should call" flags
}

// ShouldCall reports whether the given provider is eligible for this query.
// A provider missing from the routing map is not called.
func (q QueryContext) ShouldCall(kind SourceKind) bool {
	return q.Routing[kind]
}

// BestVariant returns the first query variant, falling back to the raw query
func (q QueryContext) BestVariant() string {
	if len(q.Variants) > 0 {
		return q.Variants[0]
	}
	return q.Query
}

// SimpleContext builds a minimal QueryContext from a bare query string with
// every provider eligible. Used by the CLI when no prepared context is given.
func SimpleContext(query string) QueryContext {
	routing := make(map[SourceKind]bool, len(AllSources))
	for _, s := range AllSources {
		routing[s] = true
	}
	return QueryContext{
		Query:    query,
		Variants: []string{query},
		Routing:  routing,
	}
}
