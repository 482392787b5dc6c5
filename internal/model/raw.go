package model

// RawDocument is a provider-native search hit. The set of implementations is
// closed: one concrete type per provider kind, each opaque to everything
// except its own adapter and the normalizer's mapping function for that kind.
type RawDocument interface {
	Kind() SourceKind

	// isRawDocument seals the interface against outside implementations
	isRawDocument()
}

// PubMedArticle is a bibliographic record as returned by the literature API
type PubMedArticle struct {
	PMID        string   `json:"pmid"`
	Title       string   `json:"title"`
	Abstract    string   `json:"abstract"`
	Authors     []string `json:"authors,omitempty"`
	Journal     string   `json:"journal,omitempty"`
	PubTypes    []string `json:"pub_types,omitempty"` // e.g. "Systematic Review", "Randomized Controlled Trial"
	Year        int      `json:"year,omitempty"`
	VenueTier   int      `json:"venue_tier,omitempty"` // 1 = top journal, 3 = unranked
	FullTextURL string   `json:"full_text_url,omitempty"`
}

func (PubMedArticle) Kind() SourceKind { return SourcePubMed }
func (PubMedArticle) isRawDocument()   {}

// DrugLabel is one structured product label record
type DrugLabel struct {
	SetID       string            `json:"set_id"`
	BrandName   string            `json:"brand_name,omitempty"`
	GenericName string            `json:"generic_name,omitempty"`
	Sections    map[string]string `json:"sections"` // indications, warnings, dosage, ...
	UpdatedYear int               `json:"updated_year,omitempty"`
}

func (DrugLabel) Kind() SourceKind { return SourceLabels }
func (DrugLabel) isRawDocument()   {}

// GuidelinePassage is one hit from the vector-indexed guideline store
type GuidelinePassage struct {
	DocID        string  `json:"doc_id"`
	Organization string  `json:"organization,omitempty"`
	Title        string  `json:"title"`
	Passage      string  `json:"passage"`
	Tier         int     `json:"tier,omitempty"` // 1 = highest-authority issuing body
	Year         int     `json:"year,omitempty"`
	VectorScore  float64 `json:"vector_score,omitempty"`
}

func (GuidelinePassage) Kind() SourceKind { return SourceGuidelines }
func (GuidelinePassage) isRawDocument()   {}

// TrialRecord is one registry entry from the clinical-trials provider
type TrialRecord struct {
	NCTID      string `json:"nct_id"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Phase      string `json:"phase,omitempty"`
	Status     string `json:"status,omitempty"`
	Year       int    `json:"year,omitempty"`
	Enrollment int    `json:"enrollment,omitempty"`
}

func (TrialRecord) Kind() SourceKind { return SourceTrials }
func (TrialRecord) isRawDocument()   {}

// WebResult is one open web search hit
type WebResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Site    string `json:"site,omitempty"`
	Year    int    `json:"year,omitempty"` // 0 when the engine gave no date
}

func (WebResult) Kind() SourceKind { return SourceWeb }
func (WebResult) isRawDocument()   {}
