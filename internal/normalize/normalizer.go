package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vporoshin/evisearch/internal/authority"
	"github.com/vporoshin/evisearch/internal/model"
)

// Priority is the fixed source iteration order: authoritative structured
// sources before open web results. The order is a deliberate tie-break: when
// two sources map to the same identity, the earlier source's copy is kept and
// the later one is never produced, not reconciled.
var Priority = []model.SourceKind{
	model.SourceLabels,
	model.SourceGuidelines,
	model.SourceTrials,
	model.SourcePubMed,
	model.SourceWeb,
}

// Normalizer maps every provider's raw shape into canonical Evidence
// Candidates, deduplicating by source-qualified identity. It is a pure
// transformation: no I/O, deterministic for a fixed current year.
type Normalizer struct {
	recentYears int
	nowYear     int
	classifier  *authority.Classifier
}

// New creates a normalizer; recentYears controls the "recent" quality tag
func New(recentYears int) *Normalizer {
	if recentYears <= 0 {
		recentYears = 2
	}
	return &Normalizer{
		recentYears: recentYears,
		nowYear:     time.Now().Year(),
		classifier:  authority.NewClassifier(nil),
	}
}

// Normalize flattens the coordinator's heterogeneous output into one
// de-duplicated candidate list. No two outputs share (source, id).
func (n *Normalizer) Normalize(raw map[model.SourceKind][]model.RawDocument) []model.EvidenceCandidate {
	return n.NormalizeExcluding(raw, nil)
}

// NormalizeExcluding additionally skips identities already seen in a previous
// round, so a supplementary round cannot reintroduce existing evidence.
func (n *Normalizer) NormalizeExcluding(raw map[model.SourceKind][]model.RawDocument, exclude map[model.Identity]bool) []model.EvidenceCandidate {
	seen := make(map[model.Identity]bool, len(exclude))
	for id := range exclude {
		seen[id] = true
	}

	var out []model.EvidenceCandidate
	for _, kind := range Priority {
		for _, doc := range raw[kind] {
			candidate, ok := n.mapDocument(doc)
			if !ok {
				continue
			}
			id := candidate.Identity()
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, candidate)
		}
	}
	return out
}

// mapDocument applies the per-source field mapping. The union of raw types is
// closed, so an unknown concrete type is a programming error worth dropping.
func (n *Normalizer) mapDocument(doc model.RawDocument) (model.EvidenceCandidate, bool) {
	switch d := doc.(type) {
	case model.PubMedArticle:
		return n.mapPubMed(d), d.PMID != ""
	case model.DrugLabel:
		return n.mapLabel(d), d.SetID != ""
	case model.GuidelinePassage:
		return n.mapGuideline(d), d.DocID != ""
	case model.TrialRecord:
		return n.mapTrial(d), d.NCTID != ""
	case model.WebResult:
		return n.mapWeb(d), d.URL != ""
	default:
		return model.EvidenceCandidate{}, false
	}
}

func (n *Normalizer) mapPubMed(d model.PubMedArticle) model.EvidenceCandidate {
	c := model.EvidenceCandidate{
		Source: model.SourcePubMed,
		ID:     d.PMID,
		Title:  d.Title,
		Text:   d.Abstract,
		Year:   d.Year,
		Metadata: map[string]string{
			"journal": d.Journal,
		},
		FullTextAvailable: d.FullTextURL != "",
		FullTextURL:       d.FullTextURL,
	}
	if len(d.Authors) > 0 {
		c.Metadata["authors"] = strings.Join(d.Authors, ", ")
	}
	if d.VenueTier > 0 {
		c.Metadata["venue_tier"] = strconv.Itoa(d.VenueTier)
	}
	if d.Year > 0 {
		c.Metadata["year"] = strconv.Itoa(d.Year)
	}

	for _, pt := range d.PubTypes {
		switch {
		case strings.Contains(strings.ToLower(pt), "systematic review"),
			strings.Contains(strings.ToLower(pt), "meta-analysis"):
			c.Tags = append(c.Tags, model.TagSystematicReview)
		case strings.Contains(strings.ToLower(pt), "randomized"):
			c.Tags = append(c.Tags, model.TagRCT)
		case strings.Contains(strings.ToLower(pt), "cohort"):
			c.Tags = append(c.Tags, model.TagCohort)
		case strings.Contains(strings.ToLower(pt), "case report"):
			c.Tags = append(c.Tags, model.TagCaseReport)
		}
	}
	n.finishTags(&c)
	return c
}

func (n *Normalizer) mapLabel(d model.DrugLabel) model.EvidenceCandidate {
	title := d.BrandName
	if title == "" {
		title = d.GenericName
	} else if d.GenericName != "" {
		title = fmt.Sprintf("%s (%s)", d.BrandName, d.GenericName)
	}

	c := model.EvidenceCandidate{
		Source: model.SourceLabels,
		ID:     d.SetID,
		Title:  title,
		Text:   joinLabelSections(d.Sections),
		Year:   d.UpdatedYear,
		Metadata: map[string]string{
			"brand_name":   d.BrandName,
			"generic_name": d.GenericName,
		},
	}
	if d.UpdatedYear > 0 {
		c.Metadata["year"] = strconv.Itoa(d.UpdatedYear)
	}
	n.finishTags(&c)
	return c
}

func (n *Normalizer) mapGuideline(d model.GuidelinePassage) model.EvidenceCandidate {
	c := model.EvidenceCandidate{
		Source: model.SourceGuidelines,
		ID:     d.DocID,
		Title:  d.Title,
		Text:   d.Passage,
		Year:   d.Year,
		Metadata: map[string]string{
			"organization": d.Organization,
			"venue_tier":   strconv.Itoa(d.Tier),
		},
		Tags: []string{model.TagGuideline},
	}
	if d.Year > 0 {
		c.Metadata["year"] = strconv.Itoa(d.Year)
	}
	n.finishTags(&c)
	return c
}

func (n *Normalizer) mapTrial(d model.TrialRecord) model.EvidenceCandidate {
	c := model.EvidenceCandidate{
		Source: model.SourceTrials,
		ID:     d.NCTID,
		Title:  d.Title,
		Text:   d.Summary,
		Year:   d.Year,
		Metadata: map[string]string{
			"phase":  d.Phase,
			"status": d.Status,
		},
	}
	if d.Enrollment > 0 {
		c.Metadata["enrollment"] = strconv.Itoa(d.Enrollment)
	}
	if d.Year > 0 {
		c.Metadata["year"] = strconv.Itoa(d.Year)
	}
	if strings.Contains(strings.ToLower(d.Phase), "phase") {
		c.Tags = append(c.Tags, model.TagRCT)
	}
	n.finishTags(&c)
	return c
}

func (n *Normalizer) mapWeb(d model.WebResult) model.EvidenceCandidate {
	c := model.EvidenceCandidate{
		Source: model.SourceWeb,
		ID:     d.URL,
		Title:  d.Title,
		Text:   d.Snippet,
		Year:   d.Year,
		Metadata: map[string]string{
			"site":       d.Site,
			"url":        d.URL,
			"venue_tier": strconv.Itoa(int(n.classifier.Classify(d.URL))),
		},
		FullTextAvailable: true, // A web hit is its own full-text URL
		FullTextURL:       d.URL,
	}
	if d.Year > 0 {
		c.Metadata["year"] = strconv.Itoa(d.Year)
	}
	n.finishTags(&c)
	return c
}

// finishTags attaches the tags every source derives the same way
func (n *Normalizer) finishTags(c *model.EvidenceCandidate) {
	if c.Year > 0 && c.Year >= n.nowYear-n.recentYears {
		c.Tags = append(c.Tags, model.TagRecent)
	}
	if c.FullTextAvailable {
		c.Tags = append(c.Tags, model.TagFullText)
	}
}

// joinLabelSections renders label sections in a stable clinical-first order
func joinLabelSections(sections map[string]string) string {
	preferred := []string{"indications", "dosage", "warnings", "adverse_reactions", "contraindications"}

	var parts []string
	used := make(map[string]bool)
	for _, name := range preferred {
		if text, ok := sections[name]; ok && text != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.ToUpper(name[:1])+name[1:], text))
			used[name] = true
		}
	}

	var rest []string
	for name := range sections {
		if !used[name] && sections[name] != "" {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToUpper(name[:1])+name[1:], sections[name]))
	}

	return strings.Join(parts, "\n\n")
}
