package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vporoshin/evisearch/internal/model"
)

// Renderer writes a result as JSON for machines or Markdown for humans
type Renderer struct {
	includeMetadata bool
}

// NewRenderer creates a renderer; includeMetadata controls per-item metadata
// tables in the Markdown output.
func NewRenderer(includeMetadata bool) *Renderer {
	return &Renderer{includeMetadata: includeMetadata}
}

// RenderJSON writes the full result envelope as indented JSON
func (r *Renderer) RenderJSON(res *model.Result, path string) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderMarkdown writes a human-readable evidence pack
func (r *Renderer) RenderMarkdown(res *model.Result, path string) error {
	var sb strings.Builder

	sb.WriteString("# Evidence Pack\n\n")
	fmt.Fprintf(&sb, "**Query:** %s\n\n", res.Query)
	fmt.Fprintf(&sb, "**Run:** `%s` | started %s | elapsed %s\n\n",
		res.RunID, res.StartedAt.Format("2006-01-02 15:04:05 UTC"), res.Elapsed)

	sb.WriteString("## Retrieval\n\n")
	fmt.Fprintf(&sb, "- Candidates after dedup: %d\n", res.CandidateCount)
	for _, kind := range model.AllSources {
		if n, ok := res.RetrievedBySource[kind]; ok {
			fmt.Fprintf(&sb, "- %s: %d raw documents\n", kind, n)
		}
	}
	sb.WriteString("\n")

	r.writeGap(&sb, "Gap Analysis", res.Gap)
	if res.GapAfter != nil {
		r.writeGap(&sb, "Gap Analysis (after supplement)", *res.GapAfter)
	}

	sb.WriteString("## Ranked Evidence\n\n")
	if len(res.Items) == 0 {
		sb.WriteString("_No evidence survived ranking._\n\n")
	}
	for _, item := range res.Items {
		fmt.Fprintf(&sb, "### %d. %s\n\n", item.Rank, item.Title)
		fmt.Fprintf(&sb, "`%s:%s` | score %.3f", item.Source, item.ID, item.Score)
		if item.Section != "" {
			fmt.Fprintf(&sb, " | section: %s", item.Section)
		}
		sb.WriteString("\n\n")
		sb.WriteString(item.Text)
		sb.WriteString("\n\n")

		if r.includeMetadata && len(item.Metadata) > 0 {
			sb.WriteString("| Field | Value |\n|---|---|\n")
			for _, key := range sortedKeys(item.Metadata) {
				fmt.Fprintf(&sb, "| %s | %s |\n", key, item.Metadata[key])
			}
			sb.WriteString("\n")
		}
	}

	if len(res.Degraded) > 0 {
		sb.WriteString("## Degradations\n\n")
		for _, note := range res.Degraded {
			fmt.Fprintf(&sb, "- %s\n", note)
		}
		sb.WriteString("\n")
	}

	if path == "" || path == "-" {
		_, err := os.Stdout.WriteString(sb.String())
		return err
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (r *Renderer) writeGap(sb *strings.Builder, heading string, g model.GapReport) {
	fmt.Fprintf(sb, "## %s\n\n", heading)
	fmt.Fprintf(sb, "- Coverage: %.2f\n", g.CoverageScore)
	fmt.Fprintf(sb, "- Recency concern: %v\n", g.RecencyConcern)
	fmt.Fprintf(sb, "- Contradiction: %v\n", g.Contradiction)
	fmt.Fprintf(sb, "- Recommendation: **%s**\n", g.Recommendation)
	if len(g.UncoveredEntities) > 0 {
		fmt.Fprintf(sb, "- Uncovered entities: %s\n", strings.Join(g.UncoveredEntities, ", "))
	}
	sb.WriteString("\n")
}

// RenderSummary prints a one-screen digest to stdout
func (r *Renderer) RenderSummary(res *model.Result) {
	fmt.Printf("Query:          %s\n", res.Query)
	fmt.Printf("Candidates:     %d\n", res.CandidateCount)
	fmt.Printf("Final items:    %d\n", len(res.Items))
	fmt.Printf("Coverage:       %.2f\n", finalGap(res).CoverageScore)
	fmt.Printf("Recommendation: %s\n", finalGap(res).Recommendation)
	if res.Supplemented {
		fmt.Println("Supplementary round: yes")
	}
	fmt.Printf("Elapsed:        %s\n", res.Elapsed)
}

// finalGap returns the post-supplement report when one exists
func finalGap(res *model.Result) model.GapReport {
	if res.GapAfter != nil {
		return *res.GapAfter
	}
	return res.Gap
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
