package rerank

import (
	"strings"

	"github.com/vporoshin/evisearch/internal/model"
)

// section is one labeled span of a document
type section struct {
	name string
	text string
}

// headingNames maps heading lines to canonical section labels
var headingNames = map[string]string{
	"results":               "results",
	"findings":              "results",
	"conclusion":            "conclusion",
	"conclusions":           "conclusion",
	"discussion":            "discussion",
	"methods":               "methods",
	"materials and methods": "methods",
	"design":                "methods",
	"introduction":          "introduction",
	"background":            "introduction",
	"abstract":              "abstract",
}

// splitSections walks a plain-text document and groups paragraphs under the
// nearest preceding heading. Text before any heading lands in "body".
func splitSections(text string) []section {
	lines := strings.Split(text, "\n")

	var sections []section
	current := section{name: "body"}
	var sb strings.Builder

	flush := func() {
		if body := strings.TrimSpace(sb.String()); body != "" {
			current.text = body
			sections = append(sections, current)
		}
		sb.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if name, ok := headingNames[strings.ToLower(strings.TrimRight(trimmed, ":."))]; ok && len(trimmed) < 60 {
			flush()
			current = section{name: name}
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	flush()

	return sections
}

// chunkSection splits one section into fixed-size overlapping chunks, cutting
// at sentence or paragraph breaks where one falls near the target boundary.
// Consecutive spans overlap only by the overlap window and collectively
// reconstruct the section.
func chunkSection(parent *model.EvidenceCandidate, name, text string, size, overlap int) []model.EvidenceChunk {
	if size <= 0 {
		size = 1200
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 6
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []model.EvidenceChunk
	start := 0
	index := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = boundaryBefore(text, end, start+size/2)
		}

		chunks = append(chunks, model.EvidenceChunk{
			Parent:  parent,
			Section: name,
			Index:   index,
			Text:    strings.TrimSpace(text[start:end]),
		})
		index++

		if end == len(text) {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// boundaryBefore finds the nearest sentence or paragraph break at or before
// pos, not earlier than floor. Falls back to the hard position.
func boundaryBefore(text string, pos, floor int) int {
	for i := pos; i > floor; i-- {
		switch text[i-1] {
		case '\n':
			return i
		case '.', '!', '?':
			if i == len(text) || text[i] == ' ' || text[i] == '\n' {
				return i
			}
		}
	}
	return pos
}

// chunkCandidate splits a candidate's working text into chunks. When the text
// is just the abstract or snippet, it stays one "abstract" chunk unless it
// exceeds the chunk size.
func chunkCandidate(parent *model.EvidenceCandidate, text string, fullText bool, size, overlap int) []model.EvidenceChunk {
	if !fullText {
		return chunkSection(parent, "abstract", text, size, overlap)
	}

	var chunks []model.EvidenceChunk
	for _, sec := range splitSections(text) {
		chunks = append(chunks, chunkSection(parent, sec.name, sec.text, size, overlap)...)
	}
	return chunks
}
