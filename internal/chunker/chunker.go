// Package chunker splits raw page text into addressable, citable chunks.
//
// Chunking is structural: a page is first split on hierarchical section
// numbers (e.g. "1.2.31"), each section is split into bullet, table-like and
// paragraph blocks, and each block is windowed to a token budget. The whole
// pipeline is pure and deterministic - retrieval correctness depends on
// stable chunk identity across rebuilds.
package chunker

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/briefd/internal/evidence"
)

// NoSection labels chunks taken from pages without hierarchical numbering.
const NoSection = "NO_SECTION"

var (
	// sectionRe matches hierarchical section numbers at line start ("1.2.31").
	sectionRe = regexp.MustCompile(`(?m)^(\d+(?:\.\d+)+)\s+`)

	// bulletRe matches bulleted and enumerated list lines.
	bulletRe = regexp.MustCompile(`^\s*(?:[-•*]|\d+\)|\d+\.)\s+`)

	// tableRe matches table-like lines: multi-space gaps or pipes.
	tableRe = regexp.MustCompile(`\s{2,}|\|`)
)

// Options controls the token windowing applied to oversized blocks.
type Options struct {
	// MaxTokens is the token budget per chunk.
	MaxTokens int

	// Overlap is the number of tokens shared by consecutive windows.
	Overlap int
}

// DefaultOptions returns the windowing defaults.
func DefaultOptions() Options {
	return Options{
		MaxTokens: 280,
		Overlap:   50,
	}
}

// section is an intermediate split of a page.
type section struct {
	id   string
	text string
}

// ChunkPage splits one page of raw text into chunks tagged with the owning
// document, page and section. Identical inputs always yield identical output.
func ChunkPage(docName string, page int, pageText string, opts Options) []evidence.Chunk {
	var chunks []evidence.Chunk

	for _, sec := range splitSections(pageText) {
		for _, block := range splitBlocks(sec.text) {
			for _, text := range tokenWindows(block, opts.MaxTokens, opts.Overlap) {
				chunks = append(chunks, evidence.Chunk{
					Text: text,
					Metadata: evidence.Metadata{
						DocName: docName,
						Page:    page,
						Section: sec.id,
					},
				})
			}
		}
	}

	return chunks
}

// splitSections splits text on hierarchical section numbers. Each match opens
// a section that runs to the next match or end of text. Pages without any
// section numbers become a single NO_SECTION section.
func splitSections(text string) []section {
	matches := sectionRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []section{{id: NoSection, text: strings.TrimSpace(text)}}
	}

	sections := make([]section, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, section{
			id:   text[m[2]:m[3]],
			text: strings.TrimSpace(text[start:end]),
		})
	}

	return sections
}

// splitBlocks splits a section into bullet blocks, table-like blocks and
// paragraphs. Consecutive bullet lines (with their indented continuations)
// form one block, as do consecutive table-like lines; everything else
// accumulates into a paragraph flushed on blank lines or block transitions.
func splitBlocks(sectionText string) []string {
	lines := strings.Split(sectionText, "\n")

	var blocks []string
	var buffer []string

	flush := func() {
		if len(buffer) > 0 {
			if b := strings.TrimSpace(strings.Join(buffer, "\n")); b != "" {
				blocks = append(blocks, b)
			}
			buffer = nil
		}
	}

	i := 0
	for i < len(lines) {
		line := lines[i]

		if strings.TrimSpace(line) == "" {
			flush()
			i++
			continue
		}

		if bulletRe.MatchString(line) {
			flush()
			b := []string{line}
			i++
			for i < len(lines) && (strings.HasPrefix(lines[i], " ") || bulletRe.MatchString(lines[i])) {
				b = append(b, lines[i])
				i++
			}
			if block := strings.TrimSpace(strings.Join(b, "\n")); block != "" {
				blocks = append(blocks, block)
			}
			continue
		}

		if tableRe.MatchString(line) {
			flush()
			t := []string{line}
			i++
			for i < len(lines) && tableRe.MatchString(lines[i]) {
				t = append(t, lines[i])
				i++
			}
			if block := strings.TrimSpace(strings.Join(t, "\n")); block != "" {
				blocks = append(blocks, block)
			}
			continue
		}

		buffer = append(buffer, line)
		i++
	}

	flush()
	return blocks
}
