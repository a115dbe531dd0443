// Package evidence defines the persisted chunk store and the retrieved
// evidence items handed to the writer and verifier.
package evidence

import "fmt"

// Metadata locates a chunk within its source document.
type Metadata struct {
	DocName string `json:"doc_name"`
	Page    int    `json:"page"`
	Section string `json:"section"`
}

// Chunk is one indexable unit of document text. Chunks are immutable after
// creation; their position in the chunk file is their identity.
type Chunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Evidence is a retrieved, ranked chunk presented to the generator and
// verifier for one query. Rank is 1-based by ascending distance; the
// positional label E<rank> - not the store index - is what the generator
// cites and the verifier checks.
type Evidence struct {
	Idx      int     `json:"idx"`
	Rank     int     `json:"rank"`
	Distance float64 `json:"distance"`
	DocName  string  `json:"doc_name"`
	Page     int     `json:"page"`
	Section  string  `json:"section"`
	Text     string  `json:"text"`
}

// Citation returns the human-readable source reference for this evidence.
func (e Evidence) Citation() string {
	return fmt.Sprintf("%s | page %d | section %s | chunk %d", e.DocName, e.Page, e.Section, e.Idx)
}

// Ref returns the positional evidence label for the given 1-based rank.
func Ref(rank int) string {
	return fmt.Sprintf("E%d", rank)
}
