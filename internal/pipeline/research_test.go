package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/config"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
	"github.com/fyrsmithlabs/briefd/internal/index"
)

type fakeSearcher struct {
	hits map[string][]index.Hit
	err  error
}

func (f *fakeSearcher) Query(_ context.Context, query string, _ int) ([]index.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[query], nil
}

func retrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{TopK: 6, DistanceThreshold: 0.60, MaxChunkChars: 1400}
}

func testStore(t *testing.T, chunks []evidence.Chunk) *evidence.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	require.NoError(t, evidence.WriteChunks(path, chunks))
	return evidence.NewStore(path, zap.NewNop())
}

func storeChunks() []evidence.Chunk {
	return []evidence.Chunk{
		{Text: "Non-pharmacological interventions first-line", Metadata: evidence.Metadata{DocName: "guideline.pdf", Page: 3, Section: "2.1"}},
		{Text: "Review medication quarterly", Metadata: evidence.Metadata{DocName: "guideline.pdf", Page: 5, Section: "2.4"}},
		{Text: "   ", Metadata: evidence.Metadata{DocName: "guideline.pdf", Page: 6, Section: "2.5"}},
	}
}

func TestSearch_Found(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]index.Hit{
		"q": {{Idx: 1, Distance: 0.30}, {Idx: 0, Distance: 0.45}},
	}}
	r := NewResearcher(searcher, testStore(t, storeChunks()), retrievalConfig(), zap.NewNop())

	out := r.Search(context.Background(), "q")
	require.Equal(t, StatusFound, out.Status)
	require.Len(t, out.Evidence, 2)

	assert.Equal(t, 1, out.Evidence[0].Idx)
	assert.Equal(t, 1, out.Evidence[0].Rank)
	assert.InDelta(t, 0.30, out.Evidence[0].Distance, 1e-9)
	assert.Equal(t, 2, out.Evidence[1].Rank)
	assert.Equal(t, "guideline.pdf", out.Evidence[0].DocName)
	assert.Equal(t, 5, out.Evidence[0].Page)
}

func TestSearch_GateRejectsWeakBestCandidate(t *testing.T) {
	// Best distance 0.72 against threshold 0.60: hard not-found, whatever
	// else the candidate list holds.
	searcher := &fakeSearcher{hits: map[string][]index.Hit{
		"q": {{Idx: 0, Distance: 0.72}, {Idx: 1, Distance: 0.80}},
	}}
	r := NewResearcher(searcher, testStore(t, storeChunks()), retrievalConfig(), zap.NewNop())

	out := r.Search(context.Background(), "q")
	assert.Equal(t, StatusNotFound, out.Status)
	assert.Equal(t, NotFoundMessage, out.Message)
	assert.Empty(t, out.Evidence)
}

func TestSearch_NoCandidatesIsNotFound(t *testing.T) {
	r := NewResearcher(&fakeSearcher{}, testStore(t, storeChunks()), retrievalConfig(), zap.NewNop())

	out := r.Search(context.Background(), "q")
	assert.Equal(t, StatusNotFound, out.Status)
	assert.Equal(t, NotFoundMessage, out.Message)
}

func TestSearch_DropsUnresolvableAndEmptyCandidates(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]index.Hit{
		"q": {
			{Idx: 0, Distance: 0.20},
			{Idx: -1, Distance: 0.25}, // no-match marker
			{Idx: 99, Distance: 0.30}, // out of store range
			{Idx: 2, Distance: 0.35},  // whitespace-only text
		},
	}}
	r := NewResearcher(searcher, testStore(t, storeChunks()), retrievalConfig(), zap.NewNop())

	out := r.Search(context.Background(), "q")
	require.Equal(t, StatusFound, out.Status)
	require.Len(t, out.Evidence, 1)
	assert.Equal(t, 0, out.Evidence[0].Idx)
	assert.Equal(t, 1, out.Evidence[0].Rank)
}

func TestSearch_AllDroppedDegradesToNotFound(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]index.Hit{
		"q": {{Idx: -1, Distance: 0.20}, {Idx: 99, Distance: 0.30}},
	}}
	r := NewResearcher(searcher, testStore(t, storeChunks()), retrievalConfig(), zap.NewNop())

	out := r.Search(context.Background(), "q")
	assert.Equal(t, StatusNotFound, out.Status)
	assert.Equal(t, NotFoundMessage, out.Message)
}

func TestSearch_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("evidence ", 400)
	store := testStore(t, []evidence.Chunk{
		{Text: long, Metadata: evidence.Metadata{DocName: "doc.pdf", Page: 1, Section: "1"}},
	})
	searcher := &fakeSearcher{hits: map[string][]index.Hit{
		"q": {{Idx: 0, Distance: 0.10}},
	}}
	cfg := retrievalConfig()
	cfg.MaxChunkChars = 100
	r := NewResearcher(searcher, store, cfg, zap.NewNop())

	out := r.Search(context.Background(), "q")
	require.Equal(t, StatusFound, out.Status)

	text := out.Evidence[0].Text
	assert.True(t, strings.HasSuffix(text, "…"))
	assert.LessOrEqual(t, len([]rune(text)), 101)
}

func TestSearch_IndexErrorSurfaces(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("index unavailable")}
	r := NewResearcher(searcher, testStore(t, storeChunks()), retrievalConfig(), zap.NewNop())

	out := r.Search(context.Background(), "q")
	assert.Equal(t, StatusError, out.Status)
	assert.Contains(t, out.Message, "index unavailable")
}
