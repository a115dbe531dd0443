// Package index persists chunk embeddings and answers nearest-neighbor
// queries over them.
//
// Built on chromem-go: an embeddable vector database, pure Go, persisted
// to disk, no external service required. Document IDs are the decimal
// chunk indices, so a search hit maps straight back to the evidence store.
package index

import (
	"context"
	"fmt"
	"os"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/evidence"
)

var tracer = otel.Tracer("briefd.index")

// Embedder produces an embedding vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Hit is a single nearest-neighbor result. Distance is cosine distance:
// zero for identical direction, growing as similarity drops.
type Hit struct {
	Idx      int
	Distance float64
}

// Index wraps a persistent chromem collection keyed by chunk index.
type Index struct {
	db         *chromem.DB
	collection string
	embedder   Embedder
	logger     *zap.Logger
}

// Open opens (or creates) a persistent index at path.
func Open(path, collection string, embedder Embedder, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("index opened",
		zap.String("path", path),
		zap.String("collection", collection),
	)

	return &Index{
		db:         db,
		collection: collection,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// embeddingFunc adapts the Embedder to chromem's callback.
func (ix *Index) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return ix.embedder.Embed(ctx, text)
	}
}

// Add embeds and stores chunks. Chunk i is stored under ID strconv(base+i),
// so callers indexing a full store pass base 0 and chunk order must match
// the store's file order.
func (ix *Index) Add(ctx context.Context, base int, chunks []evidence.Chunk) error {
	ctx, span := tracer.Start(ctx, "Index.Add")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", ix.collection),
		attribute.Int("chunk_count", len(chunks)),
	)

	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index")
	}

	collection, err := ix.db.GetOrCreateCollection(ix.collection, nil, ix.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting/creating collection %s: %w", ix.collection, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		embedding, err := ix.embedder.Embed(ctx, ch.Text)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("embedding chunk %d: %w", base+i, err)
		}

		docs[i] = chromem.Document{
			ID:        strconv.Itoa(base + i),
			Content:   ch.Text,
			Embedding: embedding,
			Metadata: map[string]string{
				"doc_name": ch.Metadata.DocName,
				"page":     strconv.Itoa(ch.Metadata.Page),
				"section":  ch.Metadata.Section,
			},
		}

		if (i+1)%50 == 0 {
			ix.logger.Info("embedding progress",
				zap.Int("done", i+1),
				zap.Int("total", len(chunks)),
			)
		}
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")

	ix.logger.Info("chunks indexed",
		zap.String("collection", ix.collection),
		zap.Int("count", len(chunks)),
	)
	return nil
}

// Query returns up to k nearest chunks for the query text, best first.
func (ix *Index) Query(ctx context.Context, query string, k int) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "Index.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", ix.collection),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	collection := ix.db.GetCollection(ix.collection, ix.embeddingFunc())
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("collection %s not found; build the index first", ix.collection)
	}

	// Cap k at collection size (chromem requires nResults <= doc count)
	docCount := collection.Count()
	if docCount == 0 {
		return []Hit{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", ix.collection, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		idx, err := strconv.Atoi(r.ID)
		if err != nil {
			ix.logger.Warn("skipping result with non-numeric ID", zap.String("id", r.ID))
			continue
		}
		hits = append(hits, Hit{
			Idx:      idx,
			Distance: 1 - float64(r.Similarity),
		})
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")

	return hits, nil
}

// Count returns the number of indexed chunks, zero if the collection
// does not exist yet.
func (ix *Index) Count() int {
	collection := ix.db.GetCollection(ix.collection, ix.embeddingFunc())
	if collection == nil {
		return 0
	}
	return collection.Count()
}
