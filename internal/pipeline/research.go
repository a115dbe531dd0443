package pipeline

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/config"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
	"github.com/fyrsmithlabs/briefd/internal/index"
)

// Searcher answers nearest-neighbor queries over the chunk index.
type Searcher interface {
	Query(ctx context.Context, query string, k int) ([]index.Hit, error)
}

// Researcher retrieves evidence for one question and applies the quality
// gate. The gate is a hard cutoff: weak retrieval becomes an explicit
// not-found, never weak evidence.
type Researcher struct {
	searcher Searcher
	store    *evidence.Store
	cfg      config.RetrievalConfig
	logger   *zap.Logger
}

// NewResearcher creates a research stage.
func NewResearcher(searcher Searcher, store *evidence.Store, cfg config.RetrievalConfig, logger *zap.Logger) *Researcher {
	return &Researcher{
		searcher: searcher,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// Search retrieves and gates evidence for a question.
//
// Index errors surface as StatusError without retry; retry policy lives
// in the external-service clients, not here.
func (r *Researcher) Search(ctx context.Context, question string) ResearchResult {
	ctx, span := tracer.Start(ctx, "Researcher.Search")
	defer span.End()
	span.SetAttributes(attribute.String("question", question))

	hits, err := r.searcher.Query(ctx, question, r.cfg.TopK)
	if err != nil {
		span.RecordError(err)
		return ResearchResult{
			Status:   StatusError,
			Question: question,
			Message:  err.Error(),
		}
	}

	if len(hits) == 0 || hits[0].Distance > r.cfg.DistanceThreshold {
		gateDecisions.WithLabelValues("not_found").Inc()
		if len(hits) > 0 {
			r.logger.Info("retrieval gate rejected evidence",
				zap.String("question", question),
				zap.Float64("best_distance", hits[0].Distance),
				zap.Float64("threshold", r.cfg.DistanceThreshold),
			)
		}
		return ResearchResult{
			Status:   StatusNotFound,
			Question: question,
			Message:  NotFoundMessage,
		}
	}

	items := make([]evidence.Evidence, 0, len(hits))
	for _, h := range hits {
		if h.Idx < 0 {
			continue
		}

		chunk, err := r.store.Get(h.Idx)
		if err != nil {
			r.logger.Warn("dropping unresolvable candidate",
				zap.Int("idx", h.Idx),
				zap.Error(err),
			)
			continue
		}

		text := strings.TrimSpace(chunk.Text)
		if text == "" {
			continue
		}
		if runes := []rune(text); len(runes) > r.cfg.MaxChunkChars {
			text = strings.TrimRight(string(runes[:r.cfg.MaxChunkChars]), " \t\n") + "…"
		}

		items = append(items, evidence.Evidence{
			Idx:      h.Idx,
			Rank:     len(items) + 1,
			Distance: h.Distance,
			DocName:  chunk.Metadata.DocName,
			Page:     chunk.Metadata.Page,
			Section:  chunk.Metadata.Section,
			Text:     text,
		})
	}

	// Never report found with zero evidence.
	if len(items) == 0 {
		gateDecisions.WithLabelValues("not_found").Inc()
		return ResearchResult{
			Status:   StatusNotFound,
			Question: question,
			Message:  NotFoundMessage,
		}
	}

	gateDecisions.WithLabelValues("found").Inc()
	span.SetAttributes(attribute.Int("evidence_count", len(items)))

	return ResearchResult{
		Status:   StatusFound,
		Question: question,
		Evidence: items,
	}
}
