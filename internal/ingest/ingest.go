// Package ingest turns raw source documents into persisted chunks.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/chunker"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
)

// Ingester extracts page text from documents and chunks it. PDFs keep
// their page numbering; plain text and markdown files count as a single
// page.
type Ingester struct {
	opts   chunker.Options
	logger *zap.Logger
}

// New creates an ingester with the given chunking options.
func New(opts chunker.Options, logger *zap.Logger) *Ingester {
	return &Ingester{opts: opts, logger: logger}
}

// IngestDir chunks every supported document in dir, in sorted file order
// so chunk indices are reproducible. An unreadable document fails the
// whole ingest; partial chunk files would silently shift indices.
func (g *Ingester) IngestDir(dir string) ([]evidence.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".pdf", ".txt", ".md":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no supported documents (pdf, txt, md) in %s", dir)
	}

	var all []evidence.Chunk
	for _, path := range paths {
		chunks, err := g.ingestFile(path)
		if err != nil {
			return nil, fmt.Errorf("ingesting %s: %w", path, err)
		}

		g.logger.Info("document ingested",
			zap.String("path", path),
			zap.Int("chunks", len(chunks)),
		)
		all = append(all, chunks...)
	}

	return all, nil
}

func (g *Ingester) ingestFile(path string) ([]evidence.Chunk, error) {
	docName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return g.ingestPDF(path, docName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return chunker.ChunkPage(docName, 1, string(data), g.opts), nil
}

func (g *Ingester) ingestPDF(path, docName string) ([]evidence.Chunk, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var chunks []evidence.Chunk
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			g.logger.Warn("skipping unreadable PDF page",
				zap.String("doc", docName),
				zap.Int("page", pageNum),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		chunks = append(chunks, chunker.ChunkPage(docName, pageNum, text, g.opts)...)
	}

	return chunks, nil
}
