package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/chunker"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
	"github.com/fyrsmithlabs/briefd/internal/ingest"
	"github.com/fyrsmithlabs/briefd/internal/logging"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk raw documents into the chunk file",
	Long: `Extract page text from documents in the raw data directory, chunk it
structurally, and write the chunk file. The chunk file is rewritten from
scratch so chunk indices stay aligned with a freshly built index.

Examples:
  briefd ingest
  briefd ingest --config ./briefd.yaml`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	opts := chunker.Options{
		MaxTokens: cfg.Chunking.MaxTokens,
		Overlap:   cfg.Chunking.Overlap,
	}

	chunks, err := ingest.New(opts, logger).IngestDir(cfg.Data.RawDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Data.ChunksPath), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	// Rewrite, never append: stale chunks would shift index identity.
	if err := os.Remove(cfg.Data.ChunksPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing old chunk file: %w", err)
	}
	if err := evidence.WriteChunks(cfg.Data.ChunksPath, chunks); err != nil {
		return err
	}

	logger.Info("chunk file written",
		zap.String("path", cfg.Data.ChunksPath),
		zap.Int("chunks", len(chunks)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d chunks to %s\n", len(chunks), cfg.Data.ChunksPath)
	return nil
}
