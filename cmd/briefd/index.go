package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/evidence"
	"github.com/fyrsmithlabs/briefd/internal/index"
	"github.com/fyrsmithlabs/briefd/internal/llm"
	"github.com/fyrsmithlabs/briefd/internal/logging"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the chunk file into the vector index",
	Long: `Embed every chunk in the chunk file and store the vectors in the
persistent index. Document IDs are the chunk-file positions, so the index
must be rebuilt whenever the chunk file changes.

Requires a running Ollama-compatible model server for embeddings.

Examples:
  briefd index`,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	store := evidence.NewStore(cfg.Data.ChunksPath, logger)
	chunks, err := store.All()
	if err != nil {
		return fmt.Errorf("loading chunks: %w", err)
	}

	client := llm.NewClient(cfg.LLM, logger)
	ix, err := index.Open(cfg.Data.IndexPath, cfg.Data.IndexCollection, client, logger)
	if err != nil {
		return err
	}

	if n := ix.Count(); n > 0 {
		logger.Warn("index collection already holds documents; rebuilding on top replaces matching IDs",
			zap.Int("existing", n),
		)
	}

	if err := ix.Add(cmd.Context(), 0, chunks); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d chunks into %s\n", len(chunks), cfg.Data.IndexPath)
	return nil
}
