// Package main implements the briefd CLI: ingest documents, build the
// vector index, and run grounded deliverable tasks against it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/config"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
	"github.com/fyrsmithlabs/briefd/internal/index"
	"github.com/fyrsmithlabs/briefd/internal/llm"
	"github.com/fyrsmithlabs/briefd/internal/logging"
	"github.com/fyrsmithlabs/briefd/internal/pipeline"
)

var (
	configPath string
	logLevel   string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "briefd",
	Short: "Evidence-grounded deliverable pipeline",
	Long: `briefd turns source documents into retrieval-grounded, auditable
deliverables through a Plan -> Research -> Draft -> Verify workflow.
Claims without evidence become "Not found in sources." and deliverables
that fail verification are blocked, never delivered.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default briefd.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(evalCmd)
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

// buildRunner wires the full pipeline from configuration.
func buildRunner(cfg *config.Config, logger *zap.Logger) (*pipeline.Runner, error) {
	client := llm.NewClient(cfg.LLM, logger)
	store := evidence.NewStore(cfg.Data.ChunksPath, logger)

	ix, err := index.Open(cfg.Data.IndexPath, cfg.Data.IndexCollection, client, logger)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	return pipeline.NewRunner(
		pipeline.NewPlanner(client, logger),
		pipeline.NewResearcher(ix, store, cfg.Retrieval, logger),
		pipeline.NewWriter(client, cfg.Writer, logger),
		cfg.Pipeline,
		logger,
	), nil
}
