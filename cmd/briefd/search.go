package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/briefd/internal/evidence"
	"github.com/fyrsmithlabs/briefd/internal/index"
	"github.com/fyrsmithlabs/briefd/internal/llm"
	"github.com/fyrsmithlabs/briefd/internal/logging"
	"github.com/fyrsmithlabs/briefd/internal/pipeline"
)

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Run one research question through the retrieval gate",
	Long: `Search the index for a question and print the gated evidence, or the
not-found message when retrieval is too weak to trust.

Examples:
  briefd search "management of agitation in dementia patients"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	client := llm.NewClient(cfg.LLM, logger)
	store := evidence.NewStore(cfg.Data.ChunksPath, logger)
	ix, err := index.Open(cfg.Data.IndexPath, cfg.Data.IndexCollection, client, logger)
	if err != nil {
		return err
	}

	researcher := pipeline.NewResearcher(ix, store, cfg.Retrieval, logger)
	out := researcher.Search(cmd.Context(), strings.Join(args, " "))

	switch out.Status {
	case pipeline.StatusNotFound:
		fmt.Fprintln(cmd.OutOrStdout(), out.Message)
	case pipeline.StatusError:
		return fmt.Errorf("search failed: %s", out.Message)
	default:
		for _, e := range out.Evidence {
			fmt.Fprintf(cmd.OutOrStdout(), "\n[%s] %s (distance %.4f)\n%s\n",
				evidence.Ref(e.Rank), e.Citation(), e.Distance, e.Text)
		}
	}
	return nil
}
