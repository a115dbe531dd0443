package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/briefd/internal/eval"
	"github.com/fyrsmithlabs/briefd/internal/logging"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run the evaluation question set",
	Long: `Run every question in the evaluation file through the pipeline, save
per-question outputs and an aggregate summary, and exit non-zero if any
question fails its checks.

Examples:
  briefd eval
  briefd eval --config ./briefd.yaml`,
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	questions, err := eval.LoadQuestions(cfg.Eval.QuestionsPath, logger)
	if err != nil {
		return err
	}

	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	report, err := eval.Evaluate(cmd.Context(), runner, questions, cfg.Eval.OutDir, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "total %d, passed %d, failed %d (%s), avg %.2fs\n",
		report.Total, report.Passed, report.Failed, report.PassRate, report.AvgTimeSeconds)

	if report.Failed > 0 {
		return fmt.Errorf("%d question(s) failed checks, see %s", report.Failed, cfg.Eval.OutDir)
	}
	return nil
}
