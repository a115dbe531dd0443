package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/briefd/internal/logging"
	"github.com/fyrsmithlabs/briefd/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task through the full pipeline",
	Long: `Run one task through Plan -> Research -> Draft -> Verify and print the
result as JSON, including the stage trace and any verification issues.

Examples:
  briefd run "Summarize the evidence on agitation management for a clinic lead"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func runTask(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	out := runner.Run(cmd.Context(), strings.Join(args, " "))

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if out.Status == pipeline.StatusError {
		return fmt.Errorf("pipeline failed at %s: %s", out.Where, out.Message)
	}
	return nil
}
