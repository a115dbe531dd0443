// Package eval runs the evaluation question set through the pipeline and
// writes per-question records plus an aggregate report.
package eval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/pipeline"
)

// Question is one evaluation case.
type Question struct {
	ID   string `json:"id"`
	Task string `json:"task"`
}

// Runner executes one task through the pipeline.
type Runner interface {
	Run(ctx context.Context, task string) *pipeline.RunResult
}

// Checks are the per-question pass criteria. Field names are part of the
// report format.
type Checks struct {
	TraceVisible           bool `json:"trace_visible"`
	ExecSummaryLe150Words  bool `json:"exec_summary_le_150_words"`
	HasCitationsOrNotFound bool `json:"has_citations_or_not_found"`
	StatusOkOrBlocked      bool `json:"status_ok_or_blocked"`
}

func (c Checks) pass() bool {
	return c.TraceVisible && c.ExecSummaryLe150Words && c.HasCitationsOrNotFound && c.StatusOkOrBlocked
}

// QuestionReport is one row of the aggregate report.
type QuestionReport struct {
	ID         string          `json:"id"`
	Task       string          `json:"task"`
	Seconds    float64         `json:"seconds"`
	Status     pipeline.Status `json:"status"`
	Pass       bool            `json:"pass"`
	Checks     Checks          `json:"checks"`
	OutputFile string          `json:"output_file"`
}

// Report aggregates a full evaluation run.
type Report struct {
	Total            int              `json:"total"`
	Passed           int              `json:"passed"`
	Failed           int              `json:"failed"`
	PassRate         string           `json:"pass_rate"`
	TotalTimeSeconds float64          `json:"total_time_seconds"`
	AvgTimeSeconds   float64          `json:"avg_time_seconds"`
	Summary          []QuestionReport `json:"summary"`
}

// LoadQuestions reads newline-delimited JSON questions. Malformed lines
// and lines missing id or task are skipped with a warning, never fatal;
// an empty result is.
func LoadQuestions(path string, logger *zap.Logger) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening questions file: %w", err)
	}
	defer f.Close()

	var questions []Question
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var q Question
		if err := json.Unmarshal([]byte(line), &q); err != nil {
			logger.Warn("skipping malformed question line",
				zap.Int("line", lineNum),
				zap.Error(err),
			)
			continue
		}
		if q.ID == "" || q.Task == "" {
			logger.Warn("skipping question missing id or task", zap.Int("line", lineNum))
			continue
		}
		questions = append(questions, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading questions file: %w", err)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("no valid questions in %s", path)
	}
	return questions, nil
}

// Evaluate runs every question, saves each run to outDir/<id>.json, and
// writes the aggregate to outDir/summary.json.
func Evaluate(ctx context.Context, runner Runner, questions []Question, outDir string, logger *zap.Logger) (*Report, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	report := &Report{Total: len(questions)}

	for i, q := range questions {
		logger.Info("evaluating question",
			zap.String("id", q.ID),
			zap.Int("n", i+1),
			zap.Int("total", len(questions)),
		)

		start := time.Now()
		out := runner.Run(ctx, q.Task)
		seconds := time.Since(start).Seconds()

		outPath := filepath.Join(outDir, q.ID+".json")
		if err := writeJSON(outPath, out); err != nil {
			logger.Warn("failed to save question output", zap.String("id", q.ID), zap.Error(err))
		}

		checks := runChecks(out)
		row := QuestionReport{
			ID:         q.ID,
			Task:       q.Task,
			Seconds:    seconds,
			Status:     out.Status,
			Pass:       checks.pass(),
			Checks:     checks,
			OutputFile: outPath,
		}
		if row.Pass {
			report.Passed++
		} else {
			report.Failed++
			logger.Warn("question failed checks", zap.String("id", q.ID))
		}
		report.TotalTimeSeconds += seconds
		report.Summary = append(report.Summary, row)
	}

	report.PassRate = fmt.Sprintf("%.1f%%", float64(report.Passed)/float64(report.Total)*100)
	report.AvgTimeSeconds = report.TotalTimeSeconds / float64(report.Total)

	if err := writeJSON(filepath.Join(outDir, "summary.json"), report); err != nil {
		return nil, fmt.Errorf("writing summary: %w", err)
	}

	return report, nil
}

func runChecks(out *pipeline.RunResult) Checks {
	return Checks{
		TraceVisible:           len(out.Trace) > 0,
		ExecSummaryLe150Words:  summaryWordCountOK(out.Result),
		HasCitationsOrNotFound: hasCitations(out.Result) || saysNotFound(out.Result),
		StatusOkOrBlocked:      out.Status == pipeline.StatusOK || out.Status == pipeline.StatusBlocked,
	}
}

func summaryWordCountOK(d *pipeline.Deliverable) bool {
	if d == nil {
		return false
	}
	words := len(strings.Fields(d.ExecutiveSummary))
	return words > 0 && words <= 150
}

func hasCitations(d *pipeline.Deliverable) bool {
	return d != nil && len(d.Sources) > 0
}

func saysNotFound(d *pipeline.Deliverable) bool {
	if d == nil {
		return false
	}
	marker := strings.ToLower(pipeline.NotFoundMessage)
	for _, s := range []string{d.ExecutiveSummary, d.ClientReadyEmail.Subject, d.ClientReadyEmail.Body} {
		if strings.Contains(strings.ToLower(s), strings.TrimSuffix(marker, ".")) {
			return true
		}
	}
	return false
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
