package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/briefd/internal/config"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
)

// Runner sequences one task through Plan -> Research -> Draft -> Verify.
// Each run is a stateless task-to-deliverable transaction; the only state
// shared across runs is the read-only evidence store.
type Runner struct {
	planner    *Planner
	researcher *Researcher
	writer     *Writer
	cfg        config.PipelineConfig
	logger     *zap.Logger
}

// NewRunner assembles the pipeline stages.
func NewRunner(planner *Planner, researcher *Researcher, writer *Writer, cfg config.PipelineConfig, logger *zap.Logger) *Runner {
	return &Runner{
		planner:    planner,
		researcher: researcher,
		writer:     writer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes the full pipeline for one user task.
//
// A not-found research outcome is an intentional early exit: Write and
// Verify are skipped and the canonical sentinel deliverable is returned
// with status ok. A stage error halts the run immediately and reports
// the failing stage; the orchestrator performs no retries of its own.
func (r *Runner) Run(ctx context.Context, task string) *RunResult {
	ctx, span := tracer.Start(ctx, "Runner.Run")
	defer span.End()

	runID := uuid.NewString()
	span.SetAttributes(attribute.String("run_id", runID))
	start := time.Now()

	out := &RunResult{RunID: runID, Trace: []TraceStep{}}
	finish := func(status Status) *RunResult {
		out.Status = status
		out.TotalMs = time.Since(start).Milliseconds()
		runsTotal.WithLabelValues(string(status)).Inc()
		return out
	}

	// 1) Plan
	planStart := time.Now()
	planOut := r.planner.Plan(ctx, task)
	stageDuration.WithLabelValues("planner").Observe(time.Since(planStart).Seconds())
	out.Trace = append(out.Trace, TraceStep{
		Agent:  "planner",
		Status: planOut.Status,
		Ms:     time.Since(planStart).Milliseconds(),
	})
	if planOut.Status != StatusOK {
		out.Where = "planner"
		out.Message = planOut.Message
		return finish(StatusError)
	}

	questions := planOut.Plan.ResearchQuestions
	if len(questions) == 0 {
		questions = []string{task}
	}
	if len(questions) > r.cfg.MaxResearchQuestions {
		questions = questions[:r.cfg.MaxResearchQuestions]
	}

	// 2) Research, fanned out per question
	researchStart := time.Now()
	research := r.research(ctx, questions)
	stageDuration.WithLabelValues("research").Observe(time.Since(researchStart).Seconds())
	out.Trace = append(out.Trace, TraceStep{
		Agent:         "research",
		Status:        research.Status,
		Ms:            time.Since(researchStart).Milliseconds(),
		Query:         research.Question,
		EvidenceCount: len(research.Evidence),
	})
	if research.Status == StatusError {
		out.Where = "research"
		out.Message = research.Message
		return finish(StatusError)
	}

	// No usable evidence: deliver the sentinel, skip Write and Verify.
	if research.Status != StatusFound {
		out.Result = NotFoundDeliverable()
		return finish(StatusOK)
	}

	// 3) Draft
	writeStart := time.Now()
	writerOut := r.writer.Write(ctx, task, research)
	stageDuration.WithLabelValues("writer").Observe(time.Since(writeStart).Seconds())
	out.Trace = append(out.Trace, TraceStep{
		Agent:  "writer",
		Status: writerOut.Status,
		Ms:     time.Since(writeStart).Milliseconds(),
	})
	if writerOut.Status != StatusOK {
		out.Where = "writer"
		out.Message = writerOut.Message
		return finish(StatusError)
	}

	// 4) Verify
	verifyStart := time.Now()
	verified := Verify(writerOut, research)
	stageDuration.WithLabelValues("verifier").Observe(time.Since(verifyStart).Seconds())
	recordIssues(verified.Issues)
	out.Trace = append(out.Trace, TraceStep{
		Agent:      "verifier",
		Status:     verified.Status,
		Ms:         time.Since(verifyStart).Milliseconds(),
		IssueCount: len(verified.Issues),
	})

	out.Result = verified.Deliverable
	out.Issues = verified.Issues
	if verified.Status != StatusOK {
		out.Message = verified.Message
		return finish(StatusBlocked)
	}
	return finish(StatusOK)
}

// research runs each question against the index and merges the results.
//
// Questions run concurrently, but the merge is deterministic: evidence is
// deduplicated on store index, first occurrence wins, ordered by question
// then rank, and re-ranked 1..n after the merge.
func (r *Runner) research(ctx context.Context, questions []string) ResearchResult {
	results := make([]ResearchResult, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			results[i] = r.researcher.Search(gctx, q)
			return nil
		})
	}
	// Goroutines never return errors; failures travel in the results.
	_ = g.Wait()

	for _, res := range results {
		if res.Status == StatusError {
			return res
		}
	}

	seen := make(map[int]struct{})
	var merged []evidence.Evidence
	for _, res := range results {
		for _, e := range res.Evidence {
			if _, dup := seen[e.Idx]; dup {
				continue
			}
			seen[e.Idx] = struct{}{}
			e.Rank = len(merged) + 1
			merged = append(merged, e)
		}
	}

	if len(merged) == 0 {
		return ResearchResult{
			Status:   StatusNotFound,
			Question: questions[0],
			Message:  NotFoundMessage,
		}
	}

	r.logger.Debug("research merged",
		zap.Int("questions", len(questions)),
		zap.Int("evidence", len(merged)),
	)

	return ResearchResult{
		Status:   StatusFound,
		Question: questions[0],
		Evidence: merged,
	}
}
