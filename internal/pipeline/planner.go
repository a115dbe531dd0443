package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/jsonx"
)

// ChatClient issues one chat completion under a system/user prompt pair.
type ChatClient interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

const plannerSystemPrompt = "You are a planner. Produce concise, actionable plans. Follow the schema exactly."

const plannerPromptTemplate = `Create an execution plan for a multi-agent workflow: Plan -> Research -> Draft -> Verify -> Deliver.

Return ONLY valid JSON with this schema:
{
  "goal": "...",
  "research_questions": ["...", "..."],
  "deliverable_requirements": [
    "Executive Summary (max 150 words)",
    "Client-ready Email",
    "Action List (owner, due date, confidence)",
    "Sources and citations"
  ],
  "draft_outline": [
    "Executive Summary",
    "Client-ready Email",
    "Action List",
    "Sources"
  ],
  "success_criteria": [
    "Uses only retrieved evidence",
    "If evidence missing: 'Not found in sources.'",
    "Citations include DocumentName + page/chunk id"
  ]
}

USER TASK:
%s`

// Planner turns a user task into a structured execution plan.
type Planner struct {
	chat   ChatClient
	logger *zap.Logger
}

// NewPlanner creates the plan stage.
func NewPlanner(chat ChatClient, logger *zap.Logger) *Planner {
	return &Planner{chat: chat, logger: logger}
}

// Plan produces an execution plan for the task.
func (p *Planner) Plan(ctx context.Context, task string) PlanResult {
	ctx, span := tracer.Start(ctx, "Planner.Plan")
	defer span.End()

	raw, err := p.chat.Chat(ctx, plannerSystemPrompt, fmt.Sprintf(plannerPromptTemplate, task))
	if err != nil {
		span.RecordError(err)
		return PlanResult{
			Status:  StatusError,
			Message: fmt.Sprintf("planner call failed: %v", err),
		}
	}

	obj, ok := jsonx.ExtractObject(raw)
	if !ok {
		return PlanResult{
			Status:    StatusError,
			Message:   "planner model did not return valid JSON",
			RawOutput: truncateRaw(raw),
		}
	}

	var plan Plan
	data, err := json.Marshal(obj)
	if err == nil {
		err = json.Unmarshal(data, &plan)
	}
	if err != nil {
		return PlanResult{
			Status:    StatusError,
			Message:   fmt.Sprintf("planner output did not match schema: %v", err),
			RawOutput: truncateRaw(raw),
		}
	}

	p.logger.Debug("plan produced",
		zap.String("goal", plan.Goal),
		zap.Int("research_questions", len(plan.ResearchQuestions)),
	)

	return PlanResult{Status: StatusOK, Plan: &plan}
}

// maxRawExcerpt bounds retained raw model output on parse failures.
const maxRawExcerpt = 2000

func truncateRaw(raw string) string {
	if len(raw) > maxRawExcerpt {
		return raw[:maxRawExcerpt]
	}
	return raw
}
