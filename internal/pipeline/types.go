// Package pipeline implements the four-stage grounding workflow:
// Plan -> Research -> Draft -> Verify.
//
// The contract running through all four stages is traceability: a chunk
// index becomes an evidence item, the evidence item becomes a positional
// label (E1..En), and the verifier closes the loop by rejecting any label
// the generator was never given. A claim without evidence is replaced by
// the sentinel, never invented.
package pipeline

import "github.com/fyrsmithlabs/briefd/internal/evidence"

// NotFoundMessage is the sentinel marking "no supportable value". It is
// user-visible output, not an error, and its exact wording is part of the
// wire contract with the generator and verifier.
const NotFoundMessage = "Not found in sources."

// DefaultOwner is the generic role assigned when the generator omits an
// action owner. Owners are roles, never person names.
const DefaultOwner = "Project Team"

// Status tags a stage result.
type Status string

const (
	// StatusOK is a successful stage result.
	StatusOK Status = "ok"

	// StatusFound is a research result with usable evidence.
	StatusFound Status = "found"

	// StatusNotFound is the legitimate "no sufficient evidence" outcome.
	// It is expected behavior, never an error.
	StatusNotFound Status = "not_found"

	// StatusBlocked is a deliverable that failed verification.
	StatusBlocked Status = "blocked"

	// StatusError is an unrecoverable stage fault that halts the pipeline.
	StatusError Status = "error"
)

// Plan is the planner's structured output. Produced once per run,
// read-only afterward.
type Plan struct {
	Goal                    string   `json:"goal"`
	ResearchQuestions       []string `json:"research_questions"`
	DeliverableRequirements []string `json:"deliverable_requirements"`
	DraftOutline            []string `json:"draft_outline"`
	SuccessCriteria         []string `json:"success_criteria"`
}

// PlanResult is the planner stage outcome.
type PlanResult struct {
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	RawOutput string `json:"raw_output,omitempty"`
	Plan      *Plan  `json:"plan,omitempty"`
}

// ResearchResult is the research stage outcome for one question (or the
// merged outcome across fanned-out questions).
type ResearchResult struct {
	Status   Status              `json:"status"`
	Question string              `json:"question,omitempty"`
	Message  string              `json:"message,omitempty"`
	Evidence []evidence.Evidence `json:"evidence,omitempty"`
}

// Email is the client-ready email section of a deliverable.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Action is one entry in the deliverable's action list.
type Action struct {
	Action       string   `json:"action"`
	Owner        string   `json:"owner"`
	DueDate      string   `json:"due_date"`
	Confidence   string   `json:"confidence"`
	EvidenceRefs []string `json:"evidence_refs"`
}

// Source maps a positional evidence label to its human-readable citation.
// Sources are rebuilt mechanically from the evidence slice, never taken
// from generator output.
type Source struct {
	EvidenceRef string `json:"evidence_ref"`
	Citation    string `json:"citation"`
}

// Deliverable is the final client-facing artifact.
type Deliverable struct {
	ExecutiveSummary string   `json:"executive_summary"`
	ClientReadyEmail Email    `json:"client_ready_email"`
	ActionList       []Action `json:"action_list"`
	Sources          []Source `json:"sources"`
}

// NotFoundDeliverable is the canonical early-exit artifact returned when
// the research gate finds no usable evidence.
func NotFoundDeliverable() *Deliverable {
	return &Deliverable{
		ExecutiveSummary: NotFoundMessage,
		ClientReadyEmail: Email{Subject: NotFoundMessage, Body: NotFoundMessage},
		ActionList:       []Action{},
		Sources:          []Source{},
	}
}

// WriteResult is the draft stage outcome.
type WriteResult struct {
	Status      Status       `json:"status"`
	Message     string       `json:"message,omitempty"`
	RawOutput   string       `json:"raw_output,omitempty"`
	Deliverable *Deliverable `json:"deliverable,omitempty"`
}

// Severity classifies a verification issue.
type Severity string

const (
	// SeverityError blocks the deliverable.
	SeverityError Severity = "error"

	// SeverityWarning is reported, auto-corrected where possible, and
	// never blocks on its own.
	SeverityWarning Severity = "warning"
)

// Issue is one problem found by the verifier.
type Issue struct {
	Type     string   `json:"type"`
	Detail   string   `json:"detail"`
	Severity Severity `json:"severity"`
}

// VerifyResult is the verifier stage outcome. On ok the deliverable is
// the healed copy; on blocked it is the unmodified original so the caller
// can inspect exactly what failed.
type VerifyResult struct {
	Status      Status       `json:"status"`
	Message     string       `json:"message,omitempty"`
	Issues      []Issue      `json:"issues,omitempty"`
	Deliverable *Deliverable `json:"deliverable,omitempty"`
}

// TraceStep records one stage of a run for the audit trail.
type TraceStep struct {
	Agent         string `json:"agent"`
	Status        Status `json:"status"`
	Ms            int64  `json:"ms"`
	Query         string `json:"query,omitempty"`
	EvidenceCount int    `json:"evidence_count,omitempty"`
	IssueCount    int    `json:"issue_count,omitempty"`
}

// RunResult is the end-to-end outcome of one task invocation.
type RunResult struct {
	RunID   string       `json:"run_id"`
	Status  Status       `json:"status"`
	Where   string       `json:"where,omitempty"`
	Message string       `json:"message,omitempty"`
	Result  *Deliverable `json:"result,omitempty"`
	Issues  []Issue      `json:"issues,omitempty"`
	Trace   []TraceStep  `json:"trace"`
	TotalMs int64        `json:"total_ms"`
}
