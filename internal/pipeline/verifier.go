package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/briefd/internal/evidence"
)

// maxSummaryWords is the executive summary word budget.
const maxSummaryWords = 150

var refRe = regexp.MustCompile(`\bE(\d+)\b`)

// Verify re-checks a drafted deliverable against the evidence that
// produced it. Pure and deterministic: no external calls, same inputs
// always give the same verdict.
//
// Any error-severity issue blocks the deliverable, which is then returned
// unmodified for inspection. Warnings are auto-corrected where possible
// (a blank due_date becomes the sentinel) and reported without blocking.
func Verify(writerOut WriteResult, researchOut ResearchResult) VerifyResult {
	if writerOut.Status != StatusOK {
		return VerifyResult{
			Status:  StatusBlocked,
			Message: fmt.Sprintf("writer output is %s, not ok; cannot verify", writerOut.Status),
		}
	}
	if researchOut.Status != StatusFound {
		return VerifyResult{
			Status:  StatusBlocked,
			Message: "no evidence found; deliverable must be the not-found sentinel",
		}
	}
	if writerOut.Deliverable == nil {
		return VerifyResult{
			Status:  StatusBlocked,
			Message: "writer output carries no deliverable",
		}
	}
	if len(researchOut.Evidence) == 0 {
		return VerifyResult{
			Status:  StatusBlocked,
			Message: "research result carries no evidence",
		}
	}

	original := writerOut.Deliverable
	healed := copyDeliverable(original)

	var issues []Issue
	addIssue := func(typ, detail string, sev Severity) {
		issues = append(issues, Issue{Type: typ, Detail: detail, Severity: sev})
	}

	issues = append(issues, checkSummary(healed.ExecutiveSummary)...)
	issues = append(issues, checkEmail(healed.ClientReadyEmail)...)

	validRefs := validRefSet(len(researchOut.Evidence))

	// Closed-world check over every string in the deliverable.
	if bad := invalidRefs(original, validRefs); len(bad) > 0 {
		addIssue("invalid_evidence_ref",
			fmt.Sprintf("deliverable references evidence not provided: %v", bad),
			SeverityError)
	}

	if len(healed.ActionList) == 0 {
		addIssue("empty_action_list",
			"action_list is empty although evidence exists",
			SeverityError)
	}
	for i := range healed.ActionList {
		a := &healed.ActionList[i]
		n := i + 1

		if len(a.EvidenceRefs) == 0 {
			addIssue("missing_evidence_refs",
				fmt.Sprintf("action #%d has no evidence_refs", n),
				SeverityError)
		} else if unknown := unknownRefs(a.EvidenceRefs, validRefs); len(unknown) > 0 {
			addIssue("unknown_evidence_refs",
				fmt.Sprintf("action #%d references unknown evidence_refs: %v", n, unknown),
				SeverityError)
		}

		switch strings.ToLower(a.Confidence) {
		case "high", "medium", "low":
		default:
			addIssue("bad_confidence_value",
				fmt.Sprintf("action #%d has invalid confidence %q, must be high|medium|low", n, a.Confidence),
				SeverityWarning)
		}

		if strings.TrimSpace(a.DueDate) == "" {
			a.DueDate = NotFoundMessage
			addIssue("missing_due_date",
				fmt.Sprintf("action #%d missing due_date; set to %q", n, NotFoundMessage),
				SeverityWarning)
		}
	}

	if len(healed.Sources) == 0 {
		addIssue("missing_required_field",
			"sources list is missing or empty",
			SeverityError)
	}

	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return VerifyResult{
				Status:      StatusBlocked,
				Message:     "verifier blocked deliverable",
				Issues:      issues,
				Deliverable: original,
			}
		}
	}

	return VerifyResult{
		Status:      StatusOK,
		Message:     "verifier passed deliverable",
		Issues:      issues,
		Deliverable: healed,
	}
}

func checkSummary(summary string) []Issue {
	if strings.TrimSpace(summary) == "" {
		return []Issue{{
			Type:     "missing_required_field",
			Detail:   "executive_summary is missing or empty",
			Severity: SeverityError,
		}}
	}
	// Evidence exists, so a blanket refusal is itself a defect.
	if strings.TrimSpace(summary) == NotFoundMessage {
		return []Issue{{
			Type:     "invalid_not_found_executive_summary",
			Detail:   "executive_summary is the not-found sentinel although evidence exists",
			Severity: SeverityError,
		}}
	}
	if words := len(strings.Fields(summary)); words > maxSummaryWords {
		return []Issue{{
			Type:     "executive_summary_too_long",
			Detail:   fmt.Sprintf("executive_summary has %d words, max %d", words, maxSummaryWords),
			Severity: SeverityError,
		}}
	}
	return nil
}

func checkEmail(email Email) []Issue {
	var issues []Issue

	switch {
	case strings.TrimSpace(email.Subject) == "":
		issues = append(issues, Issue{
			Type:     "missing_email_subject",
			Detail:   "client_ready_email.subject is missing",
			Severity: SeverityWarning,
		})
	case strings.TrimSpace(email.Subject) == NotFoundMessage:
		issues = append(issues, Issue{
			Type:     "invalid_not_found_email",
			Detail:   "client_ready_email.subject is the not-found sentinel although evidence exists",
			Severity: SeverityError,
		})
	}

	switch {
	case strings.TrimSpace(email.Body) == "":
		issues = append(issues, Issue{
			Type:     "missing_email_body",
			Detail:   "client_ready_email.body is missing",
			Severity: SeverityWarning,
		})
	case strings.TrimSpace(email.Body) == NotFoundMessage:
		issues = append(issues, Issue{
			Type:     "invalid_not_found_email",
			Detail:   "client_ready_email.body is the not-found sentinel although evidence exists",
			Severity: SeverityError,
		})
	}

	return issues
}

// validRefSet is {E1..En} for n evidence items.
func validRefSet(n int) map[string]struct{} {
	set := make(map[string]struct{}, n)
	for i := 1; i <= n; i++ {
		set[evidence.Ref(i)] = struct{}{}
	}
	return set
}

func unknownRefs(refs []string, valid map[string]struct{}) []string {
	var unknown []string
	for _, r := range refs {
		if _, ok := valid[r]; !ok {
			unknown = append(unknown, r)
		}
	}
	return unknown
}

// invalidRefs scans every string value in the deliverable for E<digits>
// tokens and returns those outside the valid set, sorted.
func invalidRefs(d *Deliverable, valid map[string]struct{}) []string {
	used := collectRefs(d)

	var bad []string
	for r := range used {
		if _, ok := valid[r]; !ok {
			bad = append(bad, r)
		}
	}
	sort.Strings(bad)
	return bad
}

// collectRefs walks the deliverable as a JSON value tree. Going through
// a marshal round-trip keeps the walk closed over the four JSON kinds
// that can appear (object, array, string, other) instead of reflecting
// over struct fields.
func collectRefs(d *Deliverable) map[string]struct{} {
	refs := make(map[string]struct{})

	data, err := json.Marshal(d)
	if err != nil {
		return refs
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return refs
	}

	var walk func(any)
	walk = func(node any) {
		switch v := node.(type) {
		case map[string]any:
			for _, val := range v {
				walk(val)
			}
		case []any:
			for _, val := range v {
				walk(val)
			}
		case string:
			for _, m := range refRe.FindAllStringSubmatch(v, -1) {
				refs["E"+m[1]] = struct{}{}
			}
		}
	}
	walk(tree)

	return refs
}

// copyDeliverable deep-copies a deliverable so healing never mutates the
// writer's original.
func copyDeliverable(d *Deliverable) *Deliverable {
	out := &Deliverable{
		ExecutiveSummary: d.ExecutiveSummary,
		ClientReadyEmail: d.ClientReadyEmail,
		ActionList:       make([]Action, len(d.ActionList)),
		Sources:          make([]Source, len(d.Sources)),
	}
	for i, a := range d.ActionList {
		a.EvidenceRefs = append([]string(nil), a.EvidenceRefs...)
		out.ActionList[i] = a
	}
	copy(out.Sources, d.Sources)
	return out
}
