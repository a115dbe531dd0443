package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/briefd/internal/evidence"
)

func evidenceItems(n int) []evidence.Evidence {
	items := make([]evidence.Evidence, n)
	for i := range items {
		items[i] = evidence.Evidence{
			Idx:      i,
			Rank:     i + 1,
			Distance: 0.2,
			DocName:  "guideline.pdf",
			Page:     i + 1,
			Section:  "1.1",
			Text:     "Non-pharmacological interventions first-line",
		}
	}
	return items
}

func foundResearch(n int) ResearchResult {
	return ResearchResult{Status: StatusFound, Question: "q", Evidence: evidenceItems(n)}
}

func validDeliverable() *Deliverable {
	return &Deliverable{
		ExecutiveSummary: "Evidence supports starting with non-drug interventions.",
		ClientReadyEmail: Email{Subject: "Care plan update", Body: "See summary, grounded in E1."},
		ActionList: []Action{
			{
				Action:       "Recommend non-drug approach first",
				Owner:        "Clinic Lead",
				DueDate:      "2026-09-15",
				Confidence:   "high",
				EvidenceRefs: []string{"E1"},
			},
		},
		Sources: []Source{
			{EvidenceRef: "E1", Citation: "guideline.pdf | page 1 | section 1.1 | chunk 0"},
		},
	}
}

func okWriter(d *Deliverable) WriteResult {
	return WriteResult{Status: StatusOK, Deliverable: d}
}

func issueTypes(issues []Issue) []string {
	types := make([]string, len(issues))
	for i, issue := range issues {
		types[i] = issue.Type
	}
	return types
}

func TestVerify_CleanPass(t *testing.T) {
	out := Verify(okWriter(validDeliverable()), foundResearch(1))

	assert.Equal(t, StatusOK, out.Status)
	assert.Empty(t, out.Issues)
	require.NotNil(t, out.Deliverable)
}

func TestVerify_Preconditions(t *testing.T) {
	out := Verify(WriteResult{Status: StatusError}, foundResearch(1))
	assert.Equal(t, StatusBlocked, out.Status)

	out = Verify(okWriter(validDeliverable()), ResearchResult{Status: StatusNotFound})
	assert.Equal(t, StatusBlocked, out.Status)

	out = Verify(WriteResult{Status: StatusOK}, foundResearch(1))
	assert.Equal(t, StatusBlocked, out.Status)

	out = Verify(okWriter(validDeliverable()), ResearchResult{Status: StatusFound})
	assert.Equal(t, StatusBlocked, out.Status)
}

func TestVerify_SentinelSummaryWithEvidenceBlocks(t *testing.T) {
	d := validDeliverable()
	d.ExecutiveSummary = NotFoundMessage

	out := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, StatusBlocked, out.Status)
	assert.Contains(t, issueTypes(out.Issues), "invalid_not_found_executive_summary")
}

func TestVerify_SummaryTooLong(t *testing.T) {
	d := validDeliverable()
	long := ""
	for i := 0; i < 151; i++ {
		long += "word "
	}
	d.ExecutiveSummary = long

	out := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, StatusBlocked, out.Status)
	assert.Contains(t, issueTypes(out.Issues), "executive_summary_too_long")
}

func TestVerify_OutOfRangeRefBlocks(t *testing.T) {
	// E5 referenced with only 2 evidence items present.
	d := validDeliverable()
	d.ClientReadyEmail.Body = "Per E5, proceed as planned."

	out := Verify(okWriter(d), foundResearch(2))

	assert.Equal(t, StatusBlocked, out.Status)

	var found bool
	for _, issue := range out.Issues {
		if issue.Type == "invalid_evidence_ref" {
			found = true
			assert.Equal(t, SeverityError, issue.Severity)
			assert.Contains(t, issue.Detail, "E5")
		}
	}
	assert.True(t, found, "expected invalid_evidence_ref issue")

	// Blocked deliverables come back unmodified.
	assert.Equal(t, "Per E5, proceed as planned.", out.Deliverable.ClientReadyEmail.Body)
}

func TestVerify_MissingDueDateHealsWithWarning(t *testing.T) {
	d := validDeliverable()
	d.ActionList[0].DueDate = ""

	out := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, StatusOK, out.Status)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, "missing_due_date", out.Issues[0].Type)
	assert.Equal(t, SeverityWarning, out.Issues[0].Severity)

	assert.Equal(t, NotFoundMessage, out.Deliverable.ActionList[0].DueDate)

	// Healing happens on a copy, never on the writer's original.
	assert.Equal(t, "", d.ActionList[0].DueDate)
}

func TestVerify_EmptyActionListBlocks(t *testing.T) {
	d := validDeliverable()
	d.ActionList = nil

	out := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, StatusBlocked, out.Status)
	assert.Contains(t, issueTypes(out.Issues), "empty_action_list")
}

func TestVerify_ActionWithoutRefsBlocks(t *testing.T) {
	d := validDeliverable()
	d.ActionList[0].EvidenceRefs = nil

	out := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, StatusBlocked, out.Status)
	assert.Contains(t, issueTypes(out.Issues), "missing_evidence_refs")
}

func TestVerify_ActionWithUnknownRefsBlocks(t *testing.T) {
	d := validDeliverable()
	d.ActionList[0].EvidenceRefs = []string{"E1", "E9"}

	out := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, StatusBlocked, out.Status)
	assert.Contains(t, issueTypes(out.Issues), "unknown_evidence_refs")
}

func TestVerify_BadConfidenceIsWarningOnly(t *testing.T) {
	d := validDeliverable()
	d.ActionList[0].Confidence = "certain"

	out := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, StatusOK, out.Status)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, "bad_confidence_value", out.Issues[0].Type)
	assert.Equal(t, SeverityWarning, out.Issues[0].Severity)
}

func TestVerify_ConfidenceCaseInsensitive(t *testing.T) {
	d := validDeliverable()
	d.ActionList[0].Confidence = "HIGH"

	out := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, StatusOK, out.Status)
	assert.Empty(t, out.Issues)
}

func TestVerify_SentinelEmailWithEvidenceBlocks(t *testing.T) {
	d := validDeliverable()
	d.ClientReadyEmail.Subject = NotFoundMessage

	out := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, StatusBlocked, out.Status)
	assert.Contains(t, issueTypes(out.Issues), "invalid_not_found_email")
}

func TestVerify_MissingEmailPartsAreWarnings(t *testing.T) {
	d := validDeliverable()
	d.ClientReadyEmail = Email{}

	out := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, StatusOK, out.Status)
	types := issueTypes(out.Issues)
	assert.Contains(t, types, "missing_email_subject")
	assert.Contains(t, types, "missing_email_body")
}

func TestVerify_ValidRefSetMatchesEvidenceCount(t *testing.T) {
	// With 3 evidence items, E1..E3 pass and E4 fails.
	d := validDeliverable()
	d.ActionList[0].EvidenceRefs = []string{"E1", "E2", "E3"}
	out := Verify(okWriter(d), foundResearch(3))
	assert.Equal(t, StatusOK, out.Status)

	d = validDeliverable()
	d.ActionList[0].EvidenceRefs = []string{"E4"}
	out = Verify(okWriter(d), foundResearch(3))
	assert.Equal(t, StatusBlocked, out.Status)
}

func TestVerify_Deterministic(t *testing.T) {
	d := validDeliverable()
	d.ActionList[0].DueDate = ""
	d.ActionList[0].Confidence = "maybe"

	first := Verify(okWriter(d), foundResearch(1))
	second := Verify(okWriter(d), foundResearch(1))

	assert.Equal(t, first, second)
}
