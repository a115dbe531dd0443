package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/config"
)

type fakeChat struct {
	reply      string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeChat) Chat(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestWriter(chat ChatClient) *Writer {
	return NewWriter(chat, config.WriterConfig{MaxEvidenceItems: 8}, zap.NewNop())
}

const writerReply = `{
  "executive_summary": "Start with non-drug interventions per E1.",
  "client_ready_email": {"subject": "Care plan", "body": "Evidence E1 supports this."},
  "action_list": [
    {"action": "Adopt non-drug approach", "owner": "Clinic Lead", "due_date": "2026-09-15", "confidence": "high", "evidence_refs": ["E1"]}
  ],
  "sources": [{"evidence_ref": "E99", "citation": "bogus"}]
}`

func TestWrite_ShortCircuitsWithoutEvidence(t *testing.T) {
	chat := &fakeChat{reply: writerReply}
	w := newTestWriter(chat)

	out := w.Write(context.Background(), "task", ResearchResult{Status: StatusNotFound})
	assert.Equal(t, StatusNotFound, out.Status)
	assert.Equal(t, NotFoundMessage, out.Message)

	out = w.Write(context.Background(), "task", ResearchResult{Status: StatusFound})
	assert.Equal(t, StatusNotFound, out.Status)

	assert.Equal(t, 0, chat.calls, "generator must never run without evidence")
}

func TestWrite_SourcesRebuiltMechanically(t *testing.T) {
	chat := &fakeChat{reply: writerReply}
	w := newTestWriter(chat)

	out := w.Write(context.Background(), "task", foundResearch(2))
	require.Equal(t, StatusOK, out.Status)
	require.NotNil(t, out.Deliverable)

	// The model's bogus sources entry is discarded.
	require.Len(t, out.Deliverable.Sources, 2)
	assert.Equal(t, "E1", out.Deliverable.Sources[0].EvidenceRef)
	assert.Equal(t, "E2", out.Deliverable.Sources[1].EvidenceRef)
	assert.Contains(t, out.Deliverable.Sources[0].Citation, "guideline.pdf")
	assert.Contains(t, out.Deliverable.Sources[0].Citation, "chunk 0")
}

func TestWrite_EvidenceContextInPrompt(t *testing.T) {
	chat := &fakeChat{reply: writerReply}
	w := newTestWriter(chat)

	out := w.Write(context.Background(), "summarize the guideline", foundResearch(2))
	require.Equal(t, StatusOK, out.Status)

	assert.Contains(t, chat.lastUser, "[E1]")
	assert.Contains(t, chat.lastUser, "[E2]")
	assert.Contains(t, chat.lastUser, "guideline.pdf | page 1 | section 1.1 | chunk 0")
	assert.Contains(t, chat.lastUser, "summarize the guideline")
	assert.Contains(t, chat.lastSystem, "precise technical writer")
}

func TestWrite_EvidenceContextCapped(t *testing.T) {
	chat := &fakeChat{reply: writerReply}
	w := NewWriter(chat, config.WriterConfig{MaxEvidenceItems: 3}, zap.NewNop())

	out := w.Write(context.Background(), "task", foundResearch(6))
	require.Equal(t, StatusOK, out.Status)

	assert.Contains(t, chat.lastUser, "[E3]")
	assert.NotContains(t, chat.lastUser, "[E4]")
	assert.Len(t, out.Deliverable.Sources, 3)
}

func TestWrite_FencedJSONAccepted(t *testing.T) {
	chat := &fakeChat{reply: "```json\n" + writerReply + "\n```"}
	w := newTestWriter(chat)

	out := w.Write(context.Background(), "task", foundResearch(1))
	assert.Equal(t, StatusOK, out.Status)
}

func TestWrite_UnparseableOutputIsError(t *testing.T) {
	chat := &fakeChat{reply: "I am sorry, I cannot produce JSON today."}
	w := newTestWriter(chat)

	out := w.Write(context.Background(), "task", foundResearch(1))
	assert.Equal(t, StatusError, out.Status)
	assert.Contains(t, out.RawOutput, "cannot produce JSON")
	assert.Nil(t, out.Deliverable)
}

func TestWrite_ChatFailureIsError(t *testing.T) {
	chat := &fakeChat{err: assert.AnError}
	w := newTestWriter(chat)

	out := w.Write(context.Background(), "task", foundResearch(1))
	assert.Equal(t, StatusError, out.Status)
	assert.Contains(t, out.Message, "writer call failed")
}

func TestNormalizeDeliverable(t *testing.T) {
	t.Run("empty object gets full sentinel skeleton", func(t *testing.T) {
		d := normalizeDeliverable(map[string]any{})

		assert.Equal(t, NotFoundMessage, d.ExecutiveSummary)
		assert.Equal(t, NotFoundMessage, d.ClientReadyEmail.Subject)
		assert.Equal(t, NotFoundMessage, d.ClientReadyEmail.Body)
		assert.Empty(t, d.ActionList)
		assert.Empty(t, d.Sources)
	})

	t.Run("action defaults", func(t *testing.T) {
		d := normalizeDeliverable(map[string]any{
			"action_list": []any{
				map[string]any{"action": "do the thing"},
			},
		})

		require.Len(t, d.ActionList, 1)
		a := d.ActionList[0]
		assert.Equal(t, "do the thing", a.Action)
		assert.Equal(t, DefaultOwner, a.Owner)
		assert.Equal(t, "", a.DueDate)
		assert.Equal(t, "medium", a.Confidence)
		assert.Empty(t, a.EvidenceRefs)
	})

	t.Run("wrong-typed fields degrade to defaults", func(t *testing.T) {
		d := normalizeDeliverable(map[string]any{
			"executive_summary":  42,
			"client_ready_email": "not an object",
			"action_list": []any{
				"not an action",
				map[string]any{"action": "real", "evidence_refs": []any{"E1", 7}},
			},
		})

		assert.Equal(t, NotFoundMessage, d.ExecutiveSummary)
		assert.Equal(t, NotFoundMessage, d.ClientReadyEmail.Subject)
		require.Len(t, d.ActionList, 1)
		assert.Equal(t, []string{"E1"}, d.ActionList[0].EvidenceRefs)
	})
}
