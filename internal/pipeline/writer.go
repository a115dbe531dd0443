package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/config"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
	"github.com/fyrsmithlabs/briefd/internal/jsonx"
)

const writerSystemPrompt = "You are a precise technical writer. Follow instructions exactly."

const writerPromptTemplate = `You must write a client-ready deliverable using ONLY the EVIDENCE provided below.
If a required detail is missing in the evidence, write "Not found in sources." for that detail.
Do not use outside knowledge. Do not guess. Do not fabricate names, dates, or timelines.
The "owner" of each action must be a role description, never a person's name.
Every action must cite 1-3 evidence references (like "E1") or be omitted entirely.

Return ONLY valid JSON with this schema:
{
  "executive_summary": "max 150 words",
  "client_ready_email": {
    "subject": "...",
    "body": "..."
  },
  "action_list": [
    {
      "action": "...",
      "owner": "...",
      "due_date": "...",
      "confidence": "high|medium|low",
      "evidence_refs": ["E1","E4"]
    }
  ],
  "sources": [
    {
      "evidence_ref": "E1",
      "citation": "DocumentName | page X | section Y | chunk Z"
    }
  ]
}

EVIDENCE:
%s

USER TASK:
%s`

// Writer is the grounded generation stage. It never calls the model
// without evidence, and it never trusts the model's own source list.
type Writer struct {
	chat   ChatClient
	cfg    config.WriterConfig
	logger *zap.Logger
}

// NewWriter creates the draft stage.
func NewWriter(chat ChatClient, cfg config.WriterConfig, logger *zap.Logger) *Writer {
	return &Writer{chat: chat, cfg: cfg, logger: logger}
}

// Write drafts a deliverable for the task from the research result.
func (w *Writer) Write(ctx context.Context, task string, research ResearchResult) WriteResult {
	ctx, span := tracer.Start(ctx, "Writer.Write")
	defer span.End()

	// The generator is never invoked without grounding evidence.
	if research.Status != StatusFound || len(research.Evidence) == 0 {
		span.SetAttributes(attribute.Bool("short_circuit", true))
		return WriteResult{
			Status:  StatusNotFound,
			Message: NotFoundMessage,
		}
	}

	used := research.Evidence
	if len(used) > w.cfg.MaxEvidenceItems {
		used = used[:w.cfg.MaxEvidenceItems]
	}

	prompt := fmt.Sprintf(writerPromptTemplate, buildEvidenceContext(used), task)

	raw, err := w.chat.Chat(ctx, writerSystemPrompt, prompt)
	if err != nil {
		span.RecordError(err)
		return WriteResult{
			Status:  StatusError,
			Message: fmt.Sprintf("writer call failed: %v", err),
		}
	}

	obj, ok := jsonx.ExtractObject(raw)
	if !ok {
		w.logger.Warn("writer model did not return valid JSON", zap.Int("raw_len", len(raw)))
		return WriteResult{
			Status:    StatusError,
			Message:   "writer model did not return valid JSON",
			RawOutput: truncateRaw(raw),
		}
	}

	deliverable := normalizeDeliverable(obj)

	// Sources come from the evidence actually shown to the generator, in
	// the same order, so they are structurally valid no matter what the
	// model emitted.
	deliverable.Sources = make([]Source, len(used))
	for i, e := range used {
		deliverable.Sources[i] = Source{
			EvidenceRef: evidence.Ref(i + 1),
			Citation:    e.Citation(),
		}
	}

	span.SetAttributes(attribute.Int("actions", len(deliverable.ActionList)))

	return WriteResult{Status: StatusOK, Deliverable: deliverable}
}

// buildEvidenceContext renders evidence as labeled blocks:
//
//	[E1] doc | page 3 | section 2.1 | chunk 17
//	<text>
func buildEvidenceContext(items []evidence.Evidence) string {
	blocks := make([]string, len(items))
	for i, e := range items {
		blocks[i] = fmt.Sprintf("[%s] %s\n%s", evidence.Ref(i+1), e.Citation(), strings.TrimSpace(e.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// normalizeDeliverable fills structural gaps in the parsed generator
// output. It changes structure only, never content: missing fields get
// the sentinel or an empty value, nothing is invented.
func normalizeDeliverable(obj map[string]any) *Deliverable {
	d := &Deliverable{
		ExecutiveSummary: stringOr(obj["executive_summary"], NotFoundMessage),
		ClientReadyEmail: Email{Subject: NotFoundMessage, Body: NotFoundMessage},
		ActionList:       []Action{},
		Sources:          []Source{},
	}

	if email, ok := obj["client_ready_email"].(map[string]any); ok {
		d.ClientReadyEmail.Subject = stringOr(email["subject"], NotFoundMessage)
		d.ClientReadyEmail.Body = stringOr(email["body"], NotFoundMessage)
	}

	if list, ok := obj["action_list"].([]any); ok {
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			action := Action{
				Action:     stringOr(m["action"], NotFoundMessage),
				Owner:      stringOr(m["owner"], DefaultOwner),
				DueDate:    stringOr(m["due_date"], ""),
				Confidence: stringOr(m["confidence"], "medium"),
			}
			if refs, ok := m["evidence_refs"].([]any); ok {
				for _, r := range refs {
					if s, ok := r.(string); ok && s != "" {
						action.EvidenceRefs = append(action.EvidenceRefs, s)
					}
				}
			}
			d.ActionList = append(d.ActionList, action)
		}
	}

	return d
}

// stringOr returns v if it is a non-blank string, otherwise fallback.
func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}
