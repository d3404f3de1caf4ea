package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

const (
	// MinTranscriptLength is the shortest transcript sent to the model
	MinTranscriptLength = 50
	// MaxTranscriptLength is where long transcripts are truncated
	MaxTranscriptLength = 50000

	truncationNotice = "\n\n[Transcript truncated due to length...]"
)

// Extractor turns meeting transcripts into candidate action items with an LLM
type Extractor struct {
	llmClient gollem.LLMClient
	now       func() time.Time
}

var _ interfaces.TaskExtractor = &Extractor{}

type Option func(*Extractor)

// WithClock overrides the current time used in the prompt
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

func New(llmClient gollem.LLMClient, opts ...Option) (*Extractor, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	e := &Extractor{
		llmClient: llmClient,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Extractor) Extract(ctx context.Context, text string) ([]*model.ExtractedTask, error) {
	if len(strings.TrimSpace(text)) < MinTranscriptLength {
		logging.From(ctx).Warn("transcript too short for task extraction", "length", len(text))
		return []*model.ExtractedTask{}, nil
	}

	if len(text) > MaxTranscriptLength {
		logging.From(ctx).Warn("transcript truncated for extraction",
			"original_length", len(text),
			"truncated_to", MaxTranscriptLength)
		text = truncate(text, MaxTranscriptLength) + truncationNotice
	}

	session, err := e.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(responseSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, model.NewCapabilityError(model.CapabilityExtraction,
			goerr.Wrap(err, "failed to create LLM session"))
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildUserPrompt(text, e.now())))
	if err != nil {
		return nil, model.NewCapabilityError(model.CapabilityExtraction,
			goerr.Wrap(err, "failed to generate content from LLM"))
	}
	if len(resp.Texts) == 0 {
		return nil, model.NewCapabilityError(model.CapabilityExtraction, goerr.New("empty LLM response"))
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return nil, model.NewCapabilityError(model.CapabilityExtraction,
			goerr.Wrap(err, "failed to parse LLM response", goerr.V("response", resp.Texts[0])))
	}

	tasks := make([]*model.ExtractedTask, 0, len(parsed.Tasks))
	for _, t := range parsed.Tasks {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		tasks = append(tasks, &model.ExtractedTask{
			Title:        title,
			Description:  strings.TrimSpace(t.Description),
			PriorityHint: strings.TrimSpace(t.Priority),
			AssigneeHint: normalizeAssignee(t.Assignee),
			DueDateHint:  normalizeDueDate(t.DueDate),
			SourceText:   strings.TrimSpace(t.SourceText),
			Confidence:   t.Confidence,
		})
	}

	logging.From(ctx).Info("tasks extracted", "task_count", len(tasks))
	return tasks, nil
}

// truncate cuts s to at most n bytes without splitting a multi-byte rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}

func normalizeAssignee(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "unassigned", "none", "n/a":
		return ""
	}
	return s
}

func normalizeDueDate(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "TBD", "NONE", "N/A":
		return ""
	}
	return s
}

// ParseDueDate parses a due date hint in ISO-8601 form. Anything else yields nil.
func ParseDueDate(hint string) *time.Time {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, hint); err == nil {
			d := t.UTC()
			return &d
		}
	}
	return nil
}

func buildUserPrompt(transcript string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("Meeting Transcript:\n---\n")
	sb.WriteString(transcript)
	sb.WriteString("\n---\n\n")
	sb.WriteString("Extract all action items from this meeting transcript. If there are no actionable tasks, return an empty list.\n\n")
	fmt.Fprintf(&sb, "Today's date is: %s\n", now.Format(time.DateOnly))
	return sb.String()
}
