package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/service/dedup"
	"github.com/secmon-lab/meetscribe/pkg/service/extraction"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

// ErrMeetingInFlight is returned when a meeting is already being processed
var ErrMeetingInFlight = fmt.Errorf("meeting is already being processed: %w", model.ErrConflict)

// Pipeline drives a meeting from uploaded audio to persisted, deduplicated draft tasks.
// Runs of the same meeting are mutually exclusive within one process; the scheduler
// keys jobs by meeting for exclusion across workers.
type Pipeline struct {
	repo        interfaces.Repository
	storage     interfaces.Storage
	transcriber interfaces.Transcriber
	redactor    interfaces.PIIRedactor
	extractor   interfaces.TaskExtractor
	embedder    interfaces.Embedder
	dedup       *dedup.Engine
	bus         interfaces.NotificationBus
	language    string
	maxRetries  int
	now         func() time.Time
	locks       *keyedLock
}

type Option func(*Pipeline)

func WithNotificationBus(bus interfaces.NotificationBus) Option {
	return func(p *Pipeline) {
		p.bus = bus
	}
}

// WithLanguage sets the language hint passed to the transcriber
func WithLanguage(lang string) Option {
	return func(p *Pipeline) {
		p.language = lang
	}
}

// WithMaxRetries sets the retry count of scheduled jobs
func WithMaxRetries(n int) Option {
	return func(p *Pipeline) {
		p.maxRetries = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func New(
	repo interfaces.Repository,
	storage interfaces.Storage,
	transcriber interfaces.Transcriber,
	redactor interfaces.PIIRedactor,
	extractor interfaces.TaskExtractor,
	embedder interfaces.Embedder,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		repo:        repo,
		storage:     storage,
		transcriber: transcriber,
		redactor:    redactor,
		extractor:   extractor,
		embedder:    embedder,
		dedup:       dedup.New(repo.Task(), embedder),
		bus:         nopBus{},
		maxRetries:  3,
		now:         time.Now,
		locks:       newKeyedLock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type nopBus struct{}

func (nopBus) Publish(ctx context.Context, topic string, event *model.Event) {}

// Job wraps Start for the scheduler. Missing meetings and invalid input are not retried.
func (p *Pipeline) Job(meetingID model.MeetingID) *interfaces.Job {
	return &interfaces.Job{
		Name:       "process_meeting",
		Key:        string(meetingID),
		MaxRetries: p.maxRetries,
		Run: func(ctx context.Context) error {
			err := p.Start(ctx, meetingID)
			if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrValidation) {
				logging.From(ctx).Warn("meeting processing will not be retried",
					"meeting_id", meetingID, "error", err.Error())
				return nil
			}
			return err
		},
	}
}

// run holds the state of one pipeline execution
type run struct {
	meeting    *model.Meeting
	progress   int
	transcript *model.Transcript
}

// Start processes the meeting. Completed meetings are left untouched; meetings in an
// intermediate state are rejected with ErrMeetingInFlight.
func (p *Pipeline) Start(ctx context.Context, meetingID model.MeetingID) error {
	if !p.locks.TryLock(string(meetingID)) {
		return goerr.Wrap(ErrMeetingInFlight, "meeting is locked", goerr.V("meeting_id", meetingID))
	}
	defer p.locks.Unlock(string(meetingID))

	meeting, err := p.repo.Meeting().Get(ctx, meetingID)
	if err != nil {
		return goerr.Wrap(err, "failed to get meeting", goerr.V("meeting_id", meetingID))
	}
	if meeting == nil {
		return goerr.Wrap(model.ErrNotFound, "meeting not found", goerr.V("meeting_id", meetingID))
	}

	if meeting.Status == types.MeetingStatusCompleted {
		logging.From(ctx).Info("meeting already processed", "meeting_id", meetingID)
		return nil
	}
	if !meeting.Status.CanStart() {
		return goerr.Wrap(ErrMeetingInFlight, "meeting is being processed",
			goerr.V("meeting_id", meetingID), goerr.V("status", meeting.Status))
	}

	ctx = logging.With(ctx, logging.From(ctx).With("meeting_id", meetingID))
	// a restarted meeting resumes from its last persisted progress so it never goes back
	r := &run{meeting: meeting, progress: meeting.Progress}

	if err := p.execute(ctx, r); err != nil {
		p.fail(ctx, r, err)
		return err
	}
	return nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	logger := logging.From(ctx)
	started := p.now().UTC()

	if err := p.advance(ctx, r, StepPrepare, func(mp *model.MeetingProgress) {
		mp.ProcessingStartedAt = &started
	}); err != nil {
		return err
	}

	transcript, err := p.repo.Transcript().GetByMeeting(ctx, r.meeting.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to get transcript")
	}

	if transcript != nil && transcript.IsRedacted {
		logger.Info("reusing stored transcript", "transcript_id", transcript.ID)
		if err := p.advance(ctx, r, StepTranscribe, nil); err != nil {
			return err
		}
		if err := p.advance(ctx, r, StepRedact, nil); err != nil {
			return err
		}
	} else {
		transcript, err = p.transcribe(ctx, r)
		if err != nil {
			return err
		}
	}
	r.transcript = transcript

	if err := p.advance(ctx, r, StepExtract, nil); err != nil {
		return err
	}
	extracted, err := p.extractor.Extract(ctx, transcript.FullText)
	if err != nil {
		return goerr.Wrap(err, "failed to extract tasks")
	}

	if err := p.advance(ctx, r, StepPersist, nil); err != nil {
		return err
	}
	if err := p.persistTasks(ctx, r, extracted); err != nil {
		return err
	}
	p.embedTranscript(ctx, transcript)

	completed := p.now().UTC()
	if err := p.advance(ctx, r, StepDone, func(mp *model.MeetingProgress) {
		mp.ProcessingCompletedAt = &completed
	}); err != nil {
		return err
	}

	logger.Info("meeting processed",
		"tasks", len(extracted),
		"duration", completed.Sub(started).String())
	return nil
}

// transcribe runs speech-to-text and redaction, then stores the redacted transcript.
// The plaintext never leaves this function.
func (p *Pipeline) transcribe(ctx context.Context, r *run) (*model.Transcript, error) {
	if err := p.advance(ctx, r, StepTranscribe, nil); err != nil {
		return nil, err
	}

	if r.meeting.Audio.Key == "" {
		return nil, goerr.Wrap(model.ErrValidation, "meeting has no audio")
	}
	path, release, err := p.storage.Path(ctx, r.meeting.Audio.Key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open audio", goerr.V("key", r.meeting.Audio.Key))
	}
	defer release()

	transcription, err := p.transcriber.Transcribe(ctx, path, p.language)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to transcribe audio")
	}

	if err := p.advance(ctx, r, StepRedact, nil); err != nil {
		return nil, err
	}

	doc := assemble(transcription)
	redaction, err := p.redactor.Redact(ctx, doc.text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to redact transcript")
	}

	transcript := &model.Transcript{
		ID:            model.NewTranscriptID(),
		MeetingID:     r.meeting.ID,
		FullText:      redaction.RedactedText,
		Language:      transcription.Language,
		Confidence:    averageConfidence(transcription.Segments),
		WordCount:     len(strings.Fields(redaction.RedactedText)),
		IsRedacted:    true,
		RedactionHash: redaction.OriginalFingerprint,
		Segments:      doc.redactSegments(redaction.Entities),
	}

	created, err := p.repo.Transcript().Create(ctx, transcript)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store transcript")
	}
	return created, nil
}

func (p *Pipeline) persistTasks(ctx context.Context, r *run, extracted []*model.ExtractedTask) error {
	logger := logging.From(ctx)

	// Tasks of an earlier run stay in place; dedup marks re-extracted ones against them
	if len(extracted) == 0 {
		return nil
	}

	texts := make([]string, len(extracted))
	for i, e := range extracted {
		texts[i] = dedup.BuildText(e.Title, e.Description)
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		logger.Warn("failed to embed extracted tasks, duplicate check degraded", "error", err.Error())
		vectors = nil
	}

	duplicates := 0
	for i, e := range extracted {
		task := newDraftTask(r.meeting, e)
		if vectors != nil {
			task.Embedding = vectors[i]
		}

		created, err := p.repo.Task().Create(ctx, task)
		if err != nil {
			return goerr.Wrap(err, "failed to store task", goerr.V("title", task.Title))
		}

		hadEmbedding := len(created.Embedding) > 0
		candidates := p.dedup.Check(ctx, created)
		// Check may have embedded the task itself
		if len(candidates) > 0 || (!hadEmbedding && len(created.Embedding) > 0) {
			if _, err := p.repo.Task().Update(ctx, created); err != nil {
				return goerr.Wrap(err, "failed to update task", goerr.V("task_id", created.ID))
			}
		}
		if len(candidates) > 0 {
			duplicates++
		}
	}

	logger.Info("tasks persisted", "count", len(extracted), "duplicates", duplicates)
	return nil
}

func newDraftTask(meeting *model.Meeting, e *model.ExtractedTask) *model.Task {
	task := &model.Task{
		ID:                   model.NewTaskID(),
		MeetingID:            meeting.ID,
		UserID:               meeting.UserID,
		Title:                e.Title,
		Description:          e.Description,
		AssigneeName:         e.AssigneeHint,
		Priority:             types.NormalizeTaskPriority(e.PriorityHint),
		DueDateText:          e.DueDateHint,
		DueDate:              extraction.ParseDueDate(e.DueDateHint),
		Status:               types.TaskStatusDraft,
		SourceText:           e.SourceText,
		ExtractionConfidence: e.Confidence,
	}
	return task
}

// embedTranscript stores the vector of the redacted text. Failure does not fail the run.
func (p *Pipeline) embedTranscript(ctx context.Context, t *model.Transcript) {
	if len(t.Embedding) > 0 {
		return
	}
	v, err := p.embedder.Embed(ctx, t.FullText)
	if err != nil {
		logging.From(ctx).Warn("failed to embed transcript", "error", err.Error())
		return
	}
	if err := p.repo.Transcript().UpdateEmbedding(ctx, t.ID, v); err != nil {
		logging.From(ctx).Warn("failed to store transcript embedding", "error", err.Error())
		return
	}
	t.Embedding = v
}

// advance persists the step's state, then notifies subscribers
func (p *Pipeline) advance(ctx context.Context, r *run, step Step, mutate func(*model.MeetingProgress)) error {
	progress := max(step.Progress, r.progress)
	mp := &model.MeetingProgress{
		Status:        step.Status,
		StatusMessage: step.Message,
		Progress:      progress,
	}
	if mutate != nil {
		mutate(mp)
	}

	if err := p.repo.Meeting().UpdateProgress(ctx, r.meeting.ID, mp); err != nil {
		return goerr.Wrap(err, "failed to update meeting progress", goerr.V("step", step.Name))
	}
	mp.Apply(r.meeting)
	r.progress = progress

	logging.From(ctx).Debug("meeting step", "step", step.Name, "progress", progress)
	p.notify(ctx, r.meeting)
	return nil
}

// fail marks the meeting failed and counts the attempt. Progress stays where it was.
func (p *Pipeline) fail(ctx context.Context, r *run, cause error) {
	retries := r.meeting.RetryCount + 1
	mp := &model.MeetingProgress{
		Status:        types.MeetingStatusFailed,
		StatusMessage: failedMessage,
		Progress:      r.progress,
		ErrorMessage:  errorMessage(cause),
		RetryCount:    &retries,
	}

	logging.From(ctx).Error("meeting processing failed",
		"error", cause.Error(),
		"code", model.ErrorCode(cause),
		"retry_count", retries)

	if err := p.repo.Meeting().UpdateProgress(ctx, r.meeting.ID, mp); err != nil {
		logging.From(ctx).Error("failed to record meeting failure", "error", err.Error())
		return
	}
	mp.Apply(r.meeting)
	p.notify(ctx, r.meeting)
}

func (p *Pipeline) notify(ctx context.Context, m *model.Meeting) {
	event := &model.Event{
		Event: model.EventStatusUpdate,
		Data: &model.StatusUpdate{
			MeetingID: m.ID,
			Status:    m.Status,
			Message:   m.StatusMessage,
			Progress:  m.Progress,
		},
	}
	p.bus.Publish(ctx, model.MeetingTopic(m.ID), event)
	p.bus.Publish(ctx, model.UserTopic(m.UserID), event)
}

// errorMessage is the user-facing reason stored on the meeting
func errorMessage(err error) string {
	var ce *model.CapabilityError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return err.Error()
}
