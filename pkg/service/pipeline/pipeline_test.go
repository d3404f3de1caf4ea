package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/repository/memory"
	"github.com/secmon-lab/meetscribe/pkg/service/pii"
	"github.com/secmon-lab/meetscribe/pkg/service/pipeline"
	"github.com/secmon-lab/meetscribe/pkg/service/storage"
)

type mockTranscriber struct {
	mu     sync.Mutex
	calls  int
	result *model.Transcription
	err    error
	block  chan struct{}
}

func (m *mockTranscriber) Transcribe(ctx context.Context, path, language string) (*model.Transcription, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.block != nil {
		<-m.block
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockExtractor struct {
	tasks []*model.ExtractedTask
	err   error
	input string
}

func (m *mockExtractor) Extract(ctx context.Context, text string) ([]*model.ExtractedTask, error) {
	m.input = text
	if m.err != nil {
		return nil, m.err
	}
	return m.tasks, nil
}

// mockEmbedder maps texts containing "report" close to each other
type mockEmbedder struct{}

func (mockEmbedder) vector(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "report") {
		return []float32{1, 0.05, 0}
	}
	return []float32{0, 1, 0}
}

func (m mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.vector(text), nil
}

func (m mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, s := range texts {
		out[i] = m.vector(s)
	}
	return out, nil
}

type recordingBus struct {
	mu      sync.Mutex
	updates []*model.StatusUpdate
	topics  []string
}

func (b *recordingBus) Publish(ctx context.Context, topic string, event *model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	if strings.HasPrefix(topic, "meeting:") {
		b.updates = append(b.updates, event.Data.(*model.StatusUpdate))
	}
}

type fixture struct {
	repo        *memory.Memory
	transcriber *mockTranscriber
	extractor   *mockExtractor
	bus         *recordingBus
	pipeline    *pipeline.Pipeline
	meeting     *model.Meeting
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := memory.New()
	store, err := storage.NewLocal(t.TempDir())
	gt.NoError(t, err).Required()
	_, err = store.Put(ctx, "u1/audio.mp3", strings.NewReader("fake audio"))
	gt.NoError(t, err).Required()

	conf := 0.9
	f := &fixture{
		repo: repo,
		transcriber: &mockTranscriber{result: &model.Transcription{
			Language: "en",
			Segments: []*model.TranscriptionSegment{
				{Text: "Alice will send the Q3 report.", StartTime: 0, EndTime: 3, Confidence: &conf, Speaker: "SPEAKER_00"},
				{Text: "Mail it to alice@example.com by Friday.", StartTime: 3, EndTime: 6, Speaker: "SPEAKER_01"},
				{Text: "Bob books the venue.", StartTime: 6, EndTime: 8},
			},
		}},
		extractor: &mockExtractor{tasks: []*model.ExtractedTask{
			{Title: "Send Q3 report", PriorityHint: "high", AssigneeHint: "Alice", DueDateHint: "2026-10-16", SourceText: "Alice will send the Q3 report."},
			{Title: "Book venue", PriorityHint: "whenever", AssigneeHint: "Bob"},
		}},
		bus: &recordingBus{},
	}

	f.pipeline = pipeline.New(repo, store, f.transcriber, pii.New(), f.extractor, mockEmbedder{},
		pipeline.WithNotificationBus(f.bus))

	f.meeting, err = repo.Meeting().Create(ctx, &model.Meeting{
		UserID: model.UserID("u1"),
		Title:  "Weekly sync",
		Status: types.MeetingStatusPending,
		Audio:  model.AudioFile{Key: "u1/audio.mp3", Filename: "audio.mp3", Format: "mp3"},
	})
	gt.NoError(t, err).Required()
	return f
}

func byTitle(tasks []*model.Task) map[string]*model.Task {
	m := make(map[string]*model.Task, len(tasks))
	for _, t := range tasks {
		m[t.Title] = t
	}
	return m
}

func (f *fixture) reload(t *testing.T) *model.Meeting {
	t.Helper()
	m, err := f.repo.Meeting().Get(context.Background(), f.meeting.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, m).NotNil().Required()
	return m
}

func TestStart_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	gt.NoError(t, f.pipeline.Start(ctx, f.meeting.ID)).Required()

	m := f.reload(t)
	gt.Value(t, m.Status).Equal(types.MeetingStatusCompleted)
	gt.Number(t, m.Progress).Equal(100)
	gt.Value(t, m.StatusMessage).Equal("Processing complete!")
	gt.Value(t, m.ProcessingStartedAt).NotNil()
	gt.Value(t, m.ProcessingCompletedAt).NotNil()

	t.Run("progress follows the steps and never decreases", func(t *testing.T) {
		var progress []int
		var statuses []types.MeetingStatus
		for _, u := range f.bus.updates {
			progress = append(progress, u.Progress)
			statuses = append(statuses, u.Status)
		}
		gt.Value(t, progress).Equal([]int{5, 20, 50, 70, 85, 100})
		gt.Value(t, statuses).Equal([]types.MeetingStatus{
			types.MeetingStatusProcessing,
			types.MeetingStatusTranscribing,
			types.MeetingStatusProcessing,
			types.MeetingStatusExtracting,
			types.MeetingStatusProcessing,
			types.MeetingStatusCompleted,
		})
		gt.Bool(t, len(f.bus.topics) == 2*len(f.bus.updates)).True()
	})

	t.Run("transcript is stored redacted", func(t *testing.T) {
		tr, err := f.repo.Transcript().GetByMeeting(ctx, f.meeting.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, tr).NotNil().Required()
		gt.Bool(t, tr.IsRedacted).True()
		gt.String(t, tr.FullText).NotContains("alice@example.com")
		gt.String(t, tr.FullText).Contains("[EMAIL_REDACTED]")
		gt.Value(t, tr.RedactionHash).Equal(pii.New().Fingerprint(
			"Alice will send the Q3 report. Mail it to alice@example.com by Friday. Bob books the venue."))
		gt.Array(t, tr.Embedding).Length(3)

		gt.Array(t, tr.Segments).Length(3).Required()
		for i, s := range tr.Segments {
			gt.Number(t, s.SequenceNumber).Equal(i)
		}
		gt.Value(t, tr.Segments[1].Text).Equal("Mail it to [EMAIL_REDACTED] by Friday.")
		gt.Value(t, tr.Segments[0].SpeakerLabel).Equal("SPEAKER_00")
		gt.Value(t, *tr.Confidence).Equal(0.9)

		// extraction only sees redacted text
		gt.String(t, f.extractor.input).NotContains("alice@example.com")
	})

	t.Run("tasks are persisted as drafts", func(t *testing.T) {
		tasks, err := f.repo.Task().ListByMeeting(ctx, f.meeting.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, tasks).Length(2).Required()

		report := byTitle(tasks)["Send Q3 report"]
		gt.Value(t, report).NotNil().Required()
		gt.Value(t, report.Title).Equal("Send Q3 report")
		gt.Value(t, report.Status).Equal(types.TaskStatusDraft)
		gt.Value(t, report.Priority).Equal(types.TaskPriorityHigh)
		gt.Value(t, report.AssigneeName).Equal("Alice")
		gt.Value(t, report.UserID).Equal(f.meeting.UserID)
		gt.Value(t, report.DueDate).NotNil().Required()
		gt.Value(t, report.DueDate.Format(time.DateOnly)).Equal("2026-10-16")
		gt.Array(t, report.Embedding).Length(3)
		gt.Bool(t, report.IsDuplicate).False()

		gt.Value(t, byTitle(tasks)["Book venue"].Priority).Equal(types.TaskPriorityMedium)
	})
}

func TestStart_DuplicateOfPriorMeeting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	prior, err := f.repo.Task().Create(ctx, &model.Task{
		MeetingID: model.NewMeetingID(),
		UserID:    f.meeting.UserID,
		Title:     "Send the report",
		Status:    types.TaskStatusPending,
		Priority:  types.TaskPriorityMedium,
		Embedding: []float32{1, 0, 0},
	})
	gt.NoError(t, err).Required()

	gt.NoError(t, f.pipeline.Start(ctx, f.meeting.ID)).Required()

	tasks, err := f.repo.Task().ListByMeeting(ctx, f.meeting.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, tasks).Length(2).Required()
	titled := byTitle(tasks)
	gt.Bool(t, titled["Send Q3 report"].IsDuplicate).True()
	gt.Value(t, titled["Send Q3 report"].DuplicateOfID).Equal(prior.ID)
	gt.Value(t, titled["Send Q3 report"].SimilarityScore).NotNil()
	gt.Bool(t, titled["Book venue"].IsDuplicate).False()

	stored, err := f.repo.Task().Get(ctx, prior.ID)
	gt.NoError(t, err).Required()
	gt.Bool(t, stored.IsDuplicate).False()
}

func TestStart_RerunKeepsEarlierTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	gt.NoError(t, f.repo.Meeting().UpdateProgress(ctx, f.meeting.ID, &model.MeetingProgress{
		Status:       types.MeetingStatusFailed,
		Progress:     85,
		ErrorMessage: "storage unavailable",
	})).Required()

	draft, err := f.repo.Task().Create(ctx, &model.Task{
		MeetingID: f.meeting.ID,
		UserID:    f.meeting.UserID,
		Title:     "Send Q3 report",
		Status:    types.TaskStatusDraft,
		Priority:  types.TaskPriorityMedium,
		Embedding: []float32{1, 0.05, 0},
	})
	gt.NoError(t, err).Required()

	later, err := f.repo.Task().Create(ctx, &model.Task{
		MeetingID:     model.NewMeetingID(),
		UserID:        f.meeting.UserID,
		Title:         "Send the Q3 report again",
		Status:        types.TaskStatusPending,
		Priority:      types.TaskPriorityMedium,
		IsDuplicate:   true,
		DuplicateOfID: draft.ID,
	})
	gt.NoError(t, err).Required()

	gt.NoError(t, f.pipeline.Start(ctx, f.meeting.ID)).Required()

	kept, err := f.repo.Task().Get(ctx, draft.ID)
	gt.NoError(t, err).Required()
	gt.Bool(t, kept != nil).True()

	other, err := f.repo.Task().Get(ctx, later.ID)
	gt.NoError(t, err).Required()
	target, err := f.repo.Task().Get(ctx, other.DuplicateOfID)
	gt.NoError(t, err).Required()
	gt.Bool(t, target != nil).True()

	tasks, err := f.repo.Task().ListByMeeting(ctx, f.meeting.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, tasks).Length(3).Required()
	for _, task := range tasks {
		if task.ID != draft.ID && task.Title == "Send Q3 report" {
			gt.Bool(t, task.IsDuplicate).True()
			gt.Value(t, task.DuplicateOfID).Equal(draft.ID)
		}
	}
}

func TestStart_CompletedIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gt.NoError(t, f.pipeline.Start(ctx, f.meeting.ID)).Required()

	before := f.reload(t)
	events := len(f.bus.updates)

	gt.NoError(t, f.pipeline.Start(ctx, f.meeting.ID)).Required()

	after := f.reload(t)
	gt.Value(t, after.UpdatedAt).Equal(before.UpdatedAt)
	gt.Number(t, len(f.bus.updates)).Equal(events)
	gt.Number(t, f.transcriber.calls).Equal(1)
}

func TestStart_InFlightIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	gt.NoError(t, f.repo.Meeting().UpdateProgress(ctx, f.meeting.ID, &model.MeetingProgress{
		Status:   types.MeetingStatusTranscribing,
		Progress: 20,
	})).Required()

	err := f.pipeline.Start(ctx, f.meeting.ID)
	gt.Error(t, err).Is(pipeline.ErrMeetingInFlight)
	gt.Error(t, err).Is(model.ErrConflict)
	gt.Number(t, f.transcriber.calls).Equal(0)
}

func TestStart_ConcurrentRunIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.transcriber.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.pipeline.Start(ctx, f.meeting.ID) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.transcriber.mu.Lock()
		calls := f.transcriber.calls
		f.transcriber.mu.Unlock()
		if calls > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	err := f.pipeline.Start(ctx, f.meeting.ID)
	gt.Error(t, err).Is(pipeline.ErrMeetingInFlight)

	close(f.transcriber.block)
	gt.NoError(t, <-done)
}

func TestStart_TranscriptionFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.transcriber.err = model.NewCapabilityError(model.CapabilityTranscription, errors.New("provider down"))

	err := f.pipeline.Start(ctx, f.meeting.ID)
	gt.Error(t, err).Is(model.ErrExternalCapability)

	m := f.reload(t)
	gt.Value(t, m.Status).Equal(types.MeetingStatusFailed)
	gt.Number(t, m.RetryCount).Equal(1)
	gt.Number(t, m.Progress).Equal(20)
	gt.String(t, m.ErrorMessage).Contains("provider down")

	last := f.bus.updates[len(f.bus.updates)-1]
	gt.Value(t, last.Status).Equal(types.MeetingStatusFailed)

	tr, err := f.repo.Transcript().GetByMeeting(ctx, f.meeting.ID)
	gt.NoError(t, err).Required()
	gt.Bool(t, tr == nil).True()

	t.Run("a failed meeting can be restarted", func(t *testing.T) {
		f.transcriber.err = nil
		gt.NoError(t, f.pipeline.Start(ctx, f.meeting.ID)).Required()

		m := f.reload(t)
		gt.Value(t, m.Status).Equal(types.MeetingStatusCompleted)
		gt.Number(t, m.RetryCount).Equal(1)
	})
}

func TestStart_ExtractionFailureKeepsTranscript(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.extractor.err = model.NewCapabilityError(model.CapabilityExtraction, errors.New("model overloaded"))

	err := f.pipeline.Start(ctx, f.meeting.ID)
	gt.Error(t, err).Is(model.ErrExternalCapability)

	m := f.reload(t)
	gt.Value(t, m.Status).Equal(types.MeetingStatusFailed)
	gt.Number(t, m.Progress).Equal(70)

	tr, err := f.repo.Transcript().GetByMeeting(ctx, f.meeting.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, tr).NotNil()

	t.Run("retry reuses the stored transcript", func(t *testing.T) {
		f.extractor.err = nil
		f.bus.updates = nil
		gt.NoError(t, f.pipeline.Start(ctx, f.meeting.ID)).Required()
		gt.Number(t, f.transcriber.calls).Equal(1)

		// progress resumes from the failed run instead of going back
		for _, u := range f.bus.updates {
			gt.Number(t, u.Progress).GreaterOrEqual(70)
		}

		tasks, err := f.repo.Task().ListByMeeting(ctx, f.meeting.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, tasks).Length(2)
	})
}

func TestStart_NotFound(t *testing.T) {
	f := newFixture(t)
	err := f.pipeline.Start(context.Background(), model.NewMeetingID())
	gt.Error(t, err).Is(model.ErrNotFound)
}

func TestJob(t *testing.T) {
	f := newFixture(t)

	job := f.pipeline.Job(f.meeting.ID)
	gt.Value(t, job.Key).Equal(string(f.meeting.ID))
	gt.Number(t, job.MaxRetries).Equal(3)
	gt.NoError(t, job.Run(context.Background())).Required()
	gt.Value(t, f.reload(t).Status).Equal(types.MeetingStatusCompleted)

	t.Run("missing meeting is not retried", func(t *testing.T) {
		gt.NoError(t, f.pipeline.Job(model.NewMeetingID()).Run(context.Background()))
	})

	t.Run("capability failure is retried", func(t *testing.T) {
		f := newFixture(t)
		f.transcriber.err = errors.New("boom")
		gt.Value(t, f.pipeline.Job(f.meeting.ID).Run(context.Background())).NotNil()
	})
}

func TestSteps(t *testing.T) {
	steps := pipeline.Steps()
	for i := 1; i < len(steps); i++ {
		gt.Bool(t, steps[i].Progress > steps[i-1].Progress).True()
	}
	gt.Value(t, steps[len(steps)-1].Status).Equal(types.MeetingStatusCompleted)
}

func TestRecoverInterrupted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	gt.NoError(t, f.repo.Meeting().UpdateProgress(ctx, f.meeting.ID, &model.MeetingProgress{
		Status:        types.MeetingStatusTranscribing,
		StatusMessage: "Transcribing audio",
		Progress:      25,
	})).Required()

	done, err := f.repo.Meeting().Create(ctx, &model.Meeting{
		UserID: f.meeting.UserID,
		Title:  "Retro",
		Status: types.MeetingStatusCompleted,
	})
	gt.NoError(t, err).Required()

	// Stuck meetings cannot be started until they are recovered
	gt.Error(t, f.pipeline.Start(ctx, f.meeting.ID)).Is(pipeline.ErrMeetingInFlight)

	n, err := f.pipeline.RecoverInterrupted(ctx, time.Now().Add(time.Second))
	gt.NoError(t, err).Required()
	gt.Number(t, n).Equal(1)

	m := f.reload(t)
	gt.Value(t, m.Status).Equal(types.MeetingStatusFailed)
	gt.Value(t, m.ErrorMessage).Equal("interrupted")
	gt.Number(t, m.Progress).Equal(25)

	untouched, err := f.repo.Meeting().Get(ctx, done.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, untouched.Status).Equal(types.MeetingStatusCompleted)

	gt.NoError(t, f.pipeline.Start(ctx, f.meeting.ID)).Required()
	gt.Value(t, f.reload(t).Status).Equal(types.MeetingStatusCompleted)
}

func TestRecoverInterrupted_SkipsNewerMeetings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	gt.NoError(t, f.repo.Meeting().UpdateProgress(ctx, f.meeting.ID, &model.MeetingProgress{
		Status:   types.MeetingStatusExtracting,
		Progress: 70,
	})).Required()

	n, err := f.pipeline.RecoverInterrupted(ctx, f.meeting.CreatedAt.Add(-time.Minute))
	gt.NoError(t, err).Required()
	gt.Number(t, n).Equal(0)
	gt.Value(t, f.reload(t).Status).Equal(types.MeetingStatusExtracting)
}
