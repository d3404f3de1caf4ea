package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/repository/memory"
	"github.com/secmon-lab/meetscribe/pkg/service/storage"
	"github.com/secmon-lab/meetscribe/pkg/usecase"
)

type mockScheduler struct {
	mu   sync.Mutex
	jobs []*interfaces.Job
}

func (s *mockScheduler) Schedule(ctx context.Context, job *interfaces.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

type mockProcessor struct{}

func (mockProcessor) Job(id model.MeetingID) *interfaces.Job {
	return &interfaces.Job{
		Name: "process_meeting",
		Key:  string(id),
		Run:  func(ctx context.Context) error { return nil },
	}
}

type enqueued struct {
	taskID        model.TaskID
	integrationID model.IntegrationID
}

type mockSyncer struct {
	calls []enqueued
}

func (s *mockSyncer) Enqueue(ctx context.Context, taskID model.TaskID, integrationID model.IntegrationID) error {
	s.calls = append(s.calls, enqueued{taskID: taskID, integrationID: integrationID})
	return nil
}

type mockAudio struct {
	duration float64
}

func (m *mockAudio) Duration(ctx context.Context, path string) (float64, error) {
	return m.duration, nil
}

func (m *mockAudio) Split(ctx context.Context, path string, window float64) ([]*interfaces.AudioWindow, func(), error) {
	return nil, func() {}, nil
}

type fixture struct {
	repo      *memory.Memory
	storage   *storage.Local
	scheduler *mockScheduler
	syncer    *mockSyncer
	uc        *usecase.UseCases
}

func newFixture(t *testing.T, opts ...usecase.Option) *fixture {
	t.Helper()

	store, err := storage.NewLocal(t.TempDir())
	gt.NoError(t, err).Required()

	f := &fixture{
		repo:      memory.New(),
		storage:   store,
		scheduler: &mockScheduler{},
		syncer:    &mockSyncer{},
	}
	base := []usecase.Option{
		usecase.WithStorage(store),
		usecase.WithScheduler(f.scheduler),
		usecase.WithMeetingProcessor(mockProcessor{}),
		usecase.WithTaskSyncer(f.syncer),
		usecase.WithAudioProcessor(&mockAudio{duration: 42.5}),
	}
	f.uc = usecase.New(f.repo, append(base, opts...)...)
	return f
}

func (f *fixture) meeting(t *testing.T, userID model.UserID) *model.Meeting {
	t.Helper()
	m, err := f.repo.Meeting().Create(context.Background(), &model.Meeting{
		UserID: userID,
		Title:  "Weekly sync",
		Audio:  model.AudioFile{Key: string(userID) + "/a.mp3", Filename: "a.mp3", Format: "mp3"},
		Status: types.MeetingStatusCompleted,
	})
	gt.NoError(t, err).Required()
	return m
}

func (f *fixture) task(t *testing.T, m *model.Meeting, title string, status types.TaskStatus) *model.Task {
	t.Helper()
	task, err := f.repo.Task().Create(context.Background(), &model.Task{
		MeetingID: m.ID,
		UserID:    m.UserID,
		Title:     title,
		Priority:  types.TaskPriorityMedium,
		Status:    status,
	})
	gt.NoError(t, err).Required()
	return task
}
