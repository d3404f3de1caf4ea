package usecase

import (
	"context"

	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/service/audio"
	"github.com/secmon-lab/meetscribe/pkg/service/dedup"
)

// MeetingProcessor builds the scheduler job that runs the processing pipeline of a meeting
type MeetingProcessor interface {
	Job(meetingID model.MeetingID) *interfaces.Job
}

// TaskSyncer delivers tasks to external trackers in the background
type TaskSyncer interface {
	Enqueue(ctx context.Context, taskID model.TaskID, integrationID model.IntegrationID) error
}

type UseCases struct {
	repo      interfaces.Repository
	storage   interfaces.Storage
	scheduler interfaces.Scheduler
	processor MeetingProcessor
	syncer    TaskSyncer
	adapters  interfaces.AdapterFactory
	audio     interfaces.AudioProcessor
	validator *audio.Validator
	dedup     *dedup.Engine

	Meeting     *MeetingUseCase
	Transcript  *TranscriptUseCase
	Task        *TaskUseCase
	Integration *IntegrationUseCase
	User        *UserUseCase
}

type Option func(*UseCases)

func WithStorage(storage interfaces.Storage) Option {
	return func(uc *UseCases) {
		uc.storage = storage
	}
}

// WithScheduler sets the scheduler of background jobs
func WithScheduler(scheduler interfaces.Scheduler) Option {
	return func(uc *UseCases) {
		uc.scheduler = scheduler
	}
}

func WithMeetingProcessor(processor MeetingProcessor) Option {
	return func(uc *UseCases) {
		uc.processor = processor
	}
}

func WithTaskSyncer(syncer TaskSyncer) Option {
	return func(uc *UseCases) {
		uc.syncer = syncer
	}
}

func WithAdapterFactory(adapters interfaces.AdapterFactory) Option {
	return func(uc *UseCases) {
		uc.adapters = adapters
	}
}

// WithAudioProcessor enables duration probing of uploads
func WithAudioProcessor(p interfaces.AudioProcessor) Option {
	return func(uc *UseCases) {
		uc.audio = p
	}
}

func WithUploadValidator(v *audio.Validator) Option {
	return func(uc *UseCases) {
		uc.validator = v
	}
}

// WithDedup enables duplicate checks of manually created tasks
func WithDedup(engine *dedup.Engine) Option {
	return func(uc *UseCases) {
		uc.dedup = engine
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:      repo,
		validator: audio.NewValidator(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Meeting = &MeetingUseCase{
		repo:      repo,
		storage:   uc.storage,
		scheduler: uc.scheduler,
		processor: uc.processor,
		audio:     uc.audio,
		validator: uc.validator,
	}
	uc.Transcript = &TranscriptUseCase{repo: repo, meetings: uc.Meeting}
	uc.Task = &TaskUseCase{repo: repo, meetings: uc.Meeting, syncer: uc.syncer, dedup: uc.dedup}
	uc.Integration = &IntegrationUseCase{repo: repo, adapters: uc.adapters}
	uc.User = &UserUseCase{repo: repo}

	return uc
}
