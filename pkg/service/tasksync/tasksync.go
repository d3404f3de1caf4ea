package tasksync

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/service/worker"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxRetries  = 3
	DefaultBaseDelay   = 60 * time.Second
	DefaultConcurrency = 4
)

// Coordinator delivers tasks to external trackers, retrying failed deliveries with
// exponential backoff
type Coordinator struct {
	repo        interfaces.Repository
	adapters    interfaces.AdapterFactory
	scheduler   interfaces.Scheduler
	bus         interfaces.NotificationBus
	maxRetries  int
	baseDelay   time.Duration
	concurrency int
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

type Option func(*Coordinator)

func WithMaxRetries(n int) Option {
	return func(c *Coordinator) {
		c.maxRetries = n
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.baseDelay = d
	}
}

func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		c.concurrency = n
	}
}

func WithNotificationBus(bus interfaces.NotificationBus) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

// WithSleep replaces the wait between attempts
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) {
		c.sleep = sleep
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func New(repo interfaces.Repository, adapters interfaces.AdapterFactory, scheduler interfaces.Scheduler, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:        repo,
		adapters:    adapters,
		scheduler:   scheduler,
		maxRetries:  DefaultMaxRetries,
		baseDelay:   DefaultBaseDelay,
		concurrency: DefaultConcurrency,
		sleep:       sleepContext,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules delivery of the task and returns immediately
func (c *Coordinator) Enqueue(ctx context.Context, taskID model.TaskID, integrationID model.IntegrationID) error {
	job := &interfaces.Job{
		Name: "sync_task",
		Key:  "task:" + string(taskID),
		// Sync retries on its own
		MaxRetries: -1,
		Run: func(ctx context.Context) error {
			_, err := c.Sync(ctx, taskID, integrationID)
			return err
		},
	}
	if err := c.scheduler.Schedule(ctx, job); err != nil {
		return goerr.Wrap(err, "failed to enqueue task sync",
			goerr.V("task_id", taskID), goerr.V("integration_id", integrationID))
	}
	return nil
}

// Sync delivers the task now. A task already delivered to the same service is updated
// in place. After the last failed attempt the task is marked failed and
// model.ErrRetryExhausted is returned.
func (c *Coordinator) Sync(ctx context.Context, taskID model.TaskID, integrationID model.IntegrationID) (*model.Task, error) {
	task, integration, err := c.load(ctx, taskID, integrationID)
	if err != nil {
		return nil, err
	}

	adapter, err := c.adapters.Adapter(integration)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build integration adapter",
			goerr.V("integration_id", integrationID), goerr.V("type", integration.Type))
	}

	logger := logging.From(ctx).With("task_id", taskID, "integration", integration.Type)
	payload := model.NewTaskPayload(task)
	update := task.IsSynced() && task.ExternalService == integration.Type

	var lastError string
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var result *model.SyncResult
		if update {
			result = adapter.UpdateTask(ctx, task.ExternalID, payload)
		} else {
			result = adapter.CreateTask(ctx, payload)
		}
		task.SyncAttempts++

		if result.Success {
			return c.succeed(ctx, task, integration, result)
		}

		lastError = result.Error
		logger.Warn("task sync attempt failed", "attempt", attempt, "error", lastError)
		if err := c.repo.Integration().RecordError(ctx, integration.ID, lastError); err != nil {
			logger.Warn("failed to record integration error", "error", err.Error())
		}

		if attempt == c.maxRetries {
			break
		}
		if err := c.sleep(ctx, worker.Backoff(c.baseDelay, attempt)); err != nil {
			return nil, goerr.Wrap(err, "task sync interrupted", goerr.V("task_id", taskID))
		}
	}

	return nil, c.exhaust(ctx, task, lastError)
}

func (c *Coordinator) load(ctx context.Context, taskID model.TaskID, integrationID model.IntegrationID) (*model.Task, *model.Integration, error) {
	task, err := c.repo.Task().Get(ctx, taskID)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to get task", goerr.V("task_id", taskID))
	}
	if task == nil {
		return nil, nil, goerr.Wrap(model.ErrNotFound, "task not found", goerr.V("task_id", taskID))
	}

	integration, err := c.repo.Integration().Get(ctx, integrationID)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to get integration", goerr.V("integration_id", integrationID))
	}
	if integration == nil || integration.UserID != task.UserID {
		return nil, nil, goerr.Wrap(model.ErrNotFound, "integration not found", goerr.V("integration_id", integrationID))
	}
	if !integration.IsActive {
		return nil, nil, goerr.Wrap(model.ErrValidation, "integration is not active", goerr.V("integration_id", integrationID))
	}
	return task, integration, nil
}

func (c *Coordinator) succeed(ctx context.Context, task *model.Task, integration *model.Integration, result *model.SyncResult) (*model.Task, error) {
	now := c.now().UTC()

	if result.ExternalID != "" {
		task.ExternalID = result.ExternalID
	}
	if result.ExternalURL != "" {
		task.ExternalURL = result.ExternalURL
	}
	task.ExternalService = integration.Type
	task.SyncedAt = &now
	task.SyncError = ""
	task.Status = types.TaskStatusSynced

	updated, err := c.repo.Task().Update(ctx, task)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store sync result", goerr.V("task_id", task.ID))
	}
	if err := c.repo.Integration().MarkSynced(ctx, integration.ID, now); err != nil {
		logging.From(ctx).Warn("failed to mark integration synced", "error", err.Error())
	}

	c.publish(ctx, task, model.EventTaskSynced, "")
	logging.From(ctx).Info("task synced",
		"task_id", task.ID,
		"external_id", task.ExternalID,
		"attempts", task.SyncAttempts)
	return updated, nil
}

func (c *Coordinator) exhaust(ctx context.Context, task *model.Task, lastError string) error {
	task.SyncError = lastError
	task.Status = types.TaskStatusFailed

	if _, err := c.repo.Task().Update(ctx, task); err != nil {
		logging.From(ctx).Error("failed to record sync failure", "task_id", task.ID, "error", err.Error())
	}
	c.publish(ctx, task, model.EventTaskSyncError, lastError)

	return goerr.Wrap(model.ErrRetryExhausted, "task sync failed",
		goerr.V("task_id", task.ID),
		goerr.V("attempts", task.SyncAttempts),
		goerr.V("last_error", lastError))
}

func (c *Coordinator) publish(ctx context.Context, task *model.Task, event model.EventType, errMsg string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(ctx, model.UserTopic(task.UserID), &model.Event{
		Event: event,
		Data: &model.TaskSyncUpdate{
			TaskID:      task.ID,
			ExternalURL: task.ExternalURL,
			Error:       errMsg,
		},
	})
}

// Outcome is the result of syncing one task of a batch
type Outcome struct {
	TaskID model.TaskID
	Task   *model.Task
	Err    error
}

// SyncMany syncs tasks concurrently. Every task is attempted regardless of the others'
// results; outcomes are returned in input order.
func (c *Coordinator) SyncMany(ctx context.Context, taskIDs []model.TaskID, integrationID model.IntegrationID) []*Outcome {
	outcomes := make([]*Outcome, len(taskIDs))

	var eg errgroup.Group
	eg.SetLimit(c.concurrency)
	for i, id := range taskIDs {
		eg.Go(func() error {
			task, err := c.Sync(ctx, id, integrationID)
			outcomes[i] = &Outcome{TaskID: id, Task: task, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	return outcomes
}
