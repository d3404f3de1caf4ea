package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/service/dedup"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

type TaskUseCase struct {
	repo     interfaces.Repository
	meetings *MeetingUseCase
	syncer   TaskSyncer
	dedup    *dedup.Engine
}

// TaskInput is a task created by hand
type TaskInput struct {
	MeetingID     model.MeetingID
	Title         string
	Description   string
	AssigneeName  string
	AssigneeEmail string
	Priority      types.TaskPriority
	DueDate       *time.Time
}

// TaskUpdate holds the editable fields of a task. Nil fields are left unchanged;
// ClearDueDate removes the due date.
type TaskUpdate struct {
	Title         *string
	Description   *string
	AssigneeName  *string
	AssigneeEmail *string
	Priority      *types.TaskPriority
	DueDate       *time.Time
	ClearDueDate  bool
	Status        *types.TaskStatus
}

// TaskFilter narrows a task listing
type TaskFilter struct {
	Status    *types.TaskStatus
	Priority  *types.TaskPriority
	MeetingID *model.MeetingID
}

func (f TaskFilter) options() []interfaces.ListTaskOption {
	var opts []interfaces.ListTaskOption
	if f.Status != nil {
		opts = append(opts, interfaces.WithTaskStatus(*f.Status))
	}
	if f.Priority != nil {
		opts = append(opts, interfaces.WithTaskPriority(*f.Priority))
	}
	if f.MeetingID != nil {
		opts = append(opts, interfaces.WithTaskMeetingID(*f.MeetingID))
	}
	return opts
}

// BulkAction is an action applied to many tasks at once
type BulkAction string

const (
	BulkApprove BulkAction = "approve"
	BulkReject  BulkAction = "reject"
	BulkDelete  BulkAction = "delete"
)

func (a BulkAction) IsValid() bool {
	switch a {
	case BulkApprove, BulkReject, BulkDelete:
		return true
	default:
		return false
	}
}

// BulkFailure is a task a bulk action could not be applied to
type BulkFailure struct {
	TaskID model.TaskID
	Err    error
}

// BulkResult reports the outcome of a bulk action per task. Skipped tasks were left
// as they were, such as approving a task that is already approved or synced.
type BulkResult struct {
	Succeeded []model.TaskID
	Skipped   []model.TaskID
	Failed    []*BulkFailure
}

func (uc *TaskUseCase) Get(ctx context.Context, userID model.UserID, id model.TaskID) (*model.Task, error) {
	task, err := uc.repo.Task().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get task", goerr.V(TaskIDKey, id))
	}
	if task == nil || task.UserID != userID {
		return nil, goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, id))
	}
	return task, nil
}

// ListByMeeting returns all tasks of a meeting of the user
func (uc *TaskUseCase) ListByMeeting(ctx context.Context, userID model.UserID, meetingID model.MeetingID) ([]*model.Task, error) {
	if _, err := uc.meetings.Get(ctx, userID, meetingID); err != nil {
		return nil, err
	}

	tasks, err := uc.repo.Task().ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks", goerr.V(MeetingIDKey, meetingID))
	}
	return tasks, nil
}

// List returns a page of the user's tasks with the total number matching the filter
func (uc *TaskUseCase) List(ctx context.Context, userID model.UserID, page model.Pagination, filter TaskFilter) (*model.Page[*model.Task], error) {
	page = page.Normalize()
	opts := filter.options()

	tasks, err := uc.repo.Task().List(ctx, userID, page, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks")
	}
	total, err := uc.repo.Task().Count(ctx, userID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count tasks")
	}

	return &model.Page[*model.Task]{
		Items:  tasks,
		Total:  total,
		Offset: page.Offset,
		Limit:  page.Limit,
	}, nil
}

// Create stores a task written by the user. It starts as pending and is checked for
// duplicates among the user's tasks.
func (uc *TaskUseCase) Create(ctx context.Context, userID model.UserID, in *TaskInput) (*model.Task, error) {
	if _, err := uc.meetings.Get(ctx, userID, in.MeetingID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, goerr.Wrap(model.ErrValidation, "task title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = types.TaskPriorityMedium
	}
	if !priority.IsValid() {
		return nil, goerr.Wrap(model.ErrValidation, "invalid task priority", goerr.V("priority", priority))
	}

	task := &model.Task{
		ID:             model.NewTaskID(),
		MeetingID:      in.MeetingID,
		UserID:         userID,
		Title:          title,
		Description:    in.Description,
		AssigneeName:   in.AssigneeName,
		AssigneeEmail:  in.AssigneeEmail,
		Priority:       priority,
		DueDate:        in.DueDate,
		Status:         types.TaskStatusPending,
		IsUserModified: true,
	}
	if uc.dedup != nil {
		uc.dedup.Check(ctx, task)
	}

	created, err := uc.repo.Task().Create(ctx, task)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create task")
	}
	return created, nil
}

// Update applies user edits. The first title change keeps the extracted title in
// OriginalTitle.
func (uc *TaskUseCase) Update(ctx context.Context, userID model.UserID, id model.TaskID, in *TaskUpdate) (*model.Task, error) {
	task, err := uc.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	textChanged := false
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, goerr.Wrap(model.ErrValidation, "task title must not be empty")
		}
		if title != task.Title {
			if task.OriginalTitle == "" {
				task.OriginalTitle = task.Title
			}
			task.Title = title
			textChanged = true
		}
	}
	if in.Description != nil && *in.Description != task.Description {
		task.Description = *in.Description
		textChanged = true
	}
	if in.AssigneeName != nil {
		task.AssigneeName = *in.AssigneeName
	}
	if in.AssigneeEmail != nil {
		task.AssigneeEmail = *in.AssigneeEmail
	}
	if in.Priority != nil {
		if !in.Priority.IsValid() {
			return nil, goerr.Wrap(model.ErrValidation, "invalid task priority", goerr.V("priority", *in.Priority))
		}
		task.Priority = *in.Priority
	}
	switch {
	case in.ClearDueDate:
		task.DueDate = nil
		task.DueDateText = ""
	case in.DueDate != nil:
		d := *in.DueDate
		task.DueDate = &d
	}
	if in.Status != nil {
		if err := validateUserStatus(*in.Status); err != nil {
			return nil, err
		}
		task.Status = *in.Status
	}
	task.IsUserModified = true

	if textChanged {
		// the stored vector no longer describes the task
		task.Embedding = nil
		if uc.dedup != nil {
			task.IsDuplicate = false
			task.DuplicateOfID = ""
			task.SimilarityScore = nil
			uc.dedup.Check(ctx, task)
		}
	}

	updated, err := uc.repo.Task().Update(ctx, task)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update task", goerr.V(TaskIDKey, id))
	}
	return updated, nil
}

// validateUserStatus rejects statuses that only the sync process may set
func validateUserStatus(status types.TaskStatus) error {
	if !status.IsValid() {
		return goerr.Wrap(model.ErrValidation, "invalid task status", goerr.V("status", status))
	}
	if status == types.TaskStatusSynced || status == types.TaskStatusFailed {
		return goerr.Wrap(model.ErrValidation, "task status is managed by sync", goerr.V("status", status))
	}
	return nil
}

func (uc *TaskUseCase) Delete(ctx context.Context, userID model.UserID, id model.TaskID) error {
	if _, err := uc.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := uc.repo.Task().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete task", goerr.V(TaskIDKey, id))
	}
	return nil
}

// Bulk applies action to each task independently. Approved tasks are queued for sync when
// the user has an active integration with auto sync enabled.
func (uc *TaskUseCase) Bulk(ctx context.Context, userID model.UserID, action BulkAction, ids []model.TaskID) (*BulkResult, error) {
	if !action.IsValid() {
		return nil, goerr.Wrap(model.ErrValidation, "invalid bulk action", goerr.V("action", action))
	}

	var autoSync *model.Integration
	if action == BulkApprove {
		integration, err := uc.autoSyncIntegration(ctx, userID)
		if err != nil {
			return nil, err
		}
		autoSync = integration
	}

	result := &BulkResult{}
	for _, id := range ids {
		applied, err := uc.applyBulk(ctx, userID, action, id)
		if err != nil {
			result.Failed = append(result.Failed, &BulkFailure{TaskID: id, Err: err})
			continue
		}
		if !applied {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		result.Succeeded = append(result.Succeeded, id)

		if autoSync != nil && uc.syncer != nil {
			if err := uc.syncer.Enqueue(ctx, id, autoSync.ID); err != nil {
				logging.From(ctx).Warn("failed to queue auto sync", TaskIDKey, id, "error", err.Error())
			}
		}
	}

	logging.From(ctx).Info("bulk task action applied",
		"action", action,
		"succeeded", len(result.Succeeded),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed))
	return result, nil
}

// applyBulk reports false when the task is left unchanged
func (uc *TaskUseCase) applyBulk(ctx context.Context, userID model.UserID, action BulkAction, id model.TaskID) (bool, error) {
	task, err := uc.Get(ctx, userID, id)
	if err != nil {
		return false, err
	}

	switch action {
	case BulkDelete:
		if err := uc.repo.Task().Delete(ctx, id); err != nil {
			return false, goerr.Wrap(err, "failed to delete task", goerr.V(TaskIDKey, id))
		}
		return true, nil
	case BulkApprove:
		// approved or delivered tasks keep their state and are not queued again
		switch task.Status {
		case types.TaskStatusPending, types.TaskStatusSynced, types.TaskStatusCompleted:
			return false, nil
		}
		task.Status = types.TaskStatusPending
	case BulkReject:
		task.Status = types.TaskStatusRejected
	}

	if _, err := uc.repo.Task().Update(ctx, task); err != nil {
		return false, goerr.Wrap(err, "failed to update task", goerr.V(TaskIDKey, id))
	}
	return true, nil
}

func (uc *TaskUseCase) autoSyncIntegration(ctx context.Context, userID model.UserID) (*model.Integration, error) {
	integrations, err := uc.repo.Integration().ListByUser(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list integrations")
	}
	for _, i := range integrations {
		if i.IsActive && i.AutoSyncEnabled {
			return i, nil
		}
	}
	return nil, nil
}

// Sync queues delivery of tasks of the user to one of the user's integrations
func (uc *TaskUseCase) Sync(ctx context.Context, userID model.UserID, integrationID model.IntegrationID, ids ...model.TaskID) error {
	if uc.syncer == nil {
		return goerr.New("task sync is not configured")
	}
	if len(ids) == 0 {
		return goerr.Wrap(model.ErrValidation, "no task to sync")
	}

	integration, err := uc.repo.Integration().Get(ctx, integrationID)
	if err != nil {
		return goerr.Wrap(err, "failed to get integration", goerr.V(IntegrationIDKey, integrationID))
	}
	if integration == nil || integration.UserID != userID {
		return goerr.Wrap(ErrIntegrationNotFound, "integration not found", goerr.V(IntegrationIDKey, integrationID))
	}
	if !integration.IsActive {
		return goerr.Wrap(model.ErrValidation, "integration is not active", goerr.V(IntegrationIDKey, integrationID))
	}

	// ownership of every task is checked before anything is queued
	for _, id := range ids {
		if _, err := uc.Get(ctx, userID, id); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if err := uc.syncer.Enqueue(ctx, id, integrationID); err != nil {
			return goerr.Wrap(err, "failed to queue task sync", goerr.V(TaskIDKey, id))
		}
	}
	return nil
}
