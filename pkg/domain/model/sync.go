package model

import (
	"time"

	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

// TaskPayload is the provider-agnostic content delivered to an external tracker
type TaskPayload struct {
	Title         string
	Description   string
	Assignee      string
	AssigneeEmail string
	Priority      types.TaskPriority
	DueDate       *time.Time
}

// NewTaskPayload builds a payload from the current field values of a task
func NewTaskPayload(t *Task) *TaskPayload {
	p := &TaskPayload{
		Title:         t.Title,
		Description:   t.Description,
		Assignee:      t.AssigneeName,
		AssigneeEmail: t.AssigneeEmail,
		Priority:      t.Priority,
	}
	if !p.Priority.IsValid() {
		p.Priority = types.TaskPriorityMedium
	}
	if t.DueDate != nil {
		d := *t.DueDate
		p.DueDate = &d
	}
	return p
}

// SyncResult is the outcome of a single adapter operation. Adapter failures are reported
// here instead of as errors so batch callers can continue.
type SyncResult struct {
	Success     bool
	ExternalID  string
	ExternalURL string
	Error       string
}

// Workspace is a provider's top-level container (Asana workspace, Trello board)
type Workspace struct {
	ID   string
	Name string
}

// Project is a provider's task container inside a workspace (Asana project, Trello list)
type Project struct {
	ID          string
	Name        string
	WorkspaceID string
}
