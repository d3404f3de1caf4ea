package interfaces

import (
	"context"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

// IntegrationAdapter is the uniform capability set over an external task tracker.
// Task operations report provider failures in model.SyncResult; errors are reserved for
// failures of the caller's context.
type IntegrationAdapter interface {
	TestConnection(ctx context.Context) bool
	CreateTask(ctx context.Context, payload *model.TaskPayload) *model.SyncResult
	UpdateTask(ctx context.Context, externalID string, payload *model.TaskPayload) *model.SyncResult
	DeleteTask(ctx context.Context, externalID string) *model.SyncResult
	GetWorkspaces(ctx context.Context) ([]*model.Workspace, error)
	GetProjects(ctx context.Context, workspaceID string) ([]*model.Project, error)
}

// AdapterFactory builds the adapter for an integration record
type AdapterFactory interface {
	Adapter(integration *model.Integration) (IntegrationAdapter, error)
}
