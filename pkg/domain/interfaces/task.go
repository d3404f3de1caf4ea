package interfaces

import (
	"context"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

// SimilarTask is a stored task returned by a similarity search
type SimilarTask struct {
	Task       *model.Task
	Similarity float64
}

// TaskRepository defines the interface for Task data persistence
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *model.Task) (*model.Task, error)

	// Get retrieves a task by ID
	Get(ctx context.Context, id model.TaskID) (*model.Task, error)

	// Update replaces all mutable fields of a task
	Update(ctx context.Context, task *model.Task) (*model.Task, error)

	// Delete deletes a task by ID
	Delete(ctx context.Context, id model.TaskID) error

	// ListByMeeting retrieves all tasks of a meeting ordered by creation time
	ListByMeeting(ctx context.Context, meetingID model.MeetingID) ([]*model.Task, error)

	// List retrieves tasks of a user ordered by creation time, newest first
	List(ctx context.Context, userID model.UserID, page model.Pagination, opts ...ListTaskOption) ([]*model.Task, error)

	// Count returns the number of tasks of a user matching the filter
	Count(ctx context.Context, userID model.UserID, opts ...ListTaskOption) (int, error)

	// DeleteByMeeting deletes all tasks of a meeting
	DeleteByMeeting(ctx context.Context, meetingID model.MeetingID) error

	// FindSimilar returns up to limit tasks of the user whose embedding is present,
	// ordered by descending cosine similarity. Tasks in exclude are never returned.
	FindSimilar(ctx context.Context, userID model.UserID, embedding []float32, limit int, exclude ...model.TaskID) ([]*SimilarTask, error)
}
