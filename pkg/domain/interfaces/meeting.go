package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

// MeetingRepository defines the interface for Meeting data persistence
type MeetingRepository interface {
	// Create creates a new meeting
	Create(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error)

	// Get retrieves a meeting by ID
	Get(ctx context.Context, id model.MeetingID) (*model.Meeting, error)

	// Update replaces the editable fields of a meeting (title, description, audio)
	Update(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error)

	// UpdateProgress atomically writes the processing state of a meeting
	UpdateProgress(ctx context.Context, id model.MeetingID, progress *model.MeetingProgress) error

	// Delete deletes a meeting by ID
	Delete(ctx context.Context, id model.MeetingID) error

	// List retrieves meetings of a user ordered by creation time, newest first
	List(ctx context.Context, userID model.UserID, page model.Pagination, opts ...ListMeetingOption) ([]*model.Meeting, error)

	// Count returns the number of meetings of a user matching the filter
	Count(ctx context.Context, userID model.UserID, opts ...ListMeetingOption) (int, error)

	// ListCreatedBefore retrieves meetings of all users created before the given time
	ListCreatedBefore(ctx context.Context, before time.Time) ([]*model.Meeting, error)
}
