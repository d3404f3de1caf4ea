package usecase

import (
	"fmt"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

// Sentinel errors for use case layer. Resources owned by another user are reported as
// not found.
var (
	ErrMeetingNotFound     = fmt.Errorf("meeting %w", model.ErrNotFound)
	ErrTranscriptNotFound  = fmt.Errorf("transcript %w", model.ErrNotFound)
	ErrSegmentNotFound     = fmt.Errorf("segment %w", model.ErrNotFound)
	ErrTaskNotFound        = fmt.Errorf("task %w", model.ErrNotFound)
	ErrIntegrationNotFound = fmt.Errorf("integration %w", model.ErrNotFound)

	ErrMeetingNotReprocessable = fmt.Errorf("meeting cannot be reprocessed: %w", model.ErrConflict)
	ErrInactiveUser            = fmt.Errorf("user is inactive: %w", model.ErrAuthorization)
)

// Context keys for error values
const (
	MeetingIDKey     = "meeting_id"
	TaskIDKey        = "task_id"
	IntegrationIDKey = "integration_id"
	UserIDKey        = "user_id"
)
