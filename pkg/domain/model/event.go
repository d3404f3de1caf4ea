package model

import "github.com/secmon-lab/meetscribe/pkg/domain/types"

// EventType is the name of a notification pushed to clients
type EventType string

const (
	EventStatusUpdate  EventType = "status_update"
	EventTaskSynced    EventType = "task_synced"
	EventTaskSyncError EventType = "task_sync_failed"
)

// Event is the envelope pushed to subscribers of a topic
type Event struct {
	Event EventType `json:"event"`
	Data  any       `json:"data"`
}

// StatusUpdate is the payload of a status_update event
type StatusUpdate struct {
	MeetingID MeetingID           `json:"meeting_id"`
	Status    types.MeetingStatus `json:"status"`
	Message   string              `json:"message"`
	Progress  int                 `json:"progress"`
}

// TaskSyncUpdate is the payload of task sync events
type TaskSyncUpdate struct {
	TaskID      TaskID `json:"task_id"`
	ExternalURL string `json:"external_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

// MeetingTopic returns the notification topic for a meeting
func MeetingTopic(id MeetingID) string {
	return "meeting:" + string(id)
}

// UserTopic returns the notification topic for a user
func UserTopic(id UserID) string {
	return "user:" + string(id)
}
