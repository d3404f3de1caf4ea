package types

import "fmt"

// TaskStatus represents the lifecycle status of an extracted or user created task
type TaskStatus string

const (
	TaskStatusDraft     TaskStatus = "draft"
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusSynced    TaskStatus = "synced"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusRejected  TaskStatus = "rejected"
	TaskStatusFailed    TaskStatus = "failed"
)

// AllTaskStatuses returns all valid task statuses
func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusDraft,
		TaskStatusPending,
		TaskStatusSynced,
		TaskStatusCompleted,
		TaskStatusRejected,
		TaskStatusFailed,
	}
}

// IsValid checks if the task status is valid
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusDraft,
		TaskStatusPending,
		TaskStatusSynced,
		TaskStatusCompleted,
		TaskStatusRejected,
		TaskStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the task status
func (s TaskStatus) String() string {
	return string(s)
}

// ParseTaskStatus parses a string into a TaskStatus
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid task status: %s", s)
	}
	return status, nil
}
