package types

import (
	"fmt"
	"strings"
)

// TaskPriority represents the priority of a task
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// AllTaskPriorities returns all valid task priorities ordered from lowest to highest
func AllTaskPriorities() []TaskPriority {
	return []TaskPriority{
		TaskPriorityLow,
		TaskPriorityMedium,
		TaskPriorityHigh,
		TaskPriorityUrgent,
	}
}

// IsValid checks if the task priority is valid
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow,
		TaskPriorityMedium,
		TaskPriorityHigh,
		TaskPriorityUrgent:
		return true
	default:
		return false
	}
}

// String returns the string representation of the task priority
func (p TaskPriority) String() string {
	return string(p)
}

// ParseTaskPriority parses a string into a TaskPriority
func ParseTaskPriority(s string) (TaskPriority, error) {
	p := TaskPriority(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid task priority: %s", s)
	}
	return p, nil
}

// NormalizeTaskPriority maps a free-form priority hint produced by a language model
// to a TaskPriority. Unknown or empty hints fall back to medium.
func NormalizeTaskPriority(hint string) TaskPriority {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "urgent", "critical", "asap", "blocker":
		return TaskPriorityUrgent
	case "high", "important":
		return TaskPriorityHigh
	case "low", "minor", "trivial":
		return TaskPriorityLow
	default:
		return TaskPriorityMedium
	}
}
