package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

// TaskID is a UUID-based identifier for Task
type TaskID string

// NewTaskID generates a new UUID v4 TaskID
func NewTaskID() TaskID {
	return TaskID(uuid.New().String())
}

// Task is an action item that belongs to exactly one meeting
type Task struct {
	ID        TaskID
	MeetingID MeetingID
	UserID    UserID

	Title         string
	Description   string
	AssigneeName  string
	AssigneeEmail string
	Priority      types.TaskPriority
	DueDate       *time.Time
	DueDateText   string
	Status        types.TaskStatus

	SourceText           string
	SourceSegmentID      SegmentID
	ExtractionConfidence *float64

	ExternalID      string
	ExternalService types.IntegrationType
	ExternalURL     string
	SyncedAt        *time.Time
	SyncAttempts    int
	SyncError       string

	IsUserModified bool
	OriginalTitle  string

	IsDuplicate     bool
	DuplicateOfID   TaskID
	SimilarityScore *float64

	Embedding []float32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsSynced reports whether the task has been delivered to an external tracker
func (t *Task) IsSynced() bool {
	return t.ExternalID != ""
}

// ExtractedTask is a candidate action item produced by a task extractor
type ExtractedTask struct {
	Title        string
	Description  string
	PriorityHint string
	AssigneeHint string
	DueDateHint  string
	SourceText   string
	Confidence   *float64
}
