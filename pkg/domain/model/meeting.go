package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

// MeetingID is a UUID-based identifier for Meeting
type MeetingID string

// NewMeetingID generates a new UUID v4 MeetingID
func NewMeetingID() MeetingID {
	return MeetingID(uuid.New().String())
}

// AudioFile describes the uploaded recording of a meeting
type AudioFile struct {
	Key      string  // Storage key of the raw bytes
	Filename string  // Original filename supplied by the uploader
	Size     int64   // Bytes
	Duration float64 // Seconds, 0 when unknown
	Format   string  // Lower-case extension without dot, e.g. "mp3"
}

// Meeting is an uploaded recording and its processing state
type Meeting struct {
	ID          MeetingID
	UserID      UserID
	Title       string
	Description string
	Audio       AudioFile

	Status        types.MeetingStatus
	StatusMessage string
	Progress      int
	ErrorMessage  string
	RetryCount    int

	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// MeetingProgress is the subset of Meeting fields written by the pipeline at each step
type MeetingProgress struct {
	Status                types.MeetingStatus
	StatusMessage         string
	Progress              int
	ErrorMessage          string
	RetryCount            *int
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
}

// Apply copies the progress fields onto the meeting
func (p *MeetingProgress) Apply(m *Meeting) {
	m.Status = p.Status
	m.StatusMessage = p.StatusMessage
	m.Progress = p.Progress
	m.ErrorMessage = p.ErrorMessage
	if p.RetryCount != nil {
		m.RetryCount = *p.RetryCount
	}
	if p.ProcessingStartedAt != nil {
		t := *p.ProcessingStartedAt
		m.ProcessingStartedAt = &t
	}
	if p.ProcessingCompletedAt != nil {
		t := *p.ProcessingCompletedAt
		m.ProcessingCompletedAt = &t
	}
}
