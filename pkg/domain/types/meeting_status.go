package types

import "fmt"

// MeetingStatus represents a processing state of a meeting
type MeetingStatus string

const (
	MeetingStatusPending      MeetingStatus = "pending"
	MeetingStatusUploading    MeetingStatus = "uploading"
	MeetingStatusProcessing   MeetingStatus = "processing"
	MeetingStatusTranscribing MeetingStatus = "transcribing"
	MeetingStatusExtracting   MeetingStatus = "extracting"
	MeetingStatusCompleted    MeetingStatus = "completed"
	MeetingStatusFailed       MeetingStatus = "failed"
)

// AllMeetingStatuses returns all valid meeting statuses
func AllMeetingStatuses() []MeetingStatus {
	return []MeetingStatus{
		MeetingStatusPending,
		MeetingStatusUploading,
		MeetingStatusProcessing,
		MeetingStatusTranscribing,
		MeetingStatusExtracting,
		MeetingStatusCompleted,
		MeetingStatusFailed,
	}
}

// IsValid checks if the meeting status is valid
func (s MeetingStatus) IsValid() bool {
	switch s {
	case MeetingStatusPending,
		MeetingStatusUploading,
		MeetingStatusProcessing,
		MeetingStatusTranscribing,
		MeetingStatusExtracting,
		MeetingStatusCompleted,
		MeetingStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further pipeline transition happens from this status
// without an explicit restart.
func (s MeetingStatus) IsTerminal() bool {
	return s == MeetingStatusCompleted || s == MeetingStatusFailed
}

// CanStart reports whether the pipeline may be (re)started from this status.
// Uploading is accepted because the upload handler hands over right after storing the audio.
func (s MeetingStatus) CanStart() bool {
	switch s {
	case MeetingStatusPending, MeetingStatusUploading, MeetingStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the meeting status
func (s MeetingStatus) String() string {
	return string(s)
}

// ParseMeetingStatus parses a string into a MeetingStatus
func ParseMeetingStatus(s string) (MeetingStatus, error) {
	status := MeetingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid meeting status: %s", s)
	}
	return status, nil
}
