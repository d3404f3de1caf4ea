package interfaces

import (
	"context"

	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

// TranscriptRepository defines the interface for Transcript data persistence
type TranscriptRepository interface {
	// Create stores a transcript together with its segments. It fails with
	// model.ErrConflict if the meeting already has a transcript.
	Create(ctx context.Context, transcript *model.Transcript) (*model.Transcript, error)

	// GetByMeeting retrieves the transcript of a meeting, segments ordered by sequence number
	GetByMeeting(ctx context.Context, meetingID model.MeetingID) (*model.Transcript, error)

	// UpdateEmbedding stores the embedding of a transcript
	UpdateEmbedding(ctx context.Context, id model.TranscriptID, embedding []float32) error

	// UpdateSpeakerName back-fills the speaker name of a segment
	UpdateSpeakerName(ctx context.Context, id model.TranscriptID, segmentID model.SegmentID, name string) error

	// DeleteByMeeting deletes the transcript of a meeting, if any
	DeleteByMeeting(ctx context.Context, meetingID model.MeetingID) error
}
