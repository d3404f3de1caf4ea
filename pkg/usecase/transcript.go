package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

type TranscriptUseCase struct {
	repo     interfaces.Repository
	meetings *MeetingUseCase
}

// Get returns the redacted transcript of a meeting of the user
func (uc *TranscriptUseCase) Get(ctx context.Context, userID model.UserID, meetingID model.MeetingID) (*model.Transcript, error) {
	if _, err := uc.meetings.Get(ctx, userID, meetingID); err != nil {
		return nil, err
	}

	transcript, err := uc.repo.Transcript().GetByMeeting(ctx, meetingID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get transcript", goerr.V(MeetingIDKey, meetingID))
	}
	if transcript == nil {
		return nil, goerr.Wrap(ErrTranscriptNotFound, "transcript not found", goerr.V(MeetingIDKey, meetingID))
	}
	return transcript, nil
}

// UpdateSpeakerName back-fills the speaker name of one segment
func (uc *TranscriptUseCase) UpdateSpeakerName(ctx context.Context, userID model.UserID, meetingID model.MeetingID, segmentID model.SegmentID, name string) (*model.TranscriptSegment, error) {
	transcript, err := uc.Get(ctx, userID, meetingID)
	if err != nil {
		return nil, err
	}

	var segment *model.TranscriptSegment
	for _, s := range transcript.Segments {
		if s.ID == segmentID {
			segment = s
			break
		}
	}
	if segment == nil {
		return nil, goerr.Wrap(ErrSegmentNotFound, "segment not found", goerr.V("segment_id", segmentID))
	}

	name = strings.TrimSpace(name)
	if err := uc.repo.Transcript().UpdateSpeakerName(ctx, transcript.ID, segmentID, name); err != nil {
		return nil, goerr.Wrap(err, "failed to update speaker name", goerr.V("segment_id", segmentID))
	}
	segment.SpeakerName = name
	return segment, nil
}

// RenameSpeaker sets the speaker name of every segment carrying the diarization label
// and returns the number of segments changed
func (uc *TranscriptUseCase) RenameSpeaker(ctx context.Context, userID model.UserID, meetingID model.MeetingID, label, name string) (int, error) {
	if label == "" {
		return 0, goerr.Wrap(model.ErrValidation, "speaker label is required")
	}

	transcript, err := uc.Get(ctx, userID, meetingID)
	if err != nil {
		return 0, err
	}

	name = strings.TrimSpace(name)
	changed := 0
	for _, s := range transcript.Segments {
		if s.SpeakerLabel != label {
			continue
		}
		if err := uc.repo.Transcript().UpdateSpeakerName(ctx, transcript.ID, s.ID, name); err != nil {
			return changed, goerr.Wrap(err, "failed to update speaker name", goerr.V("segment_id", s.ID))
		}
		changed++
	}

	if changed == 0 {
		return 0, goerr.Wrap(ErrSegmentNotFound, "no segment has the speaker label", goerr.V("label", label))
	}
	return changed, nil
}
