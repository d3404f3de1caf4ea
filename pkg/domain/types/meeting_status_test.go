package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

func TestMeetingStatus_IsValid(t *testing.T) {
	for _, s := range types.AllMeetingStatuses() {
		gt.Bool(t, s.IsValid()).True()
	}
	gt.Bool(t, types.MeetingStatus("").IsValid()).False()
	gt.Bool(t, types.MeetingStatus("COMPLETED").IsValid()).False()
}

func TestMeetingStatus_CanStart(t *testing.T) {
	tests := []struct {
		status types.MeetingStatus
		want   bool
	}{
		{types.MeetingStatusPending, true},
		{types.MeetingStatusUploading, true},
		{types.MeetingStatusFailed, true},
		{types.MeetingStatusProcessing, false},
		{types.MeetingStatusTranscribing, false},
		{types.MeetingStatusExtracting, false},
		{types.MeetingStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			gt.Value(t, tt.status.CanStart()).Equal(tt.want)
		})
	}
}

func TestMeetingStatus_IsTerminal(t *testing.T) {
	gt.Bool(t, types.MeetingStatusCompleted.IsTerminal()).True()
	gt.Bool(t, types.MeetingStatusFailed.IsTerminal()).True()
	gt.Bool(t, types.MeetingStatusProcessing.IsTerminal()).False()
}

func TestParseMeetingStatus(t *testing.T) {
	s, err := types.ParseMeetingStatus("transcribing")
	gt.NoError(t, err)
	gt.Value(t, s).Equal(types.MeetingStatusTranscribing)

	_, err = types.ParseMeetingStatus("done")
	gt.Error(t, err)
}
