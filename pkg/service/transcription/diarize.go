package transcription

import (
	"context"
	"math"

	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

// Diarized labels transcription segments with speakers from a Diarizer.
// Diarization failures are logged and the unlabelled transcription is returned.
type Diarized struct {
	inner    interfaces.Transcriber
	diarizer interfaces.Diarizer
}

var _ interfaces.Transcriber = &Diarized{}

func NewDiarized(inner interfaces.Transcriber, diarizer interfaces.Diarizer) *Diarized {
	return &Diarized{inner: inner, diarizer: diarizer}
}

func (d *Diarized) Transcribe(ctx context.Context, path string, language string) (*model.Transcription, error) {
	result, err := d.inner.Transcribe(ctx, path, language)
	if err != nil {
		return nil, err
	}

	turns, err := d.diarizer.Diarize(ctx, path)
	if err != nil {
		logging.From(ctx).Warn("diarization failed, continuing without speakers", "error", err.Error())
		return result, nil
	}

	AssignSpeakers(result.Segments, turns)
	return result, nil
}

// AssignSpeakers sets each segment's speaker to the turn with the largest time overlap.
// Segments without any overlapping turn are left unchanged.
func AssignSpeakers(segments []*model.TranscriptionSegment, turns []*model.SpeakerTurn) {
	for _, s := range segments {
		best := 0.0
		for _, turn := range turns {
			overlap := math.Min(s.EndTime, turn.End) - math.Max(s.StartTime, turn.Start)
			if overlap > best {
				best = overlap
				s.Speaker = turn.Speaker
			}
		}
	}
}
