package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

type transcriptRepository struct {
	mu          sync.RWMutex
	transcripts map[model.TranscriptID]*model.Transcript
	byMeeting   map[model.MeetingID]model.TranscriptID
}

func newTranscriptRepository() *transcriptRepository {
	return &transcriptRepository{
		transcripts: make(map[model.TranscriptID]*model.Transcript),
		byMeeting:   make(map[model.MeetingID]model.TranscriptID),
	}
}

func copySegment(s *model.TranscriptSegment) *model.TranscriptSegment {
	c := *s
	c.Confidence = copyFloat(s.Confidence)
	c.Embedding = copyVector(s.Embedding)
	return &c
}

// copyTranscript creates a deep copy of a transcript including its segments
func copyTranscript(t *model.Transcript) *model.Transcript {
	c := *t
	c.Confidence = copyFloat(t.Confidence)
	c.Embedding = copyVector(t.Embedding)
	c.Segments = make([]*model.TranscriptSegment, len(t.Segments))
	for i, s := range t.Segments {
		c.Segments[i] = copySegment(s)
	}
	return &c
}

func (r *transcriptRepository) Create(ctx context.Context, transcript *model.Transcript) (*model.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byMeeting[transcript.MeetingID]; exists {
		return nil, goerr.Wrap(model.ErrConflict, "transcript already exists for meeting",
			goerr.V("meeting_id", transcript.MeetingID))
	}

	now := time.Now().UTC()
	created := copyTranscript(transcript)
	if created.ID == "" {
		created.ID = model.NewTranscriptID()
	}
	for _, s := range created.Segments {
		if s.ID == "" {
			s.ID = model.NewSegmentID()
		}
	}
	// stable so that equal sequence numbers keep insertion order
	sort.SliceStable(created.Segments, func(i, j int) bool {
		return created.Segments[i].SequenceNumber < created.Segments[j].SequenceNumber
	})
	created.CreatedAt = now
	created.UpdatedAt = now

	r.transcripts[created.ID] = created
	r.byMeeting[created.MeetingID] = created.ID
	return copyTranscript(created), nil
}

func (r *transcriptRepository) GetByMeeting(ctx context.Context, meetingID model.MeetingID) (*model.Transcript, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byMeeting[meetingID]
	if !exists {
		return nil, nil
	}
	return copyTranscript(r.transcripts[id]), nil
}

func (r *transcriptRepository) UpdateEmbedding(ctx context.Context, id model.TranscriptID, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.transcripts[id]
	if !exists {
		return nil
	}
	t.Embedding = copyVector(embedding)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *transcriptRepository) UpdateSpeakerName(ctx context.Context, id model.TranscriptID, segmentID model.SegmentID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.transcripts[id]
	if !exists {
		return nil
	}
	for _, s := range t.Segments {
		if s.ID == segmentID {
			s.SpeakerName = name
			t.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return nil
}

func (r *transcriptRepository) DeleteByMeeting(ctx context.Context, meetingID model.MeetingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, exists := r.byMeeting[meetingID]
	if !exists {
		return nil
	}
	delete(r.transcripts, id)
	delete(r.byMeeting, meetingID)
	return nil
}
