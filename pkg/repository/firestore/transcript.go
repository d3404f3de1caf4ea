package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type segmentDoc struct {
	ID             string             `firestore:"ID"`
	SequenceNumber int                `firestore:"SequenceNumber"`
	Text           string             `firestore:"Text"`
	SpeakerLabel   string             `firestore:"SpeakerLabel"`
	SpeakerName    string             `firestore:"SpeakerName"`
	StartTime      float64            `firestore:"StartTime"`
	EndTime        float64            `firestore:"EndTime"`
	Confidence     *float64           `firestore:"Confidence"`
	Embedding      firestore.Vector32 `firestore:"Embedding,omitempty"`
}

// transcriptDoc is stored under the meeting ID so that a meeting holds at most one transcript
type transcriptDoc struct {
	ID            string             `firestore:"ID"`
	MeetingID     string             `firestore:"MeetingID"`
	FullText      string             `firestore:"FullText"`
	Language      string             `firestore:"Language"`
	Confidence    *float64           `firestore:"Confidence"`
	WordCount     int                `firestore:"WordCount"`
	IsRedacted    bool               `firestore:"IsRedacted"`
	RedactionHash string             `firestore:"RedactionHash"`
	Embedding     firestore.Vector32 `firestore:"Embedding,omitempty"`
	Segments      []segmentDoc       `firestore:"Segments"`
	CreatedAt     time.Time          `firestore:"CreatedAt"`
	UpdatedAt     time.Time          `firestore:"UpdatedAt"`
}

func toTranscriptDoc(t *model.Transcript) *transcriptDoc {
	d := &transcriptDoc{
		ID:            string(t.ID),
		MeetingID:     string(t.MeetingID),
		FullText:      t.FullText,
		Language:      t.Language,
		Confidence:    t.Confidence,
		WordCount:     t.WordCount,
		IsRedacted:    t.IsRedacted,
		RedactionHash: t.RedactionHash,
		Embedding:     firestore.Vector32(t.Embedding),
		Segments:      make([]segmentDoc, len(t.Segments)),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	for i, s := range t.Segments {
		d.Segments[i] = segmentDoc{
			ID:             string(s.ID),
			SequenceNumber: s.SequenceNumber,
			Text:           s.Text,
			SpeakerLabel:   s.SpeakerLabel,
			SpeakerName:    s.SpeakerName,
			StartTime:      s.StartTime,
			EndTime:        s.EndTime,
			Confidence:     s.Confidence,
			Embedding:      firestore.Vector32(s.Embedding),
		}
	}
	return d
}

func docToTranscript(doc *firestore.DocumentSnapshot) (*model.Transcript, error) {
	var d transcriptDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}

	t := &model.Transcript{
		ID:            model.TranscriptID(d.ID),
		MeetingID:     model.MeetingID(d.MeetingID),
		FullText:      d.FullText,
		Language:      d.Language,
		Confidence:    d.Confidence,
		WordCount:     d.WordCount,
		IsRedacted:    d.IsRedacted,
		RedactionHash: d.RedactionHash,
		Segments:      make([]*model.TranscriptSegment, len(d.Segments)),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if len(d.Embedding) > 0 {
		t.Embedding = []float32(d.Embedding)
	}
	for i, s := range d.Segments {
		seg := &model.TranscriptSegment{
			ID:             model.SegmentID(s.ID),
			SequenceNumber: s.SequenceNumber,
			Text:           s.Text,
			SpeakerLabel:   s.SpeakerLabel,
			SpeakerName:    s.SpeakerName,
			StartTime:      s.StartTime,
			EndTime:        s.EndTime,
			Confidence:     s.Confidence,
		}
		if len(s.Embedding) > 0 {
			seg.Embedding = []float32(s.Embedding)
		}
		t.Segments[i] = seg
	}
	return t, nil
}

type transcriptRepository struct {
	client *firestore.Client
	prefix string
}

func (r *transcriptRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(CollectionName(r.prefix, CollectionTranscripts))
}

func (r *transcriptRepository) Create(ctx context.Context, transcript *model.Transcript) (*model.Transcript, error) {
	now := time.Now().UTC()
	created := *transcript
	if created.ID == "" {
		created.ID = model.NewTranscriptID()
	}
	created.Segments = make([]*model.TranscriptSegment, len(transcript.Segments))
	for i, s := range transcript.Segments {
		seg := *s
		if seg.ID == "" {
			seg.ID = model.NewSegmentID()
		}
		created.Segments[i] = &seg
	}
	sort.SliceStable(created.Segments, func(i, j int) bool {
		return created.Segments[i].SequenceNumber < created.Segments[j].SequenceNumber
	})
	created.CreatedAt = now
	created.UpdatedAt = now

	_, err := r.collection().Doc(string(created.MeetingID)).Create(ctx, toTranscriptDoc(&created))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.Wrap(model.ErrConflict, "transcript already exists for meeting",
				goerr.V("meeting_id", created.MeetingID))
		}
		return nil, goerr.Wrap(err, "failed to create transcript", goerr.V("meeting_id", created.MeetingID))
	}

	return &created, nil
}

func (r *transcriptRepository) GetByMeeting(ctx context.Context, meetingID model.MeetingID) (*model.Transcript, error) {
	doc, err := r.collection().Doc(string(meetingID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get transcript", goerr.V("meeting_id", meetingID))
	}

	t, err := docToTranscript(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode transcript", goerr.V("meeting_id", meetingID))
	}
	return t, nil
}

// docByID locates the transcript document by transcript ID
func (r *transcriptRepository) docByID(ctx context.Context, id model.TranscriptID) (*firestore.DocumentSnapshot, error) {
	iter := r.collection().Where("ID", "==", string(id)).Limit(1).Documents(ctx)
	docs, err := collect(iter, func(doc *firestore.DocumentSnapshot) (*firestore.DocumentSnapshot, error) {
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (r *transcriptRepository) UpdateEmbedding(ctx context.Context, id model.TranscriptID, embedding []float32) error {
	doc, err := r.docByID(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to find transcript", goerr.V("id", id))
	}
	if doc == nil {
		return nil
	}

	_, err = doc.Ref.Update(ctx, []firestore.Update{
		{Path: "Embedding", Value: firestore.Vector32(embedding)},
		{Path: "UpdatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update transcript embedding", goerr.V("id", id))
	}
	return nil
}

func (r *transcriptRepository) UpdateSpeakerName(ctx context.Context, id model.TranscriptID, segmentID model.SegmentID, name string) error {
	doc, err := r.docByID(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to find transcript", goerr.V("id", id))
	}
	if doc == nil {
		return nil
	}

	// Segments are an embedded array, so the rewrite runs in a transaction
	err = r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc.Ref)
		if err != nil {
			return err
		}
		var d transcriptDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}

		found := false
		for i := range d.Segments {
			if d.Segments[i].ID == string(segmentID) {
				d.Segments[i].SpeakerName = name
				found = true
				break
			}
		}
		if !found {
			return nil
		}

		return tx.Update(doc.Ref, []firestore.Update{
			{Path: "Segments", Value: d.Segments},
			{Path: "UpdatedAt", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update speaker name",
			goerr.V("id", id), goerr.V("segment_id", segmentID))
	}
	return nil
}

func (r *transcriptRepository) DeleteByMeeting(ctx context.Context, meetingID model.MeetingID) error {
	if _, err := r.collection().Doc(string(meetingID)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete transcript", goerr.V("meeting_id", meetingID))
	}
	return nil
}
