package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type audioDoc struct {
	Key      string  `firestore:"Key"`
	Filename string  `firestore:"Filename"`
	Size     int64   `firestore:"Size"`
	Duration float64 `firestore:"Duration"`
	Format   string  `firestore:"Format"`
}

type meetingDoc struct {
	ID                    string     `firestore:"ID"`
	UserID                string     `firestore:"UserID"`
	Title                 string     `firestore:"Title"`
	Description           string     `firestore:"Description"`
	Audio                 audioDoc   `firestore:"Audio"`
	Status                string     `firestore:"Status"`
	StatusMessage         string     `firestore:"StatusMessage"`
	Progress              int        `firestore:"Progress"`
	ErrorMessage          string     `firestore:"ErrorMessage"`
	RetryCount            int        `firestore:"RetryCount"`
	ProcessingStartedAt   *time.Time `firestore:"ProcessingStartedAt"`
	ProcessingCompletedAt *time.Time `firestore:"ProcessingCompletedAt"`
	CreatedAt             time.Time  `firestore:"CreatedAt"`
	UpdatedAt             time.Time  `firestore:"UpdatedAt"`
}

func toMeetingDoc(m *model.Meeting) *meetingDoc {
	return &meetingDoc{
		ID:          string(m.ID),
		UserID:      string(m.UserID),
		Title:       m.Title,
		Description: m.Description,
		Audio: audioDoc{
			Key:      m.Audio.Key,
			Filename: m.Audio.Filename,
			Size:     m.Audio.Size,
			Duration: m.Audio.Duration,
			Format:   m.Audio.Format,
		},
		Status:                string(m.Status),
		StatusMessage:         m.StatusMessage,
		Progress:              m.Progress,
		ErrorMessage:          m.ErrorMessage,
		RetryCount:            m.RetryCount,
		ProcessingStartedAt:   m.ProcessingStartedAt,
		ProcessingCompletedAt: m.ProcessingCompletedAt,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func docToMeeting(doc *firestore.DocumentSnapshot) (*model.Meeting, error) {
	var d meetingDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return &model.Meeting{
		ID:          model.MeetingID(d.ID),
		UserID:      model.UserID(d.UserID),
		Title:       d.Title,
		Description: d.Description,
		Audio: model.AudioFile{
			Key:      d.Audio.Key,
			Filename: d.Audio.Filename,
			Size:     d.Audio.Size,
			Duration: d.Audio.Duration,
			Format:   d.Audio.Format,
		},
		Status:                types.MeetingStatus(d.Status),
		StatusMessage:         d.StatusMessage,
		Progress:              d.Progress,
		ErrorMessage:          d.ErrorMessage,
		RetryCount:            d.RetryCount,
		ProcessingStartedAt:   d.ProcessingStartedAt,
		ProcessingCompletedAt: d.ProcessingCompletedAt,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}, nil
}

type meetingRepository struct {
	client *firestore.Client
	prefix string
}

func (r *meetingRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(CollectionName(r.prefix, CollectionMeetings))
}

func (r *meetingRepository) Create(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error) {
	now := time.Now().UTC()
	created := *meeting
	if created.ID == "" {
		created.ID = model.NewMeetingID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.collection().Doc(string(created.ID)).Create(ctx, toMeetingDoc(&created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create meeting", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *meetingRepository) Get(ctx context.Context, id model.MeetingID) (*model.Meeting, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get meeting", goerr.V("id", id))
	}

	m, err := docToMeeting(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode meeting", goerr.V("id", id))
	}
	return m, nil
}

func (r *meetingRepository) Update(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error) {
	audio := toMeetingDoc(meeting).Audio
	_, err := r.collection().Doc(string(meeting.ID)).Update(ctx, []firestore.Update{
		{Path: "Title", Value: meeting.Title},
		{Path: "Description", Value: meeting.Description},
		{Path: "Audio", Value: audio},
		{Path: "UpdatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to update meeting", goerr.V("id", meeting.ID))
	}

	return r.Get(ctx, meeting.ID)
}

func (r *meetingRepository) UpdateProgress(ctx context.Context, id model.MeetingID, progress *model.MeetingProgress) error {
	updates := []firestore.Update{
		{Path: "Status", Value: string(progress.Status)},
		{Path: "StatusMessage", Value: progress.StatusMessage},
		{Path: "Progress", Value: progress.Progress},
		{Path: "ErrorMessage", Value: progress.ErrorMessage},
		{Path: "UpdatedAt", Value: time.Now().UTC()},
	}
	if progress.RetryCount != nil {
		updates = append(updates, firestore.Update{Path: "RetryCount", Value: *progress.RetryCount})
	}
	if progress.ProcessingStartedAt != nil {
		updates = append(updates, firestore.Update{Path: "ProcessingStartedAt", Value: *progress.ProcessingStartedAt})
	}
	if progress.ProcessingCompletedAt != nil {
		updates = append(updates, firestore.Update{Path: "ProcessingCompletedAt", Value: *progress.ProcessingCompletedAt})
	}

	if _, err := r.collection().Doc(string(id)).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return goerr.Wrap(err, "failed to update meeting progress", goerr.V("id", id))
	}
	return nil
}

func (r *meetingRepository) Delete(ctx context.Context, id model.MeetingID) error {
	if _, err := r.collection().Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete meeting", goerr.V("id", id))
	}
	return nil
}

func (r *meetingRepository) query(userID model.UserID, opts []interfaces.ListMeetingOption) firestore.Query {
	cfg := interfaces.BuildListMeetingConfig(opts...)
	q := r.collection().Where("UserID", "==", string(userID))
	if s := cfg.Status(); s != nil {
		q = q.Where("Status", "==", string(*s))
	}
	return q
}

func (r *meetingRepository) List(ctx context.Context, userID model.UserID, page model.Pagination, opts ...interfaces.ListMeetingOption) ([]*model.Meeting, error) {
	page = page.Normalize()
	iter := r.query(userID, opts).
		OrderBy("CreatedAt", firestore.Desc).
		Offset(page.Offset).
		Limit(page.Limit).
		Documents(ctx)

	meetings, err := collect(iter, docToMeeting)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list meetings", goerr.V("user_id", userID))
	}
	return meetings, nil
}

func (r *meetingRepository) Count(ctx context.Context, userID model.UserID, opts ...interfaces.ListMeetingOption) (int, error) {
	n, err := count(ctx, r.query(userID, opts))
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count meetings", goerr.V("user_id", userID))
	}
	return n, nil
}

func (r *meetingRepository) ListCreatedBefore(ctx context.Context, before time.Time) ([]*model.Meeting, error) {
	iter := r.collection().Where("CreatedAt", "<", before).Documents(ctx)
	meetings, err := collect(iter, docToMeeting)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list old meetings", goerr.V("before", before))
	}
	return meetings, nil
}
