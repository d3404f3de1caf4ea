package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

type meetingRepository struct {
	mu       sync.RWMutex
	meetings map[model.MeetingID]*model.Meeting
}

func newMeetingRepository() *meetingRepository {
	return &meetingRepository{
		meetings: make(map[model.MeetingID]*model.Meeting),
	}
}

// copyMeeting creates a deep copy of a meeting
func copyMeeting(m *model.Meeting) *model.Meeting {
	c := *m
	c.ProcessingStartedAt = copyTime(m.ProcessingStartedAt)
	c.ProcessingCompletedAt = copyTime(m.ProcessingCompletedAt)
	return &c
}

func (r *meetingRepository) Create(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	created := copyMeeting(meeting)
	if created.ID == "" {
		created.ID = model.NewMeetingID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	r.meetings[created.ID] = created
	return copyMeeting(created), nil
}

func (r *meetingRepository) Get(ctx context.Context, id model.MeetingID) (*model.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.meetings[id]
	if !exists {
		return nil, nil
	}
	return copyMeeting(m), nil
}

func (r *meetingRepository) Update(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.meetings[meeting.ID]
	if !exists {
		return nil, nil
	}

	existing.Title = meeting.Title
	existing.Description = meeting.Description
	existing.Audio = meeting.Audio
	existing.UpdatedAt = time.Now().UTC()

	return copyMeeting(existing), nil
}

func (r *meetingRepository) UpdateProgress(ctx context.Context, id model.MeetingID, progress *model.MeetingProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.meetings[id]
	if !exists {
		return nil
	}

	progress.Apply(existing)
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *meetingRepository) Delete(ctx context.Context, id model.MeetingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.meetings, id)
	return nil
}

func (r *meetingRepository) filter(userID model.UserID, opts []interfaces.ListMeetingOption) []*model.Meeting {
	cfg := interfaces.BuildListMeetingConfig(opts...)

	var result []*model.Meeting
	for _, m := range r.meetings {
		if m.UserID == userID && cfg.Match(m) {
			result = append(result, m)
		}
	}
	return result
}

func (r *meetingRepository) List(ctx context.Context, userID model.UserID, page model.Pagination, opts ...interfaces.ListMeetingOption) ([]*model.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filter(userID, opts)
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	window := paginate(matched, page)
	result := make([]*model.Meeting, len(window))
	for i, m := range window {
		result[i] = copyMeeting(m)
	}
	return result, nil
}

func (r *meetingRepository) Count(ctx context.Context, userID model.UserID, opts ...interfaces.ListMeetingOption) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.filter(userID, opts)), nil
}

func (r *meetingRepository) ListCreatedBefore(ctx context.Context, before time.Time) ([]*model.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Meeting
	for _, m := range r.meetings {
		if m.CreatedAt.Before(before) {
			result = append(result, copyMeeting(m))
		}
	}
	return result, nil
}
