package postgres

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"gorm.io/gorm"
)

type meetingRepository struct {
	db *gorm.DB
}

func (r *meetingRepository) Create(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error) {
	now := time.Now().UTC()
	created := *meeting
	if created.ID == "" {
		created.ID = model.NewMeetingID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(newMeetingRow(&created)).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to create meeting", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *meetingRepository) Get(ctx context.Context, id model.MeetingID) (*model.Meeting, error) {
	var row meetingRow
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).First(&row).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get meeting", goerr.V("id", id))
	}
	return row.toModel(), nil
}

func (r *meetingRepository) Update(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error) {
	res := r.db.WithContext(ctx).Model(&meetingRow{}).Where("id = ?", string(meeting.ID)).
		Updates(map[string]any{
			"title":          meeting.Title,
			"description":    meeting.Description,
			"audio_key":      meeting.Audio.Key,
			"audio_filename": meeting.Audio.Filename,
			"audio_size":     meeting.Audio.Size,
			"audio_duration": meeting.Audio.Duration,
			"audio_format":   meeting.Audio.Format,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, goerr.Wrap(res.Error, "failed to update meeting", goerr.V("id", meeting.ID))
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.Get(ctx, meeting.ID)
}

func (r *meetingRepository) UpdateProgress(ctx context.Context, id model.MeetingID, progress *model.MeetingProgress) error {
	values := map[string]any{
		"status":         string(progress.Status),
		"status_message": progress.StatusMessage,
		"progress":       progress.Progress,
		"error_message":  progress.ErrorMessage,
		"updated_at":     time.Now().UTC(),
	}
	if progress.RetryCount != nil {
		values["retry_count"] = *progress.RetryCount
	}
	if progress.ProcessingStartedAt != nil {
		values["processing_started_at"] = *progress.ProcessingStartedAt
	}
	if progress.ProcessingCompletedAt != nil {
		values["processing_completed_at"] = *progress.ProcessingCompletedAt
	}

	err := r.db.WithContext(ctx).Model(&meetingRow{}).Where("id = ?", string(id)).Updates(values).Error
	if err != nil {
		return goerr.Wrap(err, "failed to update meeting progress", goerr.V("id", id))
	}
	return nil
}

func (r *meetingRepository) Delete(ctx context.Context, id model.MeetingID) error {
	if err := r.db.WithContext(ctx).Delete(&meetingRow{}, "id = ?", string(id)).Error; err != nil {
		return goerr.Wrap(err, "failed to delete meeting", goerr.V("id", id))
	}
	return nil
}

func (r *meetingRepository) query(ctx context.Context, userID model.UserID, opts []interfaces.ListMeetingOption) *gorm.DB {
	cfg := interfaces.BuildListMeetingConfig(opts...)
	q := r.db.WithContext(ctx).Model(&meetingRow{}).Where("user_id = ?", string(userID))
	if s := cfg.Status(); s != nil {
		q = q.Where("status = ?", string(*s))
	}
	return q
}

func (r *meetingRepository) List(ctx context.Context, userID model.UserID, page model.Pagination, opts ...interfaces.ListMeetingOption) ([]*model.Meeting, error) {
	page = page.Normalize()

	var rows []*meetingRow
	err := r.query(ctx, userID, opts).
		Order("created_at DESC, id ASC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list meetings", goerr.V("user_id", userID))
	}

	meetings := make([]*model.Meeting, len(rows))
	for i, row := range rows {
		meetings[i] = row.toModel()
	}
	return meetings, nil
}

func (r *meetingRepository) Count(ctx context.Context, userID model.UserID, opts ...interfaces.ListMeetingOption) (int, error) {
	var total int64
	if err := r.query(ctx, userID, opts).Count(&total).Error; err != nil {
		return 0, goerr.Wrap(err, "failed to count meetings", goerr.V("user_id", userID))
	}
	return int(total), nil
}

func (r *meetingRepository) ListCreatedBefore(ctx context.Context, before time.Time) ([]*model.Meeting, error) {
	var rows []*meetingRow
	if err := r.db.WithContext(ctx).Where("created_at < ?", before).Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list old meetings", goerr.V("before", before))
	}

	meetings := make([]*model.Meeting, len(rows))
	for i, row := range rows {
		meetings[i] = row.toModel()
	}
	return meetings, nil
}
