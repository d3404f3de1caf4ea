package postgres

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"gorm.io/gorm"
)

type transcriptRepository struct {
	db *gorm.DB
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

	// gorm inserts the segment association in the same transaction
	if err := r.db.WithContext(ctx).Create(newTranscriptRow(&created)).Error; err != nil {
		if isDuplicate(err) {
			return nil, goerr.Wrap(model.ErrConflict, "transcript already exists for meeting",
				goerr.V("meeting_id", created.MeetingID))
		}
		return nil, goerr.Wrap(err, "failed to create transcript", goerr.V("meeting_id", created.MeetingID))
	}
	return &created, nil
}

func (r *transcriptRepository) GetByMeeting(ctx context.Context, meetingID model.MeetingID) (*model.Transcript, error) {
	var row transcriptRow
	err := r.db.WithContext(ctx).
		Preload("Segments", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		}).
		Where("meeting_id = ?", string(meetingID)).
		First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get transcript", goerr.V("meeting_id", meetingID))
	}
	return row.toModel(), nil
}

func (r *transcriptRepository) UpdateEmbedding(ctx context.Context, id model.TranscriptID, embedding []float32) error {
	err := r.db.WithContext(ctx).Model(&transcriptRow{ID: string(id)}).
		Updates(&transcriptRow{Embedding: embedding, UpdatedAt: time.Now().UTC()}).Error
	if err != nil {
		return goerr.Wrap(err, "failed to update transcript embedding", goerr.V("id", id))
	}
	return nil
}

func (r *transcriptRepository) UpdateSpeakerName(ctx context.Context, id model.TranscriptID, segmentID model.SegmentID, name string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&segmentRow{}).
			Where("id = ? AND transcript_id = ?", string(segmentID), string(id)).
			Update("speaker_name", name)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&transcriptRow{}).Where("id = ?", string(id)).
			Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update speaker name",
			goerr.V("id", id), goerr.V("segment_id", segmentID))
	}
	return nil
}

func (r *transcriptRepository) DeleteByMeeting(ctx context.Context, meetingID model.MeetingID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row transcriptRow
		if err := tx.Where("meeting_id = ?", string(meetingID)).First(&row).Error; err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if err := tx.Delete(&segmentRow{}, "transcript_id = ?", row.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&transcriptRow{}, "id = ?", row.ID).Error
	})
	if err != nil {
		return goerr.Wrap(err, "failed to delete transcript", goerr.V("meeting_id", meetingID))
	}
	return nil
}
