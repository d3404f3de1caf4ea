package postgres

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"gorm.io/gorm"
)

type taskRepository struct {
	db *gorm.DB
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	now := time.Now().UTC()
	created := *task
	if created.ID == "" {
		created.ID = model.NewTaskID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(newTaskRow(&created)).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to create task", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *taskRepository) Get(ctx context.Context, id model.TaskID) (*model.Task, error) {
	var row taskRow
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).First(&row).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get task", goerr.V("id", id))
	}
	return row.toModel(), nil
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task) (*model.Task, error) {
	var updated *model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing taskRow
		if err := tx.Where("id = ?", string(task.ID)).First(&existing).Error; err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}

		next := *task
		next.MeetingID = model.MeetingID(existing.MeetingID)
		next.UserID = model.UserID(existing.UserID)
		next.CreatedAt = existing.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		if err := tx.Save(newTaskRow(&next)).Error; err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update task", goerr.V("id", task.ID))
	}
	return updated, nil
}

func (r *taskRepository) Delete(ctx context.Context, id model.TaskID) error {
	if err := r.db.WithContext(ctx).Delete(&taskRow{}, "id = ?", string(id)).Error; err != nil {
		return goerr.Wrap(err, "failed to delete task", goerr.V("id", id))
	}
	return nil
}

func toTasks(rows []*taskRow) []*model.Task {
	tasks := make([]*model.Task, len(rows))
	for i, row := range rows {
		tasks[i] = row.toModel()
	}
	return tasks
}

func (r *taskRepository) ListByMeeting(ctx context.Context, meetingID model.MeetingID) ([]*model.Task, error) {
	var rows []*taskRow
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", string(meetingID)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks by meeting", goerr.V("meeting_id", meetingID))
	}
	return toTasks(rows), nil
}

func (r *taskRepository) query(ctx context.Context, userID model.UserID, opts []interfaces.ListTaskOption) *gorm.DB {
	cfg := interfaces.BuildListTaskConfig(opts...)
	q := r.db.WithContext(ctx).Model(&taskRow{}).Where("user_id = ?", string(userID))
	if s := cfg.Status(); s != nil {
		q = q.Where("status = ?", string(*s))
	}
	if p := cfg.Priority(); p != nil {
		q = q.Where("priority = ?", string(*p))
	}
	if m := cfg.MeetingID(); m != nil {
		q = q.Where("meeting_id = ?", string(*m))
	}
	return q
}

func (r *taskRepository) List(ctx context.Context, userID model.UserID, page model.Pagination, opts ...interfaces.ListTaskOption) ([]*model.Task, error) {
	page = page.Normalize()

	var rows []*taskRow
	err := r.query(ctx, userID, opts).
		Order("created_at DESC, id ASC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks", goerr.V("user_id", userID))
	}
	return toTasks(rows), nil
}

func (r *taskRepository) Count(ctx context.Context, userID model.UserID, opts ...interfaces.ListTaskOption) (int, error) {
	var total int64
	if err := r.query(ctx, userID, opts).Count(&total).Error; err != nil {
		return 0, goerr.Wrap(err, "failed to count tasks", goerr.V("user_id", userID))
	}
	return int(total), nil
}

func (r *taskRepository) DeleteByMeeting(ctx context.Context, meetingID model.MeetingID) error {
	if err := r.db.WithContext(ctx).Delete(&taskRow{}, "meeting_id = ?", string(meetingID)).Error; err != nil {
		return goerr.Wrap(err, "failed to delete tasks by meeting", goerr.V("meeting_id", meetingID))
	}
	return nil
}

// FindSimilar scores the user's embedded tasks in process. Embeddings are stored as
// JSON, so there is no server-side vector operator to push the ranking down to.
func (r *taskRepository) FindSimilar(ctx context.Context, userID model.UserID, embedding []float32, limit int, exclude ...model.TaskID) ([]*interfaces.SimilarTask, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", string(userID))
	if len(exclude) > 0 {
		ids := make([]string, len(exclude))
		for i, id := range exclude {
			ids[i] = string(id)
		}
		q = q.Where("id NOT IN ?", ids)
	}

	var rows []*taskRow
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to load tasks for similarity", goerr.V("user_id", userID))
	}

	result := make([]*interfaces.SimilarTask, 0, len(rows))
	for _, row := range rows {
		if len(row.Embedding) == 0 {
			continue
		}
		result = append(result, &interfaces.SimilarTask{
			Task:       row.toModel(),
			Similarity: model.CosineSimilarity(embedding, row.Embedding),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Similarity > result[j].Similarity
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
