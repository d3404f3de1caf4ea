package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
)

type taskRepository struct {
	mu    sync.RWMutex
	tasks map[model.TaskID]*model.Task
}

func newTaskRepository() *taskRepository {
	return &taskRepository{
		tasks: make(map[model.TaskID]*model.Task),
	}
}

// copyTask creates a deep copy of a task
func copyTask(t *model.Task) *model.Task {
	c := *t
	c.DueDate = copyTime(t.DueDate)
	c.SyncedAt = copyTime(t.SyncedAt)
	c.ExtractionConfidence = copyFloat(t.ExtractionConfidence)
	c.SimilarityScore = copyFloat(t.SimilarityScore)
	c.Embedding = copyVector(t.Embedding)
	return &c
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	created := copyTask(task)
	if created.ID == "" {
		created.ID = model.NewTaskID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	r.tasks[created.ID] = created
	return copyTask(created), nil
}

func (r *taskRepository) Get(ctx context.Context, id model.TaskID) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tasks[id]
	if !exists {
		return nil, nil
	}
	return copyTask(t), nil
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.tasks[task.ID]
	if !exists {
		return nil, nil
	}

	updated := copyTask(task)
	updated.MeetingID = existing.MeetingID
	updated.UserID = existing.UserID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	r.tasks[task.ID] = updated

	return copyTask(updated), nil
}

func (r *taskRepository) Delete(ctx context.Context, id model.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tasks, id)
	return nil
}

func sortByCreatedAt(tasks []*model.Task, newestFirst bool) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		if newestFirst {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (r *taskRepository) ListByMeeting(ctx context.Context, meetingID model.MeetingID) ([]*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*model.Task{}
	for _, t := range r.tasks {
		if t.MeetingID == meetingID {
			result = append(result, copyTask(t))
		}
	}
	sortByCreatedAt(result, false)
	return result, nil
}

func (r *taskRepository) filter(userID model.UserID, opts []interfaces.ListTaskOption) []*model.Task {
	cfg := interfaces.BuildListTaskConfig(opts...)

	var result []*model.Task
	for _, t := range r.tasks {
		if t.UserID == userID && cfg.Match(t) {
			result = append(result, t)
		}
	}
	return result
}

func (r *taskRepository) List(ctx context.Context, userID model.UserID, page model.Pagination, opts ...interfaces.ListTaskOption) ([]*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filter(userID, opts)
	sortByCreatedAt(matched, true)

	window := paginate(matched, page)
	result := make([]*model.Task, len(window))
	for i, t := range window {
		result[i] = copyTask(t)
	}
	return result, nil
}

func (r *taskRepository) Count(ctx context.Context, userID model.UserID, opts ...interfaces.ListTaskOption) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.filter(userID, opts)), nil
}

func (r *taskRepository) DeleteByMeeting(ctx context.Context, meetingID model.MeetingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tasks {
		if t.MeetingID == meetingID {
			delete(r.tasks, id)
		}
	}
	return nil
}

// FindSimilar scores every embedded task of the user. Ties keep creation order so that
// the earliest stored task ranks first.
func (r *taskRepository) FindSimilar(ctx context.Context, userID model.UserID, embedding []float32, limit int, exclude ...model.TaskID) ([]*interfaces.SimilarTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	excluded := make(map[model.TaskID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	var pool []*model.Task
	for _, t := range r.tasks {
		if t.UserID != userID || len(t.Embedding) == 0 || excluded[t.ID] {
			continue
		}
		pool = append(pool, t)
	}
	sortByCreatedAt(pool, false)

	result := make([]*interfaces.SimilarTask, 0, len(pool))
	for _, t := range pool {
		result = append(result, &interfaces.SimilarTask{
			Task:       copyTask(t),
			Similarity: model.CosineSimilarity(embedding, t.Embedding),
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
