package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type taskDoc struct {
	ID        string `firestore:"ID"`
	MeetingID string `firestore:"MeetingID"`
	UserID    string `firestore:"UserID"`

	Title         string     `firestore:"Title"`
	Description   string     `firestore:"Description"`
	AssigneeName  string     `firestore:"AssigneeName"`
	AssigneeEmail string     `firestore:"AssigneeEmail"`
	Priority      string     `firestore:"Priority"`
	DueDate       *time.Time `firestore:"DueDate"`
	DueDateText   string     `firestore:"DueDateText"`
	Status        string     `firestore:"Status"`

	SourceText           string   `firestore:"SourceText"`
	SourceSegmentID      string   `firestore:"SourceSegmentID"`
	ExtractionConfidence *float64 `firestore:"ExtractionConfidence"`

	ExternalID      string     `firestore:"ExternalID"`
	ExternalService string     `firestore:"ExternalService"`
	ExternalURL     string     `firestore:"ExternalURL"`
	SyncedAt        *time.Time `firestore:"SyncedAt"`
	SyncAttempts    int        `firestore:"SyncAttempts"`
	SyncError       string     `firestore:"SyncError"`

	IsUserModified bool   `firestore:"IsUserModified"`
	OriginalTitle  string `firestore:"OriginalTitle"`

	IsDuplicate     bool     `firestore:"IsDuplicate"`
	DuplicateOfID   string   `firestore:"DuplicateOfID"`
	SimilarityScore *float64 `firestore:"SimilarityScore"`

	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`

	CreatedAt time.Time `firestore:"CreatedAt"`
	UpdatedAt time.Time `firestore:"UpdatedAt"`

	// Populated by FindNearest only
	VectorDistance float64 `firestore:"VectorDistance,omitempty"`
}

func toTaskDoc(t *model.Task) *taskDoc {
	return &taskDoc{
		ID:                   string(t.ID),
		MeetingID:            string(t.MeetingID),
		UserID:               string(t.UserID),
		Title:                t.Title,
		Description:          t.Description,
		AssigneeName:         t.AssigneeName,
		AssigneeEmail:        t.AssigneeEmail,
		Priority:             string(t.Priority),
		DueDate:              t.DueDate,
		DueDateText:          t.DueDateText,
		Status:               string(t.Status),
		SourceText:           t.SourceText,
		SourceSegmentID:      string(t.SourceSegmentID),
		ExtractionConfidence: t.ExtractionConfidence,
		ExternalID:           t.ExternalID,
		ExternalService:      string(t.ExternalService),
		ExternalURL:          t.ExternalURL,
		SyncedAt:             t.SyncedAt,
		SyncAttempts:         t.SyncAttempts,
		SyncError:            t.SyncError,
		IsUserModified:       t.IsUserModified,
		OriginalTitle:        t.OriginalTitle,
		IsDuplicate:          t.IsDuplicate,
		DuplicateOfID:        string(t.DuplicateOfID),
		SimilarityScore:      t.SimilarityScore,
		Embedding:            firestore.Vector32(t.Embedding),
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

func (d *taskDoc) toModel() *model.Task {
	t := &model.Task{
		ID:                   model.TaskID(d.ID),
		MeetingID:            model.MeetingID(d.MeetingID),
		UserID:               model.UserID(d.UserID),
		Title:                d.Title,
		Description:          d.Description,
		AssigneeName:         d.AssigneeName,
		AssigneeEmail:        d.AssigneeEmail,
		Priority:             types.TaskPriority(d.Priority),
		DueDate:              d.DueDate,
		DueDateText:          d.DueDateText,
		Status:               types.TaskStatus(d.Status),
		SourceText:           d.SourceText,
		SourceSegmentID:      model.SegmentID(d.SourceSegmentID),
		ExtractionConfidence: d.ExtractionConfidence,
		ExternalID:           d.ExternalID,
		ExternalService:      types.IntegrationType(d.ExternalService),
		ExternalURL:          d.ExternalURL,
		SyncedAt:             d.SyncedAt,
		SyncAttempts:         d.SyncAttempts,
		SyncError:            d.SyncError,
		IsUserModified:       d.IsUserModified,
		OriginalTitle:        d.OriginalTitle,
		IsDuplicate:          d.IsDuplicate,
		DuplicateOfID:        model.TaskID(d.DuplicateOfID),
		SimilarityScore:      d.SimilarityScore,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
	if len(d.Embedding) > 0 {
		t.Embedding = []float32(d.Embedding)
	}
	return t
}

func docToTask(doc *firestore.DocumentSnapshot) (*model.Task, error) {
	var d taskDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return d.toModel(), nil
}

type taskRepository struct {
	client *firestore.Client
	prefix string
}

func (r *taskRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(CollectionName(r.prefix, CollectionTasks))
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	now := time.Now().UTC()
	created := *task
	if created.ID == "" {
		created.ID = model.NewTaskID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.collection().Doc(string(created.ID)).Create(ctx, toTaskDoc(&created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create task", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *taskRepository) Get(ctx context.Context, id model.TaskID) (*model.Task, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get task", goerr.V("id", id))
	}

	t, err := docToTask(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode task", goerr.V("id", id))
	}
	return t, nil
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task) (*model.Task, error) {
	ref := r.collection().Doc(string(task.ID))

	var updated *model.Task
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				updated = nil
				return nil
			}
			return err
		}
		existing, err := docToTask(snap)
		if err != nil {
			return err
		}

		next := *task
		next.MeetingID = existing.MeetingID
		next.UserID = existing.UserID
		next.CreatedAt = existing.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		if err := tx.Set(ref, toTaskDoc(&next)); err != nil {
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
	if _, err := r.collection().Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete task", goerr.V("id", id))
	}
	return nil
}

func (r *taskRepository) ListByMeeting(ctx context.Context, meetingID model.MeetingID) ([]*model.Task, error) {
	iter := r.collection().
		Where("MeetingID", "==", string(meetingID)).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)

	tasks, err := collect(iter, docToTask)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks by meeting", goerr.V("meeting_id", meetingID))
	}
	return tasks, nil
}

func (r *taskRepository) query(userID model.UserID, opts []interfaces.ListTaskOption) firestore.Query {
	cfg := interfaces.BuildListTaskConfig(opts...)
	q := r.collection().Where("UserID", "==", string(userID))
	if s := cfg.Status(); s != nil {
		q = q.Where("Status", "==", string(*s))
	}
	if p := cfg.Priority(); p != nil {
		q = q.Where("Priority", "==", string(*p))
	}
	if m := cfg.MeetingID(); m != nil {
		q = q.Where("MeetingID", "==", string(*m))
	}
	return q
}

func (r *taskRepository) List(ctx context.Context, userID model.UserID, page model.Pagination, opts ...interfaces.ListTaskOption) ([]*model.Task, error) {
	page = page.Normalize()
	iter := r.query(userID, opts).
		OrderBy("CreatedAt", firestore.Desc).
		Offset(page.Offset).
		Limit(page.Limit).
		Documents(ctx)

	tasks, err := collect(iter, docToTask)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks", goerr.V("user_id", userID))
	}
	return tasks, nil
}

func (r *taskRepository) Count(ctx context.Context, userID model.UserID, opts ...interfaces.ListTaskOption) (int, error) {
	n, err := count(ctx, r.query(userID, opts))
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count tasks", goerr.V("user_id", userID))
	}
	return n, nil
}

func (r *taskRepository) DeleteByMeeting(ctx context.Context, meetingID model.MeetingID) error {
	iter := r.collection().Where("MeetingID", "==", string(meetingID)).Documents(ctx)
	refs, err := collect(iter, func(doc *firestore.DocumentSnapshot) (*firestore.DocumentRef, error) {
		return doc.Ref, nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to list tasks for deletion", goerr.V("meeting_id", meetingID))
	}

	bw := r.client.BulkWriter(ctx)
	for _, ref := range refs {
		if _, err := bw.Delete(ref); err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue task deletion", goerr.V("id", ref.ID))
		}
	}
	bw.End()
	return nil
}

// FindSimilar runs a vector nearest-neighbor query restricted to the user's tasks.
// Firestore reports cosine distance, which is converted to similarity (1 - distance).
func (r *taskRepository) FindSimilar(ctx context.Context, userID model.UserID, embedding []float32, limit int, exclude ...model.TaskID) ([]*interfaces.SimilarTask, error) {
	if limit <= 0 || len(embedding) == 0 {
		return []*interfaces.SimilarTask{}, nil
	}

	excluded := make(map[model.TaskID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	vq := r.collection().
		Where("UserID", "==", string(userID)).
		FindNearest("Embedding",
			firestore.Vector32(embedding),
			limit+len(exclude),
			firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{
				DistanceResultField: "VectorDistance",
			},
		)

	docs, err := collect(vq.Documents(ctx), func(doc *firestore.DocumentSnapshot) (*taskDoc, error) {
		var d taskDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, err
		}
		return &d, nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find similar tasks", goerr.V("user_id", userID))
	}

	result := make([]*interfaces.SimilarTask, 0, len(docs))
	for _, d := range docs {
		t := d.toModel()
		if excluded[t.ID] || len(t.Embedding) == 0 {
			continue
		}
		result = append(result, &interfaces.SimilarTask{
			Task:       t,
			Similarity: 1 - d.VectorDistance,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Similarity > result[j].Similarity
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
