package dedup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/repository/memory"
	"github.com/secmon-lab/meetscribe/pkg/service/dedup"
)

// mockEmbedder returns fixed vectors by text
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, s := range texts {
		v, err := m.Embed(ctx, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func seedTask(t *testing.T, repo *memory.Memory, userID model.UserID, title string, v []float32) *model.Task {
	t.Helper()
	task, err := repo.Task().Create(context.Background(), &model.Task{
		MeetingID: model.NewMeetingID(),
		UserID:    userID,
		Title:     title,
		Priority:  types.TaskPriorityMedium,
		Status:    types.TaskStatusPending,
		Embedding: v,
	})
	gt.NoError(t, err).Required()
	return task
}

func TestBuildText(t *testing.T) {
	gt.Value(t, dedup.BuildText("Send report", "")).Equal("Send report")
	gt.Value(t, dedup.BuildText("Send report", "to finance")).Equal("Send report\nto finance")
}

func TestFindCandidates(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	userID := model.NewUserID()
	otherUser := model.NewUserID()

	near := seedTask(t, repo, userID, "Send Q3 report", []float32{1, 0, 0})
	seedTask(t, repo, userID, "Book flights", []float32{0, 1, 0})
	seedTask(t, repo, otherUser, "Send Q3 report", []float32{1, 0, 0})

	embedder := &mockEmbedder{vectors: map[string][]float32{
		"Send the Q3 report": {0.99, 0.1, 0},
	}}
	engine := dedup.New(repo.Task(), embedder)

	t.Run("returns similar tasks of the same user only", func(t *testing.T) {
		candidates, err := engine.FindCandidates(ctx, "Send the Q3 report", userID)
		gt.NoError(t, err).Required()
		gt.Array(t, candidates).Length(1).Required()
		gt.Value(t, candidates[0].TaskID).Equal(near.ID)
		gt.Bool(t, candidates[0].Similarity >= dedup.DefaultThreshold).True()
	})

	t.Run("excluded task is never a candidate", func(t *testing.T) {
		candidates, err := engine.FindCandidates(ctx, "Send the Q3 report", userID, dedup.WithExclude(near.ID))
		gt.NoError(t, err).Required()
		gt.Array(t, candidates).Length(0)
	})

	t.Run("threshold filters weak matches", func(t *testing.T) {
		candidates, err := engine.FindCandidates(ctx, "unrelated", userID, dedup.WithThreshold(0.5))
		gt.NoError(t, err).Required()
		gt.Array(t, candidates).Length(0)
	})

	t.Run("low threshold returns matches ordered by similarity", func(t *testing.T) {
		candidates, err := engine.FindCandidates(ctx, "Send the Q3 report", userID, dedup.WithThreshold(0))
		gt.NoError(t, err).Required()
		gt.Array(t, candidates).Length(2).Required()
		gt.Value(t, candidates[0].TaskID).Equal(near.ID)
		gt.Bool(t, candidates[0].Similarity >= candidates[1].Similarity).True()
	})

	t.Run("limit caps results", func(t *testing.T) {
		candidates, err := engine.FindCandidates(ctx, "Send the Q3 report", userID,
			dedup.WithThreshold(0), dedup.WithLimit(1))
		gt.NoError(t, err).Required()
		gt.Array(t, candidates).Length(1)
	})
}

func TestMarkDuplicate(t *testing.T) {
	task := &model.Task{ID: model.NewTaskID(), Title: "new"}
	prior := model.NewTaskID()

	gt.Bool(t, dedup.MarkDuplicate(task, nil)).False()
	gt.Bool(t, task.IsDuplicate).False()

	marked := dedup.MarkDuplicate(task, []*dedup.Candidate{
		{TaskID: prior, Title: "old", Similarity: 0.93},
		{TaskID: model.NewTaskID(), Title: "older", Similarity: 0.9},
	})
	gt.Bool(t, marked).True()
	gt.Bool(t, task.IsDuplicate).True()
	gt.Value(t, task.DuplicateOfID).Equal(prior)
	gt.Value(t, *task.SimilarityScore).Equal(0.93)
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	userID := model.NewUserID()

	prior := seedTask(t, repo, userID, "Send Q3 report", []float32{1, 0, 0})
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"Send Q3 report\nby Friday": {1, 0.01, 0},
	}}
	engine := dedup.New(repo.Task(), embedder)

	t.Run("embeds and marks the new task without touching the prior one", func(t *testing.T) {
		task := seedTask(t, repo, userID, "Send Q3 report", nil)
		task.Description = "by Friday"

		candidates := engine.Check(ctx, task)
		gt.Array(t, candidates).Length(1).Required()
		gt.Value(t, candidates[0].TaskID).Equal(prior.ID)
		gt.Bool(t, task.IsDuplicate).True()
		gt.Value(t, task.DuplicateOfID).Equal(prior.ID)
		gt.Array(t, task.Embedding).Length(3)

		stored, err := repo.Task().Get(ctx, prior.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, stored.IsDuplicate).False()
	})

	t.Run("a task never duplicates itself", func(t *testing.T) {
		repo := memory.New()
		engine := dedup.New(repo.Task(), embedder)
		task := seedTask(t, repo, userID, "Only task", []float32{1, 0, 0})

		candidates := engine.Check(ctx, task)
		gt.Array(t, candidates).Length(0)
		gt.Bool(t, task.IsDuplicate).False()
	})

	t.Run("embedding failure degrades to no duplicates", func(t *testing.T) {
		failing := dedup.New(repo.Task(), &mockEmbedder{err: errors.New("down")})
		task := &model.Task{ID: model.NewTaskID(), UserID: userID, Title: "Send Q3 report"}

		gt.Array(t, failing.Check(ctx, task)).Length(0)
		gt.Bool(t, task.IsDuplicate).False()
	})
}
